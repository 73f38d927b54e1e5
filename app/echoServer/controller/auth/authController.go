package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"bookledger/app/echoServer/validation"
	"bookledger/model"
	authsvc "bookledger/service/auth"
	"bookledger/util/response"
)

type Controller struct {
	Svc authsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// Login
// @Summary      Login
// @Description  Login with username + password, returns a bearer token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  model.LoginReq  true  "Login payload"
// @Success      200  {object}  response.Envelope
// @Failure      400  {object}  response.Envelope
// @Failure      401  {object}  response.Envelope
// @Router       /v1/auth/login [post]
func (ct *Controller) Login(c echo.Context) error {
	var req model.LoginReq

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid body"))
	}
	if err := ct.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, validation.Reason(err)))
	}

	token, err := ct.Svc.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, authsvc.ErrInvalidCreds) {
			return c.JSON(http.StatusUnauthorized,
				response.Error(http.StatusUnauthorized, "invalid username or password"))
		}
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		ct.Log.Error("login failed", "err", err, "req_id", rid)
		return c.JSON(http.StatusInternalServerError,
			response.Error(http.StatusInternalServerError, "login failed"))
	}

	return c.JSON(http.StatusOK, response.SuccessMsg("login success", echo.Map{"token": token}))
}
