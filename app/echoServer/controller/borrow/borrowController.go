package borrow

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"bookledger/app/echoServer/jwtx"
	"bookledger/app/echoServer/validation"
	"bookledger/model"
	bs "bookledger/service/borrow"
	"bookledger/util/response"
)

type Controller struct {
	Svc bs.Service
	V   *validator.Validate
	Log *slog.Logger
}

// Business failures ride the 200 transport path; the envelope code is what
// clients branch on. Unknown errors map to a bare 500 envelope.
func fail(c echo.Context, err error) error {
	code := bs.Code(err)
	status := map[bs.ErrCode]int{
		bs.ErrInvalidArgument: http.StatusBadRequest,
		bs.ErrUserNotFound:    http.StatusNotFound,
		bs.ErrBookNotFound:    http.StatusNotFound,
		bs.ErrRecordNotFound:  http.StatusNotFound,
		bs.ErrAlreadyBorrowed: http.StatusConflict,
		bs.ErrAlreadyReturned: http.StatusConflict,
		bs.ErrNotActive:       http.StatusConflict,
		bs.ErrQuotaExceeded:   http.StatusConflict,
		bs.ErrNoStock:         http.StatusConflict,
		bs.ErrRenewLimit:      http.StatusConflict,
		bs.ErrNotOwner:        http.StatusForbidden,
		bs.ErrUpstream:        http.StatusServiceUnavailable,
	}[code]
	if status == 0 {
		return c.JSON(http.StatusOK, response.Error(http.StatusInternalServerError, "internal error"))
	}
	return c.JSON(http.StatusOK, response.Error(status, err.Error()))
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusOK, response.Error(http.StatusForbidden, "permission denied"))
}

func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// Borrow creates a loan
// @Summary      Borrow a book
// @Description  Admin creates a ledger entry for (user, book) after quota and stock checks
// @Tags         borrow
// @Accept       json
// @Produce      json
// @Param        payload  body  BorrowReq  true  "Borrow payload"
// @Success      200  {object}  response.Envelope
// @Router       /v1/borrow [post]
func (h *Controller) Borrow(c echo.Context) error {
	if !jwtx.IsAdmin(c) {
		return forbidden(c)
	}

	var req BorrowReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusOK, response.Error(http.StatusBadRequest, "invalid JSON"))
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusOK, response.Error(http.StatusBadRequest, validation.Reason(err)))
	}

	out, err := h.Svc.Borrow(c.Request().Context(), req.UserID, req.BookID)
	if err != nil {
		h.Log.Error("borrow", "user_id", req.UserID, "book_id", req.BookID, "err", err)
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, response.SuccessMsg("borrowed", out))
}

// Return closes a loan
// @Summary      Return a book
// @Tags         borrow
// @Produce      json
// @Param        id  path  int  true  "Record ID"
// @Success      200  {object}  response.Envelope
// @Router       /v1/borrow/{id}/return [post]
func (h *Controller) Return(c echo.Context) error {
	if !jwtx.IsAdmin(c) {
		return forbidden(c)
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusOK, response.Error(http.StatusBadRequest, "invalid record id"))
	}

	out, err := h.Svc.Return(c.Request().Context(), id)
	if err != nil {
		h.Log.Error("return", "record_id", id, "err", err)
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, response.SuccessMsg("returned", out))
}

// Renew extends a loan; only the borrower may do it.
// @Summary      Renew a loan
// @Tags         borrow
// @Produce      json
// @Param        id  path  int  true  "Record ID"
// @Success      200  {object}  response.Envelope
// @Router       /v1/borrow/{id}/renew [post]
func (h *Controller) Renew(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusOK, response.Error(http.StatusBadRequest, "invalid record id"))
	}
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}

	out, err := h.Svc.Renew(c.Request().Context(), uid, id)
	if err != nil {
		h.Log.Error("renew", "record_id", id, "caller", uid, "err", err)
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, response.SuccessMsg("renewed", out))
}

// List returns ledger entries. Admins may filter any user; everyone else is
// pinned to their own records.
// @Summary      List borrow records
// @Tags         borrow
// @Produce      json
// @Param        user_id  query  int     false  "Filter by user (admin only)"
// @Param        status   query  string  false  "Filter by status"
// @Success      200  {object}  response.Envelope
// @Router       /v1/borrow/records [get]
func (h *Controller) List(c echo.Context) error {
	status := model.BorrowStatus(c.QueryParam("status"))

	var userID int64
	if jwtx.IsAdmin(c) {
		userID, _ = strconv.ParseInt(c.QueryParam("user_id"), 10, 64)
	} else {
		uid, err := jwtx.UserIDFromContext(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
		}
		userID = uid
	}

	rows, err := h.Svc.List(c.Request().Context(), userID, status)
	if err != nil {
		h.Log.Error("list records", "user_id", userID, "err", err)
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, response.Success(rows))
}

// Detail returns one record; non-admins may only see their own.
// @Summary      Borrow record detail
// @Tags         borrow
// @Produce      json
// @Param        id  path  int  true  "Record ID"
// @Success      200  {object}  response.Envelope
// @Router       /v1/borrow/records/{id} [get]
func (h *Controller) Detail(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusOK, response.Error(http.StatusBadRequest, "invalid record id"))
	}

	out, err := h.Svc.Get(c.Request().Context(), id)
	if err != nil {
		h.Log.Error("record detail", "record_id", id, "err", err)
		return fail(c, err)
	}

	if !jwtx.IsAdmin(c) {
		uid, err := jwtx.UserIDFromContext(c)
		if err != nil || out.UserID != uid {
			return c.JSON(http.StatusOK, response.Error(http.StatusForbidden, "not your record"))
		}
	}
	return c.JSON(http.StatusOK, response.Success(out))
}

// Overdue lists loans past due, admin only.
// @Summary      Overdue records
// @Tags         borrow
// @Produce      json
// @Success      200  {object}  response.Envelope
// @Router       /v1/borrow/overdue [get]
func (h *Controller) Overdue(c echo.Context) error {
	if !jwtx.IsAdmin(c) {
		return forbidden(c)
	}
	rows, err := h.Svc.Overdue(c.Request().Context())
	if err != nil {
		h.Log.Error("overdue", "err", err)
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, response.Success(rows))
}

// Stats returns aggregate counts, admin only.
// @Summary      Borrow stats
// @Tags         borrow
// @Produce      json
// @Success      200  {object}  response.Envelope
// @Router       /v1/borrow/stats [get]
func (h *Controller) Stats(c echo.Context) error {
	if !jwtx.IsAdmin(c) {
		return forbidden(c)
	}
	stats, err := h.Svc.Stats(c.Request().Context())
	if err != nil {
		h.Log.Error("stats", "err", err)
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, response.Success(stats))
}
