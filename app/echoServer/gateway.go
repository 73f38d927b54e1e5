// app/echoServer/gateway.go
//
// The edge trust filter. Every inbound request passes through here exactly
// once: the token is verified, caller-supplied identity headers are replaced
// with server-derived ones, and the came-through-edge marker is stamped so
// downstream trust checks pass uniformly.
package echoServer

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"bookledger/app/echoServer/jwtx"
	"bookledger/util/identity"
)

const (
	HeaderGatewayRequest = "X-Gateway-Request"
	HeaderUserID         = identity.HeaderUserID
	HeaderUsername       = identity.HeaderUsername
	HeaderUserRole       = identity.HeaderUserRole
)

// PublicPath lists the routes that skip token verification. They still get
// the gateway marker so internal checks do not special-case them.
func PublicPath(path string) bool {
	switch path {
	case "/v1/auth/login", "/health", "/healthz":
		return true
	}
	return strings.HasPrefix(path, "/swagger/")
}

// StampGateway discards whatever identity the caller claimed and marks the
// request as having come through the edge. Must run before the JWT hop.
func StampGateway() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header
			h.Del(HeaderUserID)
			h.Del(HeaderUsername)
			h.Del(HeaderUserRole)
			h.Set(HeaderGatewayRequest, "true")
			return next(c)
		}
	}
}

// EdgeJWT verifies the bearer token for every non-public path.
func EdgeJWT(secret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(secret),

		NewClaimsFunc: func(c echo.Context) jwt.Claims { return jwt.MapClaims{} },
		TokenLookup:   "header:Authorization:Bearer ",
		Skipper: func(c echo.Context) bool {
			return PublicPath(c.Request().URL.Path)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			c.Logger().Warnf("[AUTH] token rejected path=%s ip=%s err=%v",
				c.Request().URL.Path, c.RealIP(), err)
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
		},
	})
}

// InjectIdentity turns verified claims into trusted context values and
// propagated headers for anything downstream.
func InjectIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if PublicPath(c.Request().URL.Path) {
				return next(c)
			}

			tok, ok := c.Get("user").(*jwt.Token)
			if !ok || tok == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
			}
			sub, ok := claims["sub"].(float64)
			if !ok || sub <= 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
			}

			userID := int64(sub)
			username, _ := claims["name"].(string)
			role, _ := claims["role"].(string)

			c.Set(jwtx.CtxUserID, userID)
			c.Set(jwtx.CtxUsername, username)
			c.Set(jwtx.CtxRole, role)

			req := c.Request()
			h := req.Header
			h.Set(HeaderUserID, strconv.FormatInt(userID, 10))
			h.Set(HeaderUsername, username)
			h.Set(HeaderUserRole, role)

			// Outbound owner calls read the caller from the context.
			c.SetRequest(req.WithContext(identity.WithContext(req.Context(), identity.Identity{
				UserID:   userID,
				Username: username,
				Role:     role,
			})))

			return next(c)
		}
	}
}

// RequireGateway is the internal services' own check that a request truly
// came via the edge: marker header, loopback peer, or a non-production
// environment. A valid token alone is not enough to pass.
func RequireGateway(env string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get(HeaderGatewayRequest) == "true" {
				return next(c)
			}
			ip := c.RealIP()
			if ip == "127.0.0.1" || ip == "::1" || ip == "localhost" {
				return next(c)
			}
			if env != "release" && env != "production" {
				return next(c)
			}
			c.Logger().Warnf("[GATEWAY] direct access rejected ip=%s path=%s", ip, c.Path())
			return echo.NewHTTPError(http.StatusForbidden, "access through gateway required")
		}
	}
}
