// app/echoServer/jwtx/identity.go
package jwtx

import (
	"errors"

	"github.com/labstack/echo/v4"
)

// Context keys populated by the edge filter.
const (
	CtxUserID   = "user_id"
	CtxUsername = "username"
	CtxRole     = "role"
)

const RoleAdmin = "admin"

func UserIDFromContext(c echo.Context) (int64, error) {
	id, ok := c.Get(CtxUserID).(int64)
	if !ok || id <= 0 {
		return 0, errors.New("no authenticated user in context")
	}
	return id, nil
}

func UsernameFromContext(c echo.Context) string {
	s, _ := c.Get(CtxUsername).(string)
	return s
}

func RoleFromContext(c echo.Context) string {
	s, _ := c.Get(CtxRole).(string)
	return s
}

func IsAdmin(c echo.Context) bool {
	return RoleFromContext(c) == RoleAdmin
}
