package echoServer

import (
	"github.com/labstack/echo/v4"

	authctrl "bookledger/app/echoServer/controller/auth"
	borrowctrl "bookledger/app/echoServer/controller/borrow"
)

type C struct {
	Auth   *authctrl.Controller
	Borrow *borrowctrl.Controller

	JWTSecret string
	Env       string
}

func Register(e *echo.Echo, c C) {
	// Edge trust filter, once, in front of everything.
	e.Use(StampGateway())
	e.Use(EdgeJWT(c.JWTSecret))
	e.Use(InjectIdentity())

	// Public (allow-listed in the edge filter)
	pub := e.Group("/v1")
	pub.POST("/auth/login", c.Auth.Login)

	// Ledger operations; the gateway-origin check guards direct access.
	api := e.Group("/v1/borrow", RequireGateway(c.Env))
	api.POST("", c.Borrow.Borrow)
	api.POST("/:id/return", c.Borrow.Return)
	api.POST("/:id/renew", c.Borrow.Renew)
	api.GET("/records", c.Borrow.List)
	api.GET("/records/:id", c.Borrow.Detail)
	api.GET("/overdue", c.Borrow.Overdue)
	api.GET("/stats", c.Borrow.Stats)
}
