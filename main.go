// Package main borrow ledger API.
//
// @title           Borrow Ledger API
// @version         1.0
// @description     Borrow/return/renew coordination over remote quota and stock owners.
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"bookledger/app/echoServer"
	authctrl "bookledger/app/echoServer/controller/auth"
	borrowctrl "bookledger/app/echoServer/controller/borrow"
	"bookledger/app/echoServer/validation"
	"bookledger/config"
	authrepo "bookledger/repository/auth"
	"bookledger/repository/bookstock"
	borrowrepo "bookledger/repository/borrow"
	"bookledger/repository/userquota"
	authsvc "bookledger/service/auth"
	borrowsvc "bookledger/service/borrow"
	"bookledger/util/database"
	"bookledger/util/httpx"
)

func main() {

	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	// DB: *sql.DB
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// remote owners, each behind its fallback
	hc := httpx.New(cfg.UpstreamTimeout)
	quota := userquota.NewFallback(userquota.NewHTTP(cfg.QuotaServiceURL, cfg.ServiceToken, hc), log)
	stock := bookstock.NewFallback(bookstock.NewHTTP(cfg.StockServiceURL, cfg.ServiceToken, hc), log)

	// repos
	ar := authrepo.New(db)
	br := borrowrepo.New(db)

	// services
	as := authsvc.New(ar, cfg.JWTSecret)
	bs := borrowsvc.New(br, quota, stock, borrowsvc.Policy{
		LoanDays:              cfg.LoanDays,
		RenewDays:             cfg.RenewDays,
		MaxRenewCount:         cfg.MaxRenewCount,
		DefaultMaxBorrowCount: cfg.DefaultMaxBorrowCount,
	}, log)

	// controllers
	v := validator.New()
	authC := &authctrl.Controller{Svc: as, V: v, Log: log}
	borrowC := &borrowctrl.Controller{Svc: bs, V: v, Log: log}

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Auth:   authC,
		Borrow: borrowC,

		JWTSecret: cfg.JWTSecret,
		Env:       cfg.Env,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	log.Info("starting server", "port", port, "env", cfg.Env)

	e.Logger.Fatal(e.Start(":" + port))
}
