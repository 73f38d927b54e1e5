package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

func Load() App {
	cfg := App{
		Port:        getenv("APP_PORT", "8080"),
		Env:         getenv("APP_ENV", "dev"),
		DatabaseURL: must("DATABASE_URL"),
		JWTSecret:   getenv("JWT_SECRET", "local_dev_secret"),

		QuotaServiceURL: must("QUOTA_SERVICE_URL"),
		StockServiceURL: must("STOCK_SERVICE_URL"),
		ServiceToken:    os.Getenv("SERVICE_TOKEN"),
		UpstreamTimeout: time.Duration(getint("UPSTREAM_TIMEOUT_SECONDS", 5)) * time.Second,

		LoanDays:              getint("LOAN_DAYS", 30),
		RenewDays:             getint("RENEW_DAYS", 15),
		MaxRenewCount:         getint("MAX_RENEW_COUNT", 1),
		DefaultMaxBorrowCount: getint("DEFAULT_MAX_BORROW_COUNT", 5),
	}
	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("bad int env, using default", "key", k, "value", v, "default", def)
		return def
	}
	return n
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		slog.Error("required env missing", "key", k)
		panic("missing env " + k)
	}
	return v
}
