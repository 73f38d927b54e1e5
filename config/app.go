package config

import "time"

type App struct {
	Port        string `env:"APP_PORT" default:"8080"`
	Env         string `env:"APP_ENV" default:"dev"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`

	// Remote owners. ServiceToken is the outbound credential attached to
	// every quota/stock call.
	QuotaServiceURL string        `env:"QUOTA_SERVICE_URL,required"`
	StockServiceURL string        `env:"STOCK_SERVICE_URL,required"`
	ServiceToken    string        `env:"SERVICE_TOKEN"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT_SECONDS" default:"5"`

	// Loan policy.
	LoanDays              int `env:"LOAN_DAYS" default:"30"`
	RenewDays             int `env:"RENEW_DAYS" default:"15"`
	MaxRenewCount         int `env:"MAX_RENEW_COUNT" default:"1"`
	DefaultMaxBorrowCount int `env:"DEFAULT_MAX_BORROW_COUNT" default:"5"`
}
