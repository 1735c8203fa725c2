// Package broker talks to the partner brokerage: referral checks for
// verification, session health and signal generation.
package broker

import (
	"context"
	"time"
)

// Market categories offered in the funnel.
const (
	MarketCurrency = "CURRENCY"
	MarketOTC      = "OTC"
)

// CheckResult is the outcome of a referral-program check.
type CheckResult struct {
	OK bool
	// Raw is the upstream payload kept for operator diagnostics.
	Raw string
}

// Signal is a generated trade recommendation.
type Signal struct {
	Asset           string
	Direction       Direction
	Price           float64
	CloseTime       time.Time
	ForecastPercent float64

	Volatility     string
	Sentiment      string
	Volume         string
	Support        float64
	Resistance     float64
	RatingSummary  string
	RatingMA       string
	RatingOsc      string
	RSI            string
	MACD           string
	BollingerBands string
	Pattern        string
}

// Direction of a trade signal.
type Direction string

const (
	DirectionCall Direction = "call"
	DirectionPut  Direction = "put"
)

// API is the brokerage surface the bot depends on.
type API interface {
	// CheckRegistration reports whether the broker account was created under
	// the partner referral link.
	CheckRegistration(ctx context.Context, uid string) (CheckResult, error)
	// CheckDeposit reports whether the account holds at least minDeposit.
	CheckDeposit(ctx context.Context, uid string, minDeposit float64) (CheckResult, error)
	// IsConnectionAlive reports whether the API session is usable.
	IsConnectionAlive(ctx context.Context) bool
	// ExpiryWarning returns a human-readable warning when the session expires
	// within daysThreshold days, or "" when it does not.
	ExpiryWarning(ctx context.Context, daysThreshold int) string
	// AvailablePairs lists the tradable pairs of a market category.
	AvailablePairs(ctx context.Context, marketType string) ([]string, error)
	// GenerateSignal builds a trade recommendation for the asset with the
	// given expiration.
	GenerateSignal(ctx context.Context, marketType, asset string, expiration time.Duration) (*Signal, error)
}
