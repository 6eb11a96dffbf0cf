package types

import (
	"time"
)

// HealthStatus represents the health status of a service
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ErrorResponse is the standard error body returned by the HTTP handlers
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

// SuccessResponse wraps a successful payload
type SuccessResponse struct {
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

// Sport represents the sports the engine produces picks for
type Sport string

const (
	SportNBA   Sport = "nba"
	SportNCAAB Sport = "ncaab"
	SportNFL   Sport = "nfl"
	SportNCAAF Sport = "ncaaf"
	SportMLB   Sport = "mlb"
	SportNHL   Sport = "nhl"
)

// AllSports lists every supported sport in a stable order
var AllSports = []Sport{SportNBA, SportNCAAB, SportNFL, SportNCAAF, SportMLB, SportNHL}

// IsValid reports whether s is a known sport
func (s Sport) IsValid() bool {
	for _, known := range AllSports {
		if s == known {
			return true
		}
	}
	return false
}

// Market represents a bet market a pick is made in
type Market string

const (
	MarketSpread Market = "spread"
	MarketTotal  Market = "total"
)

// AllMarkets lists the markets in evaluation order
var AllMarkets = []Market{MarketSpread, MarketTotal}

// IsValid reports whether m is a known market
func (m Market) IsValid() bool {
	return m == MarketSpread || m == MarketTotal
}

// DateKey formats a date the way picks, caches and logs key days
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Day truncates t to midnight UTC
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
