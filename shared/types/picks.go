package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PickStatus tracks a pick from generation to settlement
type PickStatus string

const (
	PickPending PickStatus = "PENDING"
	PickWin     PickStatus = "WIN"
	PickLoss    PickStatus = "LOSS"
	PickPush    PickStatus = "PUSH"
)

// IsSettled is true once a pick has left PENDING
func (s PickStatus) IsSettled() bool {
	return s == PickWin || s == PickLoss || s == PickPush
}

// Pick is the engine's published opinion on one game and market
type Pick struct {
	ID                 string         `json:"id"`
	GameID             string         `json:"game_id"`
	Sport              Sport          `json:"sport"`
	Market             Market         `json:"market"`
	Side               Direction      `json:"side"`
	Line               float64        `json:"line"`
	Score              float64        `json:"score"`
	Edge               float64        `json:"edge"`
	Tier               int            `json:"tier"`
	Signals            []SignalResult `json:"signals"`
	Status             PickStatus     `json:"status"`
	GameDate           time.Time      `json:"game_date"`
	GeneratedAt        time.Time      `json:"generated_at"`
	CalibrationVersion string         `json:"calibration_version"`
}

// GradedPick is a pick settled against its final game
type GradedPick struct {
	Pick     Pick            `json:"pick"`
	Result   PickStatus      `json:"result"`
	Units    decimal.Decimal `json:"units"`
	GradedAt time.Time       `json:"graded_at"`
}
