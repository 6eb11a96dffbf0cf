package grading

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/shared/pkg/oddsmath"
	"github.com/stitts-dev/pick-engine/shared/types"
)

var (
	// ErrGameNotFinal means the pick stays PENDING until a later grading run
	ErrGameNotFinal = errors.New("game is not final")
	ErrGameMismatch = errors.New("game does not match pick")
	// ErrUngradable is returned when neither a stored outcome nor a line is available
	ErrUngradable = errors.New("pick cannot be graded")
)

// Outcome settles one pick against its final game
func Outcome(pick types.Pick, game types.GameRecord) (types.PickStatus, error) {
	if pick.Status != types.PickPending {
		return "", fmt.Errorf("pick %s is %s: %w", pick.ID, pick.Status, apperrors.ErrAlreadyGraded)
	}
	if pick.GameID != game.ID {
		return "", fmt.Errorf("pick %s references game %s, got %s: %w", pick.ID, pick.GameID, game.ID, ErrGameMismatch)
	}
	if !game.Final {
		return "", fmt.Errorf("game %s: %w", game.ID, ErrGameNotFinal)
	}

	switch pick.Market {
	case types.MarketSpread:
		return spreadOutcome(pick, game)
	case types.MarketTotal:
		return totalOutcome(pick, game)
	default:
		return "", fmt.Errorf("pick %s has unknown market %q: %w", pick.ID, pick.Market, ErrUngradable)
	}
}

// spreadOutcome reads the stored home-perspective result; without one it settles the
// final margin against the pick's own line.
func spreadOutcome(pick types.Pick, game types.GameRecord) (types.PickStatus, error) {
	result := game.SpreadResult
	if result == "" {
		adjusted := float64(game.Margin()) + pick.Line
		switch {
		case adjusted > 0:
			result = types.SpreadCovered
		case adjusted < 0:
			result = types.SpreadLost
		default:
			result = types.SpreadPush
		}
	}

	if result == types.SpreadPush {
		return types.PickPush, nil
	}
	homeCovered := result == types.SpreadCovered
	switch pick.Side {
	case types.DirectionHome:
		return winOrLoss(homeCovered), nil
	case types.DirectionAway:
		return winOrLoss(!homeCovered), nil
	default:
		return "", fmt.Errorf("spread pick %s has side %q: %w", pick.ID, pick.Side, ErrUngradable)
	}
}

func totalOutcome(pick types.Pick, game types.GameRecord) (types.PickStatus, error) {
	result := game.TotalResult
	if result == "" {
		points := float64(game.Points())
		switch {
		case points > pick.Line:
			result = types.TotalOver
		case points < pick.Line:
			result = types.TotalUnder
		default:
			result = types.TotalPush
		}
	}

	if result == types.TotalPush {
		return types.PickPush, nil
	}
	over := result == types.TotalOver
	switch pick.Side {
	case types.DirectionOver:
		return winOrLoss(over), nil
	case types.DirectionUnder:
		return winOrLoss(!over), nil
	default:
		return "", fmt.Errorf("total pick %s has side %q: %w", pick.ID, pick.Side, ErrUngradable)
	}
}

func winOrLoss(won bool) types.PickStatus {
	if won {
		return types.PickWin
	}
	return types.PickLoss
}

// Units is the one-unit result at standard -110 pricing
func Units(status types.PickStatus) decimal.Decimal {
	switch status {
	case types.PickWin:
		return oddsmath.StandardWinUnits()
	case types.PickLoss:
		return oddsmath.StandardLossUnits()
	default:
		return decimal.Zero
	}
}

// Grade settles a pick and returns the graded copy. The input pick is not modified.
func Grade(pick types.Pick, game types.GameRecord, gradedAt time.Time) (types.GradedPick, error) {
	status, err := Outcome(pick, game)
	if err != nil {
		return types.GradedPick{}, err
	}

	settled := pick
	settled.Status = status
	settled.Signals = append([]types.SignalResult(nil), pick.Signals...)
	return types.GradedPick{
		Pick:     settled,
		Result:   status,
		Units:    Units(status),
		GradedAt: gradedAt,
	}, nil
}

// GradePicks settles every pending pick whose game is final, stamping the current time
func GradePicks(pending []types.Pick, settled []types.GameRecord) []types.GradedPick {
	return GradePicksAt(pending, settled, time.Now().UTC())
}

// GradePicksAt settles every pending pick whose game is final. Picks without a final game,
// already-settled picks and ungradable picks are left out. Output follows input order.
func GradePicksAt(pending []types.Pick, settled []types.GameRecord, gradedAt time.Time) []types.GradedPick {
	games := make(map[string]types.GameRecord, len(settled))
	for _, g := range settled {
		games[g.ID] = g
	}

	graded := make([]types.GradedPick, 0, len(pending))
	for _, pick := range pending {
		game, ok := games[pick.GameID]
		if !ok {
			continue
		}
		gp, err := Grade(pick, game, gradedAt)
		if err != nil {
			continue
		}
		graded = append(graded, gp)
	}
	return graded
}
