package scoring

import (
	"math"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/shared/pkg/config"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// DefaultFallbackWeight applies to categories a table does not list
const DefaultFallbackWeight = 0.1

// WeightTable maps signal categories to weights for one sport and market
type WeightTable struct {
	Sport    types.Sport                      `json:"sport"`
	Market   types.Market                     `json:"market"`
	Weights  map[types.SignalCategory]float64 `json:"weights"`
	Fallback float64                          `json:"fallback"`
}

// Weight returns the category's weight, or the fallback when the table omits it
func (w WeightTable) Weight(category types.SignalCategory) float64 {
	if v, ok := w.Weights[category]; ok {
		return v
	}
	return w.Fallback
}

func (w WeightTable) Validate() error {
	if math.IsNaN(w.Fallback) || math.IsInf(w.Fallback, 0) || w.Fallback < 0 {
		return apperrors.NewConfigError("weight table", "%s/%s fallback weight must be >= 0, got %v", w.Sport, w.Market, w.Fallback)
	}
	for category, v := range w.Weights {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return apperrors.NewConfigError("weight table", "%s/%s weight for %s must be >= 0, got %v", w.Sport, w.Market, category, v)
		}
	}
	return nil
}

// WeightBook holds every sport/market weight table
type WeightBook struct {
	tables   map[string]WeightTable
	fallback float64
}

func ruleKey(sport types.Sport, market types.Market) string {
	return string(sport) + "/" + string(market)
}

// NewWeightBook builds and validates the weight tables in a calibration
func NewWeightBook(cal *config.Calibration) (*WeightBook, error) {
	fallback := DefaultFallbackWeight
	if cal != nil && cal.FallbackWeight != 0 {
		fallback = cal.FallbackWeight
	}
	book := &WeightBook{tables: make(map[string]WeightTable), fallback: fallback}
	if cal == nil {
		return book, nil
	}

	for sport, markets := range cal.Weights {
		if !types.Sport(sport).IsValid() {
			return nil, apperrors.NewConfigError("weight table", "unknown sport %q", sport)
		}
		for market, weights := range markets {
			if !types.Market(market).IsValid() {
				return nil, apperrors.NewConfigError("weight table", "unknown market %q for %s", market, sport)
			}
			table := WeightTable{
				Sport:    types.Sport(sport),
				Market:   types.Market(market),
				Weights:  make(map[types.SignalCategory]float64, len(weights)),
				Fallback: fallback,
			}
			for category, w := range weights {
				table.Weights[types.SignalCategory(category)] = w
			}
			if err := book.Put(table); err != nil {
				return nil, err
			}
		}
	}
	return book, nil
}

// Put validates and stores a table, replacing any table for the same sport and market
func (b *WeightBook) Put(table WeightTable) error {
	if err := table.Validate(); err != nil {
		return err
	}
	b.tables[ruleKey(table.Sport, table.Market)] = table
	return nil
}

// Table returns the sport/market table; a missing table weights everything at the fallback
func (b *WeightBook) Table(sport types.Sport, market types.Market) WeightTable {
	if table, ok := b.tables[ruleKey(sport, market)]; ok {
		return table
	}
	return WeightTable{Sport: sport, Market: market, Weights: map[types.SignalCategory]float64{}, Fallback: b.fallback}
}
