package signals

import (
	"fmt"

	"github.com/stitts-dev/pick-engine/shared/types"
)

// Func is a signal: a pure function of its context
type Func func(*Context) types.SignalResult

// Definition is a registered signal and the markets it serves
type Definition struct {
	Category types.SignalCategory
	Markets  []types.Market
	Compute  Func
}

func (d Definition) serves(market types.Market) bool {
	for _, m := range d.Markets {
		if m == market {
			return true
		}
	}
	return false
}

// Library holds signals in registration order. Signals are independent: adding or removing
// one never changes another's result.
type Library struct {
	defs []Definition
}

func NewLibrary() *Library {
	return &Library{}
}

// DefaultLibrary registers every built-in signal
func DefaultLibrary() *Library {
	lib := NewLibrary()
	both := []types.Market{types.MarketSpread, types.MarketTotal}
	spread := []types.Market{types.MarketSpread}
	total := []types.Market{types.MarketTotal}

	lib.mustRegister(types.CategoryModelEdge, ModelEdge, both...)
	lib.mustRegister(types.CategoryRatingEdge, RatingEdge, spread...)
	lib.mustRegister(types.CategoryMarketEdge, MarketEdge, spread...)
	lib.mustRegister(types.CategoryRecentForm, RecentForm, both...)
	lib.mustRegister(types.CategorySeasonATS, SeasonATS, both...)
	lib.mustRegister(types.CategoryHeadToHead, HeadToHead, both...)
	lib.mustRegister(types.CategoryRest, Rest, both...)
	lib.mustRegister(types.CategoryPace, Pace, total...)
	lib.mustRegister(types.CategoryWeather, Weather, total...)
	return lib
}

// Register adds a signal. A category may only be registered once.
func (l *Library) Register(category types.SignalCategory, fn Func, markets ...types.Market) error {
	if fn == nil {
		return fmt.Errorf("signal %s has no compute function", category)
	}
	if len(markets) == 0 {
		return fmt.Errorf("signal %s serves no markets", category)
	}
	for _, d := range l.defs {
		if d.Category == category {
			return fmt.Errorf("signal %s already registered", category)
		}
	}
	l.defs = append(l.defs, Definition{Category: category, Markets: markets, Compute: fn})
	return nil
}

func (l *Library) mustRegister(category types.SignalCategory, fn Func, markets ...types.Market) {
	if err := l.Register(category, fn, markets...); err != nil {
		panic(err)
	}
}

// Remove drops a signal; it reports whether one was registered
func (l *Library) Remove(category types.SignalCategory) bool {
	for i, d := range l.defs {
		if d.Category == category {
			l.defs = append(l.defs[:i:i], l.defs[i+1:]...)
			return true
		}
	}
	return false
}

// Categories lists the signals serving market, in registration order
func (l *Library) Categories(market types.Market) []types.SignalCategory {
	var out []types.SignalCategory
	for _, d := range l.defs {
		if d.serves(market) {
			out = append(out, d.Category)
		}
	}
	return out
}

// Evaluate runs every signal serving the context's market, in registration order
func (l *Library) Evaluate(c *Context) []types.SignalResult {
	results := make([]types.SignalResult, 0, len(l.defs))
	for _, d := range l.defs {
		if !d.serves(c.Market) {
			continue
		}
		result := d.Compute(c)
		result.Category = d.Category
		results = append(results, result)
	}
	return results
}
