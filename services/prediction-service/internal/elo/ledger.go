package elo

import (
	"sort"
	"time"

	"github.com/stitts-dev/pick-engine/shared/types"
)

type point struct {
	effective time.Time
	rating    float64
}

// Ledger is the output of a replay: the full rating history plus point-in-time access.
// A post-game rating takes effect the day after the game; a season regression takes effect
// on the first day of the new season.
type Ledger struct {
	sport    types.Sport
	params   Params
	history  []types.EloRating
	timeline map[string][]point
	final    map[string]float64
}

func newLedger(sport types.Sport, params Params) *Ledger {
	return &Ledger{
		sport:    sport,
		params:   params,
		timeline: make(map[string][]point),
		final:    make(map[string]float64),
	}
}

func (l *Ledger) record(team string, date time.Time, rating float64, gameID string, afterGame bool) {
	l.history = append(l.history, types.EloRating{
		Team:   team,
		Sport:  l.sport,
		Date:   date,
		Rating: rating,
		GameID: gameID,
	})

	effective := types.Day(date)
	if afterGame {
		effective = effective.AddDate(0, 0, 1)
	}
	l.timeline[team] = append(l.timeline[team], point{effective: effective, rating: rating})
	l.final[team] = rating
}

// seal orders each timeline by effective date once the replay is done
func (l *Ledger) seal() {
	for _, points := range l.timeline {
		sort.SliceStable(points, func(i, j int) bool {
			return points[i].effective.Before(points[j].effective)
		})
	}
}

func (l *Ledger) Sport() types.Sport {
	return l.sport
}

func (l *Ledger) Params() Params {
	return l.params
}

// History returns every rating change in replay order
func (l *Ledger) History() []types.EloRating {
	return append([]types.EloRating(nil), l.history...)
}

// Final returns each team's rating after the last replayed game
func (l *Ledger) Final() map[string]float64 {
	out := make(map[string]float64, len(l.final))
	for team, rating := range l.final {
		out[team] = rating
	}
	return out
}

// FinalRatings returns Final as rating records sorted by team
func (l *Ledger) FinalRatings() []types.EloRating {
	out := make([]types.EloRating, 0, len(l.final))
	for team := range l.final {
		out = append(out, l.lastEntry(team))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Team < out[j].Team })
	return out
}

func (l *Ledger) lastEntry(team string) types.EloRating {
	for i := len(l.history) - 1; i >= 0; i-- {
		if l.history[i].Team == team {
			return l.history[i]
		}
	}
	return types.EloRating{}
}

// Lookup returns the team's rating going into games on date. ok is false when the team
// had no rating yet.
func (l *Ledger) Lookup(team string, date time.Time) (float64, bool) {
	day := types.Day(date)
	points := l.timeline[team]
	idx := sort.Search(len(points), func(i int) bool {
		return points[i].effective.After(day)
	})
	if idx == 0 {
		return 0, false
	}
	return points[idx-1].rating, true
}

// AsOf is Lookup with unseen teams at the initial rating
func (l *Ledger) AsOf(team string, date time.Time) float64 {
	if r, ok := l.Lookup(team, date); ok {
		return r
	}
	return l.params.Initial
}
