package snapshot

import (
	"sort"
	"time"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// HistoryIndex is a point-in-time view over completed games. Every query takes a cutoff
// date and only returns games played strictly before that day.
type HistoryIndex struct {
	byTeam   map[string][]types.GameRecord
	settings settings
}

// NewHistoryIndex indexes the final games in games by team. Games that are not final are
// ignored. The input slice is not modified.
func NewHistoryIndex(games []types.GameRecord, opts ...Option) *HistoryIndex {
	h := &HistoryIndex{
		byTeam:   make(map[string][]types.GameRecord),
		settings: newSettings(opts),
	}

	for _, g := range games {
		if !g.Final {
			continue
		}
		g.GameDate = types.Day(g.GameDate)
		h.byTeam[g.HomeTeam] = append(h.byTeam[g.HomeTeam], g)
		h.byTeam[g.AwayTeam] = append(h.byTeam[g.AwayTeam], g)
	}
	for _, list := range h.byTeam {
		sort.SliceStable(list, func(i, j int) bool {
			if !list[i].GameDate.Equal(list[j].GameDate) {
				return list[i].GameDate.Before(list[j].GameDate)
			}
			return list[i].ID < list[j].ID
		})
	}
	return h
}

// before returns team's games strictly before date in chronological order
func (h *HistoryIndex) before(team string, date time.Time) []types.GameRecord {
	day := types.Day(date)
	list := h.byTeam[team]
	idx := sort.Search(len(list), func(i int) bool {
		return !list[i].GameDate.Before(day)
	})
	out := list[:idx]
	if n := len(out); n > 0 && !out[n-1].GameDate.Before(day) {
		if !h.settings.guard(&apperrors.LookaheadViolationError{Team: team, Requested: day, Returned: out[n-1].GameDate}) {
			return nil
		}
	}
	return out
}

// TeamGamesBefore returns the team's last n games before date, oldest first.
// n <= 0 returns every prior game.
func (h *HistoryIndex) TeamGamesBefore(team string, date time.Time, n int) []types.GameRecord {
	prior := h.before(team, date)
	if n > 0 && len(prior) > n {
		prior = prior[len(prior)-n:]
	}
	return append([]types.GameRecord(nil), prior...)
}

// SeasonGamesBefore returns the team's games in season played before date
func (h *HistoryIndex) SeasonGamesBefore(team string, season int, date time.Time) []types.GameRecord {
	var out []types.GameRecord
	for _, g := range h.before(team, date) {
		if g.Season == season {
			out = append(out, g)
		}
	}
	return out
}

// MeetingsBefore returns up to n prior games between a and b, oldest first
func (h *HistoryIndex) MeetingsBefore(a, b string, date time.Time, n int) []types.GameRecord {
	var out []types.GameRecord
	for _, g := range h.before(a, date) {
		if g.HasTeam(b) {
			out = append(out, g)
		}
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// LastGameBefore returns the team's most recent game before date
func (h *HistoryIndex) LastGameBefore(team string, date time.Time) (types.GameRecord, bool) {
	prior := h.before(team, date)
	if len(prior) == 0 {
		return types.GameRecord{}, false
	}
	return prior[len(prior)-1], true
}

// Teams is the number of teams with at least one indexed game
func (h *HistoryIndex) Teams() int {
	return len(h.byTeam)
}
