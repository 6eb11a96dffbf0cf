package snapshot

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// Store is a point-in-time view over published team rating snapshots. Snapshots are
// date-granular: a snapshot dated D reflects games completed before D and is visible
// to lookups on D and later.
type Store struct {
	mu       sync.RWMutex
	byTeam   map[string][]types.TeamRatingSnapshot
	settings settings
}

// NewStore copies snapshots into a per-team chain sorted by AsOfDate. Two snapshots for
// the same team and date must be identical.
func NewStore(snapshots []types.TeamRatingSnapshot, opts ...Option) (*Store, error) {
	s := &Store{
		byTeam:   make(map[string][]types.TeamRatingSnapshot),
		settings: newSettings(opts),
	}

	for _, snap := range snapshots {
		snap.AsOfDate = types.Day(snap.AsOfDate)
		s.byTeam[snap.Team] = append(s.byTeam[snap.Team], snap)
	}

	for team, chain := range s.byTeam {
		sort.SliceStable(chain, func(i, j int) bool {
			return chain[i].AsOfDate.Before(chain[j].AsOfDate)
		})
		deduped := chain[:0]
		for _, snap := range chain {
			if n := len(deduped); n > 0 && deduped[n-1].AsOfDate.Equal(snap.AsOfDate) {
				if deduped[n-1] != snap {
					return nil, fmt.Errorf("%w: conflicting snapshots for %s on %s",
						apperrors.ErrSnapshotRevision, team, types.DateKey(snap.AsOfDate))
				}
				continue
			}
			deduped = append(deduped, snap)
		}
		s.byTeam[team] = deduped
	}

	return s, nil
}

// Lookup returns the latest snapshot for team with AsOfDate <= date
func (s *Store) Lookup(team string, date time.Time) (types.TeamRatingSnapshot, bool) {
	day := types.Day(date)

	s.mu.RLock()
	chain := s.byTeam[team]
	// first index with AsOfDate > day; the answer sits just before it
	idx := sort.Search(len(chain), func(i int) bool {
		return chain[i].AsOfDate.After(day)
	})
	var snap types.TeamRatingSnapshot
	if idx > 0 {
		snap = chain[idx-1]
	}
	s.mu.RUnlock()

	if idx == 0 {
		return types.TeamRatingSnapshot{}, false
	}
	if snap.AsOfDate.After(day) {
		return types.TeamRatingSnapshot{}, s.settings.guard(&apperrors.LookaheadViolationError{
			Team:      team,
			Requested: day,
			Returned:  snap.AsOfDate,
		})
	}
	return snap, true
}

// Append publishes a new snapshot. It must be dated strictly after the team's latest one.
func (s *Store) Append(snap types.TeamRatingSnapshot) error {
	snap.AsOfDate = types.Day(snap.AsOfDate)

	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.byTeam[snap.Team]
	if n := len(chain); n > 0 && !snap.AsOfDate.After(chain[n-1].AsOfDate) {
		return fmt.Errorf("%w: %s already published through %s, got %s", apperrors.ErrSnapshotRevision,
			snap.Team, types.DateKey(chain[n-1].AsOfDate), types.DateKey(snap.AsOfDate))
	}
	s.byTeam[snap.Team] = append(chain, snap)
	return nil
}

// Teams returns every team with at least one snapshot, sorted
func (s *Store) Teams() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	teams := make([]string, 0, len(s.byTeam))
	for team := range s.byTeam {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	return teams
}

// Len is the total number of snapshots held
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, chain := range s.byTeam {
		total += len(chain)
	}
	return total
}

// LeagueAverages are the mean efficiency ratings across every team known as of a date
type LeagueAverages struct {
	Offense float64 `json:"offense"`
	Defense float64 `json:"defense"`
	Tempo   float64 `json:"tempo"`
	Teams   int     `json:"teams"`
}

// Averages computes LeagueAverages from each team's point-in-time snapshot
func (s *Store) Averages(date time.Time) (LeagueAverages, bool) {
	var avg LeagueAverages
	for _, team := range s.Teams() {
		snap, ok := s.Lookup(team, date)
		if !ok {
			continue
		}
		avg.Offense += snap.AdjOffense
		avg.Defense += snap.AdjDefense
		avg.Tempo += snap.AdjTempo
		avg.Teams++
	}
	if avg.Teams == 0 {
		return LeagueAverages{}, false
	}
	n := float64(avg.Teams)
	avg.Offense /= n
	avg.Defense /= n
	avg.Tempo /= n
	return avg, true
}
