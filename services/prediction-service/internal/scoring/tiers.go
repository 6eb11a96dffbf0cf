package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/shared/pkg/config"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// Tiers a pick can be assigned. TierReject means no pick.
const (
	TierReject = 0
	TierThree  = 3
	TierFour   = 4
	TierFive   = 5
)

// TierRule assigns Tier when both the score and the edge reach their minimums
type TierRule struct {
	Tier     int     `json:"tier"`
	MinScore float64 `json:"min_score"`
	MinEdge  float64 `json:"min_edge"`
}

// TierTable is one calibration's thresholds, keyed by sport/market. Tables are produced
// offline by the backtest harness and never edited in place.
type TierTable struct {
	Version      string                `json:"version"`
	CalibratedAt time.Time             `json:"calibrated_at"`
	Source       string                `json:"source"`
	Rules        map[string][]TierRule `json:"rules"`
}

// RulesFor returns the rules for a sport and market, highest tier first
func (t TierTable) RulesFor(sport types.Sport, market types.Market) []TierRule {
	return t.Rules[ruleKey(sport, market)]
}

// WithRules returns a copy of the table with the sport/market rules replaced
func (t TierTable) WithRules(sport types.Sport, market types.Market, rules []TierRule) TierTable {
	out := t.clone()
	out.Rules[ruleKey(sport, market)] = sortRules(rules)
	return out
}

// clone deep-copies the rules, ordering each list highest tier first
func (t TierTable) clone() TierTable {
	out := t
	out.Rules = make(map[string][]TierRule, len(t.Rules)+1)
	for k, v := range t.Rules {
		out.Rules[k] = sortRules(v)
	}
	return out
}

func (t TierTable) Validate() error {
	if t.Version == "" {
		return apperrors.NewConfigError("tier table", "missing version")
	}
	for key, rules := range t.Rules {
		seen := map[int]bool{}
		for _, r := range rules {
			if r.Tier != TierThree && r.Tier != TierFour && r.Tier != TierFive {
				return apperrors.NewConfigError("tier table", "%s has invalid tier %d", key, r.Tier)
			}
			if seen[r.Tier] {
				return apperrors.NewConfigError("tier table", "%s lists tier %d twice", key, r.Tier)
			}
			seen[r.Tier] = true
			if math.IsNaN(r.MinScore) || r.MinScore < 0 || r.MinScore > 100 {
				return apperrors.NewConfigError("tier table", "%s tier %d min score %v outside [0,100]", key, r.Tier, r.MinScore)
			}
			if math.IsNaN(r.MinEdge) || math.IsInf(r.MinEdge, 0) || r.MinEdge < 0 {
				return apperrors.NewConfigError("tier table", "%s tier %d min edge must be >= 0, got %v", key, r.Tier, r.MinEdge)
			}
		}
	}
	return nil
}

func sortRules(rules []TierRule) []TierRule {
	out := append([]TierRule(nil), rules...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tier > out[j].Tier })
	return out
}

// TierTableFromCalibration converts the calibration file's tier section
func TierTableFromCalibration(cal *config.Calibration) (TierTable, error) {
	if cal == nil {
		return TierTable{}, apperrors.NewConfigError("tier table", "no calibration")
	}
	calibratedAt := time.Time{}
	if cal.CalibratedAt != "" {
		parsed, err := time.Parse(time.RFC3339, cal.CalibratedAt)
		if err != nil {
			return TierTable{}, apperrors.NewConfigError("tier table", "calibrated_at %q is not RFC3339", cal.CalibratedAt)
		}
		calibratedAt = parsed.UTC()
	}

	table := TierTable{
		Version:      cal.Version,
		CalibratedAt: calibratedAt,
		Source:       cal.Source,
		Rules:        make(map[string][]TierRule),
	}
	for sport, markets := range cal.Tiers {
		if !types.Sport(sport).IsValid() {
			return TierTable{}, apperrors.NewConfigError("tier table", "unknown sport %q", sport)
		}
		for market, settings := range markets {
			if !types.Market(market).IsValid() {
				return TierTable{}, apperrors.NewConfigError("tier table", "unknown market %q for %s", market, sport)
			}
			rules := make([]TierRule, 0, len(settings))
			for _, s := range settings {
				rules = append(rules, TierRule{Tier: s.Tier, MinScore: s.MinScore, MinEdge: s.MinEdge})
			}
			table.Rules[ruleKey(types.Sport(sport), types.Market(market))] = sortRules(rules)
		}
	}
	if err := table.Validate(); err != nil {
		return TierTable{}, err
	}
	return table, nil
}

// ApplyTo returns a copy of cal carrying this table's version and tier section. Weights
// and Elo parameters are shared with cal.
func (t TierTable) ApplyTo(cal *config.Calibration) *config.Calibration {
	out := *cal
	out.Version = t.Version
	out.Source = t.Source
	out.CalibratedAt = ""
	if !t.CalibratedAt.IsZero() {
		out.CalibratedAt = t.CalibratedAt.UTC().Format(time.RFC3339)
	}
	out.Tiers = make(map[string]map[string][]config.TierThresholdSetting)
	for key, rules := range t.Rules {
		sport, market, ok := strings.Cut(key, "/")
		if !ok {
			continue
		}
		if out.Tiers[sport] == nil {
			out.Tiers[sport] = make(map[string][]config.TierThresholdSetting)
		}
		settings := make([]config.TierThresholdSetting, 0, len(rules))
		for _, r := range sortRules(rules) {
			settings = append(settings, config.TierThresholdSetting{Tier: r.Tier, MinScore: r.MinScore, MinEdge: r.MinEdge})
		}
		out.Tiers[sport][market] = settings
	}
	return &out
}

// TierRegistry is the append-only history of tier tables
type TierRegistry struct {
	mu     sync.RWMutex
	tables []TierTable
}

func NewTierRegistry() *TierRegistry {
	return &TierRegistry{}
}

// Append adds a new calibration. Versions are unique and calibration times never go backwards.
func (r *TierRegistry) Append(table TierTable) error {
	if err := table.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.tables {
		if existing.Version == table.Version {
			return apperrors.NewConfigError("tier registry", "version %q already published", table.Version)
		}
	}
	if n := len(r.tables); n > 0 && table.CalibratedAt.Before(r.tables[n-1].CalibratedAt) {
		return apperrors.NewConfigError("tier registry", "version %q calibrated at %s predates latest %s",
			table.Version, table.CalibratedAt.Format(time.RFC3339), r.tables[n-1].CalibratedAt.Format(time.RFC3339))
	}

	r.tables = append(r.tables, table.clone())
	return nil
}

// Latest returns the most recently appended table
func (r *TierRegistry) Latest() (TierTable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.tables) == 0 {
		return TierTable{}, false
	}
	return r.tables[len(r.tables)-1].clone(), true
}

// Version returns a specific table
func (r *TierRegistry) Version(version string) (TierTable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tables {
		if t.Version == version {
			return t.clone(), true
		}
	}
	return TierTable{}, false
}

// Versions lists every version in append order
func (r *TierRegistry) Versions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.tables))
	for i, t := range r.tables {
		out[i] = t.Version
	}
	return out
}

// TierMapper assigns tiers from one table
type TierMapper struct {
	table TierTable
}

func NewTierMapper(table TierTable) (*TierMapper, error) {
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("cannot build tier mapper: %w", err)
	}
	return &TierMapper{table: table.clone()}, nil
}

func (m *TierMapper) Version() string {
	return m.table.Version
}

func (m *TierMapper) Table() TierTable {
	return m.table.clone()
}

// Map returns the highest tier whose minimums score and edge both reach, or TierReject.
// edge is measured in favour of the picked side.
func (m *TierMapper) Map(sport types.Sport, market types.Market, score, edge float64) int {
	for _, rule := range m.table.RulesFor(sport, market) {
		if score >= rule.MinScore && edge >= rule.MinEdge {
			return rule.Tier
		}
	}
	return TierReject
}
