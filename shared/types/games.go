package types

import (
	"time"
)

// SpreadResult is the settled against-the-spread outcome from the home team's side
type SpreadResult string

const (
	SpreadCovered SpreadResult = "COVERED"
	SpreadLost    SpreadResult = "LOST"
	SpreadPush    SpreadResult = "PUSH"
)

// TotalResult is the settled over/under outcome
type TotalResult string

const (
	TotalOver  TotalResult = "OVER"
	TotalUnder TotalResult = "UNDER"
	TotalPush  TotalResult = "PUSH"
)

// TeamRatingSnapshot is a team's efficiency ratings as published on AsOfDate.
// A published snapshot is never revised.
type TeamRatingSnapshot struct {
	Team       string    `json:"team"`
	Sport      Sport     `json:"sport"`
	AsOfDate   time.Time `json:"as_of_date"`
	AdjOffense float64   `json:"adj_offense"`
	AdjDefense float64   `json:"adj_defense"`
	AdjTempo   float64   `json:"adj_tempo"`
	Rank       int       `json:"rank"`
}

// EfficiencyMargin is offense minus defense
func (s TeamRatingSnapshot) EfficiencyMargin() float64 {
	return s.AdjOffense - s.AdjDefense
}

// GameRecord is a single game with its market lines and, once final, its settled outcomes.
// Spread is the home team's line: -5.5 means the home team is favoured by 5.5.
type GameRecord struct {
	ID             string       `json:"id"`
	Sport          Sport        `json:"sport"`
	Season         int          `json:"season"`
	GameDate       time.Time    `json:"game_date"`
	HomeTeam       string       `json:"home_team"`
	AwayTeam       string       `json:"away_team"`
	HomeScore      int          `json:"home_score"`
	AwayScore      int          `json:"away_score"`
	Final          bool         `json:"final"`
	Spread         *float64     `json:"spread,omitempty"`
	Total          *float64     `json:"total,omitempty"`
	HomeMoneyline  *int         `json:"home_moneyline,omitempty"`
	AwayMoneyline  *int         `json:"away_moneyline,omitempty"`
	NeutralSite    bool         `json:"neutral_site"`
	ConferenceGame bool         `json:"conference_game"`
	Tournament     bool         `json:"tournament"`
	SpreadResult   SpreadResult `json:"spread_result,omitempty"`
	TotalResult    TotalResult  `json:"total_result,omitempty"`
}

// Margin is home score minus away score
func (g GameRecord) Margin() int {
	return g.HomeScore - g.AwayScore
}

// Points is the combined score
func (g GameRecord) Points() int {
	return g.HomeScore + g.AwayScore
}

// HasTeam reports whether team played in the game
func (g GameRecord) HasTeam(team string) bool {
	return g.HomeTeam == team || g.AwayTeam == team
}

// Opponent returns the other team in the game
func (g GameRecord) Opponent(team string) string {
	if g.HomeTeam == team {
		return g.AwayTeam
	}
	return g.HomeTeam
}

// SettleSpread returns the stored spread outcome, deriving it from the final score
// and closing line when the stored value is blank. Empty when it cannot be settled.
func (g GameRecord) SettleSpread() SpreadResult {
	if g.SpreadResult != "" {
		return g.SpreadResult
	}
	if !g.Final || g.Spread == nil {
		return ""
	}
	adjusted := float64(g.Margin()) + *g.Spread
	switch {
	case adjusted > 0:
		return SpreadCovered
	case adjusted < 0:
		return SpreadLost
	default:
		return SpreadPush
	}
}

// SettleTotal returns the stored total outcome, deriving it from the final score when blank
func (g GameRecord) SettleTotal() TotalResult {
	if g.TotalResult != "" {
		return g.TotalResult
	}
	if !g.Final || g.Total == nil {
		return ""
	}
	points := float64(g.Points())
	switch {
	case points > *g.Total:
		return TotalOver
	case points < *g.Total:
		return TotalUnder
	default:
		return TotalPush
	}
}

// CoveredBy reports whether team covered the spread in this game. ok is false when
// the game has no settled spread outcome or the result was a push.
func (g GameRecord) CoveredBy(team string) (covered bool, ok bool) {
	result := g.SettleSpread()
	if result == "" || result == SpreadPush || !g.HasTeam(team) {
		return false, false
	}
	homeCovered := result == SpreadCovered
	if team == g.HomeTeam {
		return homeCovered, true
	}
	return !homeCovered, true
}

// WentOver reports whether the game went over. ok is false on a push or unsettled total.
func (g GameRecord) WentOver() (over bool, ok bool) {
	result := g.SettleTotal()
	if result == "" || result == TotalPush {
		return false, false
	}
	return result == TotalOver, true
}

// MergeOdds fills odds fields missing from g with values from enrichment. Settled
// outcomes, scores and identity are never touched.
func (g GameRecord) MergeOdds(enrichment GameRecord) GameRecord {
	merged := g
	if merged.Spread == nil && enrichment.Spread != nil {
		v := *enrichment.Spread
		merged.Spread = &v
	}
	if merged.Total == nil && enrichment.Total != nil {
		v := *enrichment.Total
		merged.Total = &v
	}
	if merged.HomeMoneyline == nil && enrichment.HomeMoneyline != nil {
		v := *enrichment.HomeMoneyline
		merged.HomeMoneyline = &v
	}
	if merged.AwayMoneyline == nil && enrichment.AwayMoneyline != nil {
		v := *enrichment.AwayMoneyline
		merged.AwayMoneyline = &v
	}
	return merged
}

// WeatherConditions is the forecast for an outdoor venue
type WeatherConditions struct {
	WindMPH           float64 `json:"wind_mph"`
	PrecipitationProb float64 `json:"precipitation_prob"`
	TemperatureF      float64 `json:"temperature_f"`
}

// GameContext is an upcoming game that needs a pick, with its current lines and flags
type GameContext struct {
	Game    GameRecord         `json:"game"`
	Indoor  bool               `json:"indoor"`
	Weather *WeatherConditions `json:"weather,omitempty"`
}

// EloRating is a team's rating immediately after the game identified by GameID
type EloRating struct {
	Team   string    `json:"team"`
	Sport  Sport     `json:"sport"`
	Date   time.Time `json:"date"`
	Rating float64   `json:"rating"`
	GameID string    `json:"game_id,omitempty"`
}

// Float64Ptr is a convenience for optional line fields
func Float64Ptr(v float64) *float64 {
	return &v
}

// IntPtr is a convenience for optional moneyline fields
func IntPtr(v int) *int {
	return &v
}
