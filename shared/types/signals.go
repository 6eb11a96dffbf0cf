package types

// Direction is the side a signal or pick leans toward
type Direction string

const (
	DirectionHome    Direction = "home"
	DirectionAway    Direction = "away"
	DirectionOver    Direction = "over"
	DirectionUnder   Direction = "under"
	DirectionNeutral Direction = "neutral"
)

// Directions lists the non-neutral directions in tie-break order
var Directions = []Direction{DirectionHome, DirectionAway, DirectionOver, DirectionUnder}

// Opposite returns the other side of the same market. Neutral is its own opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionHome:
		return DirectionAway
	case DirectionAway:
		return DirectionHome
	case DirectionOver:
		return DirectionUnder
	case DirectionUnder:
		return DirectionOver
	default:
		return DirectionNeutral
	}
}

// Opposes reports whether d and other are the two sides of one market
func (d Direction) Opposes(other Direction) bool {
	return d != DirectionNeutral && other == d.Opposite()
}

// Strength buckets a signal's magnitude
type Strength string

const (
	StrengthStrong   Strength = "strong"
	StrengthModerate Strength = "moderate"
	StrengthWeak     Strength = "weak"
	StrengthNoise    Strength = "noise"
)

// IsSignificant is true for strong and moderate signals
func (s Strength) IsSignificant() bool {
	return s == StrengthStrong || s == StrengthModerate
}

// SignalCategory names a signal family; weight tables are keyed by it
type SignalCategory string

const (
	CategoryModelEdge  SignalCategory = "model_edge"
	CategoryRatingEdge SignalCategory = "rating_edge"
	CategoryRecentForm SignalCategory = "recent_form"
	CategorySeasonATS  SignalCategory = "season_ats"
	CategoryHeadToHead SignalCategory = "head_to_head"
	CategoryRest       SignalCategory = "rest"
	CategoryMarketEdge SignalCategory = "market_edge"
	CategoryPace       SignalCategory = "pace"
	CategoryWeather    SignalCategory = "weather"
)

// SignalResult is one signal's opinion about one game and market.
// Magnitude 0 with confidence 0 means no opinion.
type SignalResult struct {
	Category   SignalCategory `json:"category"`
	Direction  Direction      `json:"direction"`
	Magnitude  float64        `json:"magnitude"`
	Confidence float64        `json:"confidence"`
	Strength   Strength       `json:"strength"`
	Label      string         `json:"label"`
}

// NeutralSignal is the result a signal returns when it has no opinion
func NeutralSignal(category SignalCategory, label string) SignalResult {
	return SignalResult{
		Category:   category,
		Direction:  DirectionNeutral,
		Magnitude:  0,
		Confidence: 0,
		Strength:   StrengthNoise,
		Label:      label,
	}
}

// IsActive reports whether the signal takes a side
func (r SignalResult) IsActive() bool {
	return r.Direction != DirectionNeutral && r.Magnitude > 0
}
