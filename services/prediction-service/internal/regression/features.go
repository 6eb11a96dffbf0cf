package regression

import (
	"fmt"
	"sort"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/apperrors"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// Feature names understood by ExtractFeatures
const (
	FeatureSumOE        = "sum_oe"
	FeatureSumDE        = "sum_de"
	FeatureAvgTempo     = "avg_tempo"
	FeatureTempoProduct = "tempo_product"
	FeatureDiffOE       = "diff_oe"
	FeatureDiffDE       = "diff_de"
	FeatureEMDiff       = "em_diff"
	FeatureHomeCourt    = "home_court"
)

// Targets a model can be trained against
const (
	TargetTotal  = "total"
	TargetMargin = "margin"
)

var catalog = map[string]func(home, away types.TeamRatingSnapshot, neutral bool) float64{
	FeatureSumOE: func(h, a types.TeamRatingSnapshot, _ bool) float64 {
		return h.AdjOffense + a.AdjOffense
	},
	FeatureSumDE: func(h, a types.TeamRatingSnapshot, _ bool) float64 {
		return h.AdjDefense + a.AdjDefense
	},
	FeatureAvgTempo: func(h, a types.TeamRatingSnapshot, _ bool) float64 {
		return (h.AdjTempo + a.AdjTempo) / 2
	},
	FeatureTempoProduct: func(h, a types.TeamRatingSnapshot, _ bool) float64 {
		return h.AdjTempo * a.AdjTempo / 100
	},
	FeatureDiffOE: func(h, a types.TeamRatingSnapshot, _ bool) float64 {
		return h.AdjOffense - a.AdjOffense
	},
	FeatureDiffDE: func(h, a types.TeamRatingSnapshot, _ bool) float64 {
		return h.AdjDefense - a.AdjDefense
	},
	FeatureEMDiff: func(h, a types.TeamRatingSnapshot, _ bool) float64 {
		return h.EfficiencyMargin() - a.EfficiencyMargin()
	},
	FeatureHomeCourt: func(_, _ types.TeamRatingSnapshot, neutral bool) float64 {
		if neutral {
			return 0
		}
		return 1
	},
}

// KnownFeatures returns the catalog's feature names, sorted
func KnownFeatures() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateFeatureNames rejects empty, duplicate or unknown feature names
func ValidateFeatureNames(names []string) error {
	if len(names) == 0 {
		return apperrors.NewConfigError("feature set", "no features selected")
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := catalog[name]; !ok {
			return apperrors.NewConfigError("feature set", "unknown feature %q", name)
		}
		if seen[name] {
			return apperrors.NewConfigError("feature set", "duplicate feature %q", name)
		}
		seen[name] = true
	}
	return nil
}

// ValidateTarget rejects unknown training targets
func ValidateTarget(target string) error {
	if target != TargetTotal && target != TargetMargin {
		return apperrors.NewConfigError("regression target", "unknown target %q", target)
	}
	return nil
}

// ExtractFeatures computes the named features for a matchup
func ExtractFeatures(names []string, home, away types.TeamRatingSnapshot, neutral bool) (map[string]float64, error) {
	out := make(map[string]float64, len(names))
	for _, name := range names {
		fn, ok := catalog[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown feature %q", apperrors.ErrInvalidInput, name)
		}
		out[name] = fn(home, away, neutral)
	}
	return out, nil
}

// TargetValue reads the training target from a final game
func TargetValue(target string, game types.GameRecord) (float64, bool) {
	if !game.Final {
		return 0, false
	}
	switch target {
	case TargetTotal:
		return float64(game.Points()), true
	case TargetMargin:
		return float64(game.Margin()), true
	default:
		return 0, false
	}
}
