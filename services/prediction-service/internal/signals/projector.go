package signals

import (
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/regression"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/snapshot"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// Projection sources
const (
	SourceRegression = "regression"
	SourceEfficiency = "efficiency"
)

// Projection is the model's view of a game: home margin and combined total
type Projection struct {
	Margin           *float64 `json:"margin,omitempty"`
	Total            *float64 `json:"total,omitempty"`
	MarginSource     string   `json:"margin_source,omitempty"`
	TotalSource      string   `json:"total_source,omitempty"`
	MarginConfidence float64  `json:"margin_confidence"`
	TotalConfidence  float64  `json:"total_confidence"`
}

// Projector turns two point-in-time snapshots into a Projection. Fitted regression models
// win over the efficiency formula for whichever target they cover.
type Projector struct {
	MarginModel          *regression.Model
	TotalModel           *regression.Model
	HomeCourtPoints      float64
	RegressionConfidence float64
	EfficiencyConfidence float64
}

// NewProjector builds a projector; either model may be nil
func NewProjector(marginModel, totalModel *regression.Model, settings Settings) *Projector {
	return &Projector{
		MarginModel:          marginModel,
		TotalModel:           totalModel,
		HomeCourtPoints:      settings.HomeCourtPoints,
		RegressionConfidence: 0.8,
		EfficiencyConfidence: 0.6,
	}
}

// Project returns nil when neither snapshot pair nor league averages allow a projection
func (p *Projector) Project(home, away *types.TeamRatingSnapshot, league *snapshot.LeagueAverages, neutral bool) *Projection {
	if home == nil || away == nil {
		return nil
	}

	proj := &Projection{}
	if margin, total, ok := p.efficiency(*home, *away, league, neutral); ok {
		proj.Margin, proj.MarginSource, proj.MarginConfidence = &margin, SourceEfficiency, p.EfficiencyConfidence
		proj.Total, proj.TotalSource, proj.TotalConfidence = &total, SourceEfficiency, p.EfficiencyConfidence
	}
	if v, ok := p.predict(p.MarginModel, *home, *away, neutral); ok {
		proj.Margin, proj.MarginSource, proj.MarginConfidence = &v, SourceRegression, p.RegressionConfidence
	}
	if v, ok := p.predict(p.TotalModel, *home, *away, neutral); ok {
		proj.Total, proj.TotalSource, proj.TotalConfidence = &v, SourceRegression, p.RegressionConfidence
	}

	if proj.Margin == nil && proj.Total == nil {
		return nil
	}
	return proj
}

func (p *Projector) predict(model *regression.Model, home, away types.TeamRatingSnapshot, neutral bool) (float64, bool) {
	if model == nil {
		return 0, false
	}
	features, err := regression.ExtractFeatures(model.FeatureNames, home, away, neutral)
	if err != nil {
		return 0, false
	}
	return model.Predict(features)
}

// efficiency is the tempo-free projection: possessions from both tempos relative to the
// league, points per possession from each offense against the other defense.
func (p *Projector) efficiency(home, away types.TeamRatingSnapshot, league *snapshot.LeagueAverages, neutral bool) (float64, float64, bool) {
	if league == nil || league.Tempo <= 0 || league.Offense <= 0 {
		return 0, 0, false
	}
	if home.AdjTempo <= 0 || away.AdjTempo <= 0 {
		return 0, 0, false
	}

	possessions := home.AdjTempo * away.AdjTempo / league.Tempo
	homePts := possessions * (home.AdjOffense * away.AdjDefense / league.Offense) / 100
	awayPts := possessions * (away.AdjOffense * home.AdjDefense / league.Offense) / 100
	if !neutral {
		homePts += p.HomeCourtPoints / 2
		awayPts -= p.HomeCourtPoints / 2
	}
	return homePts - awayPts, homePts + awayPts, true
}
