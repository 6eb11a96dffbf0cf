package repository

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/regression"
	"github.com/stitts-dev/pick-engine/shared/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GameRow is a stored game with its lines and, once final, its settled outcomes
type GameRow struct {
	ID             string             `gorm:"primaryKey;size:100"`
	Sport          types.Sport        `gorm:"size:20;not null;index:idx_games_sport_date"`
	Season         int                `gorm:"not null;index"`
	GameDate       time.Time          `gorm:"not null;index:idx_games_sport_date"`
	HomeTeam       string             `gorm:"size:100;not null"`
	AwayTeam       string             `gorm:"size:100;not null"`
	HomeScore      int                `gorm:"default:0"`
	AwayScore      int                `gorm:"default:0"`
	Final          bool               `gorm:"default:false;index"`
	Spread         *float64
	Total          *float64
	HomeMoneyline  *int
	AwayMoneyline  *int
	NeutralSite    bool               `gorm:"default:false"`
	ConferenceGame bool               `gorm:"default:false"`
	Tournament     bool               `gorm:"default:false"`
	SpreadResult   types.SpreadResult `gorm:"size:10"`
	TotalResult    types.TotalResult  `gorm:"size:10"`
	Indoor         bool               `gorm:"default:false"`
	Weather        datatypes.JSON
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (GameRow) TableName() string {
	return "games"
}

func gameRowFrom(gc types.GameContext) GameRow {
	g := gc.Game
	row := GameRow{
		ID:             g.ID,
		Sport:          g.Sport,
		Season:         g.Season,
		GameDate:       g.GameDate.UTC(),
		HomeTeam:       g.HomeTeam,
		AwayTeam:       g.AwayTeam,
		HomeScore:      g.HomeScore,
		AwayScore:      g.AwayScore,
		Final:          g.Final,
		Spread:         g.Spread,
		Total:          g.Total,
		HomeMoneyline:  g.HomeMoneyline,
		AwayMoneyline:  g.AwayMoneyline,
		NeutralSite:    g.NeutralSite,
		ConferenceGame: g.ConferenceGame,
		Tournament:     g.Tournament,
		SpreadResult:   g.SpreadResult,
		TotalResult:    g.TotalResult,
		Indoor:         gc.Indoor,
	}
	if gc.Weather != nil {
		if data, err := json.Marshal(gc.Weather); err == nil {
			row.Weather = datatypes.JSON(data)
		}
	}
	return row
}

func (r GameRow) record() types.GameRecord {
	return types.GameRecord{
		ID:             r.ID,
		Sport:          r.Sport,
		Season:         r.Season,
		GameDate:       r.GameDate.UTC(),
		HomeTeam:       r.HomeTeam,
		AwayTeam:       r.AwayTeam,
		HomeScore:      r.HomeScore,
		AwayScore:      r.AwayScore,
		Final:          r.Final,
		Spread:         r.Spread,
		Total:          r.Total,
		HomeMoneyline:  r.HomeMoneyline,
		AwayMoneyline:  r.AwayMoneyline,
		NeutralSite:    r.NeutralSite,
		ConferenceGame: r.ConferenceGame,
		Tournament:     r.Tournament,
		SpreadResult:   r.SpreadResult,
		TotalResult:    r.TotalResult,
	}
}

func (r GameRow) context() types.GameContext {
	gc := types.GameContext{Game: r.record(), Indoor: r.Indoor}
	if len(r.Weather) > 0 && string(r.Weather) != "null" {
		var w types.WeatherConditions
		if err := json.Unmarshal(r.Weather, &w); err == nil {
			gc.Weather = &w
		}
	}
	return gc
}

// SnapshotRow is one published team rating snapshot. Rows are never updated.
type SnapshotRow struct {
	ID         uint        `gorm:"primaryKey"`
	Team       string      `gorm:"size:100;not null;uniqueIndex:idx_snapshot_team_day"`
	Sport      types.Sport `gorm:"size:20;not null;uniqueIndex:idx_snapshot_team_day"`
	AsOfDate   time.Time   `gorm:"not null;uniqueIndex:idx_snapshot_team_day"`
	AdjOffense float64
	AdjDefense float64
	AdjTempo   float64
	Rank       int
	CreatedAt  time.Time
}

func (SnapshotRow) TableName() string {
	return "team_rating_snapshots"
}

func (r SnapshotRow) snapshot() types.TeamRatingSnapshot {
	return types.TeamRatingSnapshot{
		Team:       r.Team,
		Sport:      r.Sport,
		AsOfDate:   r.AsOfDate.UTC(),
		AdjOffense: r.AdjOffense,
		AdjDefense: r.AdjDefense,
		AdjTempo:   r.AdjTempo,
		Rank:       r.Rank,
	}
}

// PickRow is a published pick. A game and market get at most one pick per generation day.
type PickRow struct {
	ID                 string           `gorm:"primaryKey;size:36"`
	GameID             string           `gorm:"size:100;not null;uniqueIndex:idx_pick_game_market_day"`
	Market             types.Market     `gorm:"size:10;not null;uniqueIndex:idx_pick_game_market_day"`
	GeneratedDay       string           `gorm:"size:10;not null;uniqueIndex:idx_pick_game_market_day"`
	Sport              types.Sport      `gorm:"size:20;not null;index:idx_pick_sport_status"`
	Status             types.PickStatus `gorm:"size:10;not null;index:idx_pick_sport_status"`
	Side               types.Direction  `gorm:"size:10;not null"`
	Line               float64
	Score              float64
	Edge               float64
	Tier               int
	Signals            datatypes.JSON
	GameDate           time.Time        `gorm:"not null;index"`
	GeneratedAt        time.Time        `gorm:"not null"`
	CalibrationVersion string           `gorm:"size:100"`
	Units              decimal.Decimal  `gorm:"type:decimal(12,6);default:0"`
	GradedAt           *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (PickRow) TableName() string {
	return "picks"
}

func pickRowFrom(p types.Pick) (PickRow, error) {
	signals := p.Signals
	if signals == nil {
		signals = []types.SignalResult{}
	}
	data, err := json.Marshal(signals)
	if err != nil {
		return PickRow{}, err
	}
	status := p.Status
	if status == "" {
		status = types.PickPending
	}
	return PickRow{
		ID:                 p.ID,
		GameID:             p.GameID,
		Market:             p.Market,
		GeneratedDay:       types.DateKey(p.GeneratedAt),
		Sport:              p.Sport,
		Status:             status,
		Side:               p.Side,
		Line:               p.Line,
		Score:              p.Score,
		Edge:               p.Edge,
		Tier:               p.Tier,
		Signals:            datatypes.JSON(data),
		GameDate:           p.GameDate.UTC(),
		GeneratedAt:        p.GeneratedAt.UTC(),
		CalibrationVersion: p.CalibrationVersion,
		Units:              decimal.Zero,
	}, nil
}

func (r PickRow) pick() (types.Pick, error) {
	var signals []types.SignalResult
	if len(r.Signals) > 0 {
		if err := json.Unmarshal(r.Signals, &signals); err != nil {
			return types.Pick{}, err
		}
	}
	return types.Pick{
		ID:                 r.ID,
		GameID:             r.GameID,
		Sport:              r.Sport,
		Market:             r.Market,
		Side:               r.Side,
		Line:               r.Line,
		Score:              r.Score,
		Edge:               r.Edge,
		Tier:               r.Tier,
		Signals:            signals,
		Status:             r.Status,
		GameDate:           r.GameDate.UTC(),
		GeneratedAt:        r.GeneratedAt.UTC(),
		CalibrationVersion: r.CalibrationVersion,
	}, nil
}

// EloRow is one post-game rating from the latest full replay
type EloRow struct {
	ID     uint        `gorm:"primaryKey"`
	Sport  types.Sport `gorm:"size:20;not null;index:idx_elo_sport_team"`
	Team   string      `gorm:"size:100;not null;index:idx_elo_sport_team"`
	Seq    int         `gorm:"not null"`
	Date   time.Time   `gorm:"not null"`
	Rating float64     `gorm:"not null"`
	GameID string      `gorm:"size:100"`
}

func (EloRow) TableName() string {
	return "elo_ratings"
}

// ModelRow is a promoted regression model. The newest row per sport and target is live.
type ModelRow struct {
	ID        uint                                 `gorm:"primaryKey"`
	Sport     types.Sport                          `gorm:"size:20;not null;index:idx_model_sport_target"`
	Target    string                               `gorm:"size:20;not null;index:idx_model_sport_target"`
	Name      string                               `gorm:"size:100"`
	Model     datatypes.JSONType[regression.Model] `gorm:"not null"`
	CreatedAt time.Time
}

func (ModelRow) TableName() string {
	return "regression_models"
}

// AutoMigrate creates or updates every table the engine owns
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&GameRow{},
		&SnapshotRow{},
		&PickRow{},
		&EloRow{},
		&ModelRow{},
	)
}
