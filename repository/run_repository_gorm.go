package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"loan-risk/domain"
)

// simulationRunModel is the table layout of a stored run. The seed is kept as
// text because sqlite integers are signed.
type simulationRunModel struct {
	ID             string `gorm:"primaryKey;size:36"`
	NumSimulations int
	Seed           string `gorm:"size:20"`
	Seeded         bool
	Workers        int
	LoanCount      int
	TotalExposure  float64
	MeanLoss       float64
	MedianLoss     float64
	StdLoss        float64
	MinLoss        float64
	MaxLoss        float64
	VaR95          float64   `gorm:"column:var_95"`
	VaR99          float64   `gorm:"column:var_99"`
	Losses         []float64 `gorm:"serializer:json"`
	Explanation    string
	Cached         bool
	DurationMs     int64
	CreatedAt      time.Time `gorm:"index"`
}

func (simulationRunModel) TableName() string {
	return "simulation_runs"
}

func toRunModel(run domain.SimulationRun) simulationRunModel {
	s := run.Summary
	return simulationRunModel{
		ID:             run.ID,
		NumSimulations: run.NumSimulations,
		Seed:           strconv.FormatUint(run.Seed, 10),
		Seeded:         run.Seeded,
		Workers:        run.Workers,
		LoanCount:      run.LoanCount,
		TotalExposure:  run.TotalExposure,
		MeanLoss:       s.MeanLoss,
		MedianLoss:     s.MedianLoss,
		StdLoss:        s.StdLoss,
		MinLoss:        s.MinLoss,
		MaxLoss:        s.MaxLoss,
		VaR95:          s.VaR95,
		VaR99:          s.VaR99,
		Losses:         s.Losses,
		Explanation:    run.Explanation,
		Cached:         run.Cached,
		DurationMs:     run.Duration.Milliseconds(),
		CreatedAt:      run.CreatedAt,
	}
}

func (m simulationRunModel) toDomain() (domain.SimulationRun, error) {
	seed, err := strconv.ParseUint(m.Seed, 10, 64)
	if err != nil {
		return domain.SimulationRun{}, errors.Wrapf(err, "run %s: stored seed %q", m.ID, m.Seed)
	}
	return domain.SimulationRun{
		ID:             m.ID,
		NumSimulations: m.NumSimulations,
		Seed:           seed,
		Seeded:         m.Seeded,
		Workers:        m.Workers,
		LoanCount:      m.LoanCount,
		TotalExposure:  m.TotalExposure,
		Summary: domain.SummaryStatistics{
			NumSimulations: m.NumSimulations,
			MeanLoss:       m.MeanLoss,
			MedianLoss:     m.MedianLoss,
			StdLoss:        m.StdLoss,
			MinLoss:        m.MinLoss,
			MaxLoss:        m.MaxLoss,
			VaR95:          m.VaR95,
			VaR99:          m.VaR99,
			Losses:         m.Losses,
		},
		Explanation: m.Explanation,
		Cached:      m.Cached,
		Duration:    time.Duration(m.DurationMs) * time.Millisecond,
		CreatedAt:   m.CreatedAt,
	}, nil
}

// GormRunRepository persists runs in a SQL database through gorm.
type GormRunRepository struct {
	db *gorm.DB
}

// OpenSQLiteRunRepository opens (or creates) the sqlite database at dsn and
// migrates the runs table.
func OpenSQLiteRunRepository(dsn string) (*GormRunRepository, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite database %s", dsn)
	}
	return NewGormRunRepository(db)
}

func NewGormRunRepository(db *gorm.DB) (*GormRunRepository, error) {
	if err := db.AutoMigrate(&simulationRunModel{}); err != nil {
		return nil, errors.Wrap(err, "migrate simulation_runs")
	}
	return &GormRunRepository{db: db}, nil
}

func (r *GormRunRepository) Save(ctx context.Context, run domain.SimulationRun) error {
	m := toRunModel(run)
	return errors.Wrapf(r.db.WithContext(ctx).Create(&m).Error, "save run %s", run.ID)
}

func (r *GormRunRepository) FindByID(ctx context.Context, id string) (domain.SimulationRun, error) {
	var m simulationRunModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.SimulationRun{}, ErrRunNotFound
	}
	if err != nil {
		return domain.SimulationRun{}, errors.Wrapf(err, "find run %s", id)
	}
	return m.toDomain()
}

func (r *GormRunRepository) List(ctx context.Context, limit int) ([]domain.SimulationRun, error) {
	if limit <= 0 {
		return []domain.SimulationRun{}, nil
	}
	var models []simulationRunModel
	err := r.db.WithContext(ctx).
		Omit("losses").
		Order("created_at desc").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}

	runs := make([]domain.SimulationRun, 0, len(models))
	for _, m := range models {
		run, err := m.toDomain()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r *GormRunRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
