// Package storage persists trained models with gorm. PostgreSQL is used
// in deployment, SQLite (pure Go) locally and in tests.
package storage

import (
	"context"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/YuminosukeSato/linfit/internal/archive"
	"github.com/YuminosukeSato/linfit/pkg/errors"
	"github.com/YuminosukeSato/linfit/pkg/log"
	"github.com/YuminosukeSato/linfit/training"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is a model repository. It is safe for concurrent use.
type Store struct {
	db     *gorm.DB
	codec  archive.CodecType
	logger log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCodec selects the compression for archived cost histories.
func WithCodec(c archive.CodecType) Option {
	return func(s *Store) { s.codec = c }
}

// WithLogger routes store and gorm logs to l.
func WithLogger(l log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open connects to the database and migrates the models table.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	s := &Store{codec: archive.CodecZstd, logger: log.GetLogger()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.ComponentKey, "storage")

	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverPostgres, "postgresql":
		dialector = postgres.Open(dsn)
	case DriverSQLite, "":
		if dsn == "" {
			dsn = "linfit.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, errors.NewValidationError("db_driver", "must be postgres or sqlite", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(s.logger)})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", driver)
	}
	if strings.Contains(dsn, ":memory:") {
		// every pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "access connection pool")
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&ModelRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate models table")
	}
	s.db = db
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "access connection pool")
	}
	return sqlDB.Close()
}

// SaveRequest names the run being stored.
type SaveRequest struct {
	UserID   string
	FileName string
	XColumn  string
	YColumn  string
	Result   training.Result
}

// Save stores a finished run and returns the created record.
func (s *Store) Save(ctx context.Context, req SaveRequest) (*ModelRecord, error) {
	res := req.Result
	if !res.State.Terminal() {
		return nil, errors.NewIllegalStateTransitionError("storage.Save", res.State.String())
	}

	blob, stats, err := archive.EncodeHistory(res.CostHistory, s.codec)
	if err != nil {
		return nil, errors.NewModelError("storage.Save", "archive history", err)
	}

	rec := &ModelRecord{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		FileName:     req.FileName,
		XColumn:      req.XColumn,
		YColumn:      req.YColumn,
		Theta0:       res.Params.Theta0,
		Theta1:       res.Params.Theta1,
		Equation:     res.Equation,
		Epochs:       res.TotalEpochs,
		LearningRate: res.Config.LearningRate,
		Tolerance:    res.Config.Tolerance,
		Reason:       string(res.Reason),
		R2:           nullable(res.Train.R2),
		RMSE:         nullable(res.Train.RMSE),
		MAE:          nullable(res.Train.MAE),
		TestMSE:      nullable(res.Test.MSE),
		TestR2:       nullable(res.Test.R2),
		TrainSize:    res.TrainSize,
		TestSize:     res.TestSize,
		Codec:        stats.Codec.String(),
		History:      blob,
		HistoryBytes: stats.Compressed,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, errors.Wrap(err, "insert model")
	}

	s.logger.Info("model saved",
		log.ModelIDKey, rec.ID,
		log.SessionIDKey, res.SessionID,
		log.EpochKey, rec.Epochs,
		log.UncompressedKey, stats.Uncompressed,
		log.CompressedKey, stats.Compressed,
		log.CompressionKey, stats.Ratio(),
	)
	return rec, nil
}

// Get loads a record by id. A missing record matches errors.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*ModelRecord, error) {
	var rec ModelRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NewModelError("storage.Get", "model "+id, errors.ErrNotFound)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load model %s", id)
	}
	return &rec, nil
}

// List returns records newest first. An empty userID lists every user.
// Histories are not loaded.
func (s *Store) List(ctx context.Context, userID string) ([]ModelRecord, error) {
	q := s.db.WithContext(ctx).Omit("History").Order("created_at desc")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var out []ModelRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "list models")
	}
	return out, nil
}

// Delete removes a record. A missing record matches errors.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx := s.db.WithContext(ctx).Delete(&ModelRecord{}, "id = ?", id)
	if tx.Error != nil {
		return errors.Wrapf(tx.Error, "delete model %s", id)
	}
	if tx.RowsAffected == 0 {
		return errors.NewModelError("storage.Delete", "model "+id, errors.ErrNotFound)
	}
	s.logger.Info("model deleted", log.ModelIDKey, id)
	return nil
}

// CostHistory decodes the archived per-epoch costs of rec.
func (s *Store) CostHistory(rec *ModelRecord) ([]float64, error) {
	if len(rec.History) == 0 {
		return nil, errors.NewModelError("storage.CostHistory", "history not loaded", nil)
	}
	return archive.DecodeHistory(rec.History)
}
