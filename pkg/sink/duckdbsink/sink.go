// Package duckdbsink stores finished profiling sessions in DuckDB.
package duckdbsink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/coral-collect/internal/duckdb"
	errs "github.com/coral-mesh/coral-collect/internal/errors"
	"github.com/coral-mesh/coral-collect/internal/retry"
	"github.com/coral-mesh/coral-collect/pkg/collector"
	"github.com/coral-mesh/coral-collect/pkg/sink"
)

// DefaultWriteTimeout bounds a single store call.
const DefaultWriteTimeout = 5 * time.Second

const (
	profilesTable     = "profiles"
	profileTimerTable = "profile_timers"
	measurementsTable = "measurements"
)

// Options configures a Sink.
type Options struct {
	WriteTimeout time.Duration
}

// Sink implements collector.Backend on top of a DuckDB database.
type Sink struct {
	db           *sql.DB
	logger       zerolog.Logger
	writeTimeout time.Duration
	now          func() time.Time
}

var _ collector.Backend = (*Sink)(nil)

// Profile is a stored sampled session.
type Profile struct {
	ID            string    `duckdb:"id"`
	OperationName string    `duckdb:"operation_name"`
	CapturedAt    time.Time `duckdb:"captured_at"`
	Dataset       []byte    `duckdb:"dataset"`
	DatasetDigest string    `duckdb:"dataset_digest"`
	TimerCount    int64     `duckdb:"timer_count"`

	Timers []*Timer `duckdb:"-"`
}

// Timer is a custom timer attached to a stored profile.
type Timer struct {
	ProfileID      string `duckdb:"profile_id"`
	Seq            int64  `duckdb:"seq"`
	Group          string `duckdb:"group_name"`
	Label          string `duckdb:"label"`
	DurationMicros int64  `duckdb:"duration_us"`
	Closed         bool   `duckdb:"closed"`
}

// Measurement is a stored unsampled session.
type Measurement struct {
	ID             string    `duckdb:"id"`
	OperationName  string    `duckdb:"operation_name"`
	CapturedAt     time.Time `duckdb:"captured_at"`
	DurationMillis int64     `duckdb:"duration_ms"`
	OperationType  int64     `duckdb:"operation_type"`
}

// New creates a Sink and initializes its schema.
func New(db *sql.DB, logger zerolog.Logger, opts Options) (*Sink, error) {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}

	s := &Sink{
		db:           db,
		logger:       logger.With().Str("component", "duckdb-sink").Logger(),
		writeTimeout: opts.WriteTimeout,
		now:          time.Now,
	}

	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Sink) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS profiles (
			id             TEXT      PRIMARY KEY,
			operation_name TEXT      NOT NULL,
			captured_at    TIMESTAMP NOT NULL,
			dataset        BLOB,
			dataset_digest TEXT      NOT NULL,
			timer_count    BIGINT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_profiles_operation
			ON profiles (operation_name);

		CREATE TABLE IF NOT EXISTS profile_timers (
			profile_id  TEXT    NOT NULL,
			seq         BIGINT  NOT NULL,
			group_name  TEXT    NOT NULL,
			label       TEXT    NOT NULL,
			duration_us BIGINT  NOT NULL,
			closed      BOOLEAN NOT NULL,
			PRIMARY KEY (profile_id, seq)
		);

		CREATE TABLE IF NOT EXISTS measurements (
			id             TEXT      PRIMARY KEY,
			operation_name TEXT      NOT NULL,
			captured_at    TIMESTAMP NOT NULL,
			duration_ms    BIGINT    NOT NULL,
			operation_type BIGINT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_measurements_operation
			ON measurements (operation_name);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Debug().Msg("Collector storage schema initialized")
	return nil
}

// StoreProfile writes a sampled session and its timers in one transaction.
// Failures are logged.
func (s *Sink) StoreProfile(name string, data collector.Dataset, timers []collector.CustomTimer) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	id, err := s.insertProfile(ctx, name, data, timers)
	if err != nil {
		s.logger.Error().Err(err).Str("operation", name).Msg("Failed to store profile")
		return
	}

	s.logger.Debug().
		Str("id", id).
		Str("operation", name).
		Int("timers", len(timers)).
		Msg("Stored profile")
}

func (s *Sink) insertProfile(ctx context.Context, name string, data collector.Dataset, timers []collector.CustomTimer) (string, error) {
	profile := &Profile{
		ID:            uuid.New().String(),
		OperationName: name,
		CapturedAt:    s.now().UTC(),
		Dataset:       []byte(data),
		DatasetDigest: sink.Digest(data),
		TimerCount:    int64(len(timers)),
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := duckdb.NewTable[Profile](tx, profilesTable).Insert(ctx, profile); err != nil {
			return fmt.Errorf("failed to insert profile: %w", err)
		}

		timerTable := duckdb.NewTable[Timer](tx, profileTimerTable)
		for i, t := range timers {
			row := &Timer{
				ProfileID:      profile.ID,
				Seq:            int64(i),
				Group:          t.Group,
				Label:          t.Label,
				DurationMicros: t.DurationMicros,
				Closed:         t.Closed,
			}
			if err := timerTable.Insert(ctx, row); err != nil {
				return fmt.Errorf("failed to insert timer %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return profile.ID, nil
}

// StoreMeasurement writes an unsampled session. Failures are logged.
func (s *Sink) StoreMeasurement(name string, durationMillis int64, opType collector.OperationType) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	m := &Measurement{
		ID:             uuid.New().String(),
		OperationName:  name,
		CapturedAt:     s.now().UTC(),
		DurationMillis: durationMillis,
		OperationType:  int64(opType),
	}
	if err := s.insertMeasurement(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("operation", name).Msg("Failed to store measurement")
		return
	}

	s.logger.Debug().
		Str("id", m.ID).
		Str("operation", name).
		Int64("duration_ms", durationMillis).
		Stringer("operation_type", opType).
		Msg("Stored measurement")
}

func (s *Sink) insertMeasurement(ctx context.Context, m *Measurement) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := duckdb.NewTable[Measurement](tx, measurementsTable).Insert(ctx, m); err != nil {
			return fmt.Errorf("failed to insert measurement: %w", err)
		}
		return nil
	})
}

// withTx runs fn in a transaction and commits it. A write conflict aborts
// the whole transaction, so the retry starts over with a fresh one.
func (s *Sink) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return retry.Do(ctx, duckdb.ConflictRetry, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer errs.DeferRollback(s.logger, tx)

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}, duckdb.IsTransactionConflict)
}

// ListMeasurements returns the most recent measurements, newest first.
// A non-positive limit returns every row.
func (s *Sink) ListMeasurements(ctx context.Context, limit int) ([]*Measurement, error) {
	q := duckdb.NewQueryBuilder(measurementsTable).
		OrderBy("-captured_at", "id").
		Limit(limit)
	return duckdb.NewTable[Measurement](s.db, measurementsTable).Query(ctx, q)
}

// ListProfiles returns the most recent profiles with their timers, newest
// first. A non-positive limit returns every row.
func (s *Sink) ListProfiles(ctx context.Context, limit int) ([]*Profile, error) {
	q := duckdb.NewQueryBuilder(profilesTable).
		OrderBy("-captured_at", "id").
		Limit(limit)
	profiles, err := duckdb.NewTable[Profile](s.db, profilesTable).Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return profiles, nil
	}

	ids := make([]any, len(profiles))
	byID := make(map[string]*Profile, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	tq := duckdb.NewQueryBuilder(profileTimerTable).
		In("profile_id", ids...).
		OrderBy("profile_id", "seq")
	timers, err := duckdb.NewTable[Timer](s.db, profileTimerTable).Query(ctx, tq)
	if err != nil {
		return nil, err
	}
	for _, t := range timers {
		if p, ok := byID[t.ProfileID]; ok {
			p.Timers = append(p.Timers, t)
		}
	}
	return profiles, nil
}
