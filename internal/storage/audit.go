package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	insertFiringSQL = `INSERT INTO alert_firings (
        rule_id,
        threshold,
        condition,
        price,
        fired_at
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    RETURNING id, rule_id, threshold, condition, price, fired_at, created_at;`

	listRecentFiringsSQL = `SELECT
        id,
        rule_id,
        threshold,
        condition,
        price,
        fired_at,
        created_at
    FROM alert_firings
    ORDER BY fired_at DESC
    LIMIT $1;`

	deleteFiringsBeforeSQL = `DELETE FROM alert_firings WHERE fired_at < $1;`

	insertOutlookSQL = `INSERT INTO outlook_notes (
        note,
        generated_at
    ) VALUES (
        $1,$2
    )
    RETURNING id;`

	listRecentOutlooksSQL = `SELECT
        id,
        note,
        generated_at,
        created_at
    FROM outlook_notes
    ORDER BY generated_at DESC
    LIMIT $1;`
)

// FiringStore defines operations for alert firing audit.
type FiringStore interface {
	InsertFiring(ctx context.Context, record FiringRecord) (FiringRecord, error)
	ListRecentFirings(ctx context.Context, limit int) ([]FiringRecord, error)
	DeleteFiringsBefore(ctx context.Context, olderThan time.Time) error
}

// OutlookStore defines operations for outlook note audit.
type OutlookStore interface {
	InsertOutlook(ctx context.Context, record OutlookRecord) (int64, error)
	ListRecentOutlooks(ctx context.Context, limit int) ([]OutlookRecord, error)
}

// Store aggregates access to firings and outlook notes.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertFiring persists an alert firing.
func (s *Store) InsertFiring(ctx context.Context, record FiringRecord) (FiringRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return FiringRecord{}, err
	}

	row := pool.QueryRow(ctx, insertFiringSQL,
		record.RuleID,
		record.Threshold.String(),
		record.Condition,
		record.Price.String(),
		record.FiredAt,
	)

	rec, err := scanFiring(row)
	if err != nil {
		return FiringRecord{}, fmt.Errorf("insert alert firing: %w", err)
	}
	return rec, nil
}

// ListRecentFirings lists most recent firings.
func (s *Store) ListRecentFirings(ctx context.Context, limit int) ([]FiringRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentFiringsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent firings: %w", queryErr)
	}
	defer rows.Close()

	records := make([]FiringRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanFiring(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// DeleteFiringsBefore deletes historical firings.
func (s *Store) DeleteFiringsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteFiringsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete firings before: %w", execErr)
	}
	return nil
}

// InsertOutlook persists a generated outlook note.
func (s *Store) InsertOutlook(ctx context.Context, record OutlookRecord) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var id int64
	if scanErr := pool.QueryRow(ctx, insertOutlookSQL, record.Text, record.GeneratedAt).Scan(&id); scanErr != nil {
		return 0, fmt.Errorf("insert outlook note: %w", scanErr)
	}
	return id, nil
}

// ListRecentOutlooks lists most recent outlook notes.
func (s *Store) ListRecentOutlooks(ctx context.Context, limit int) ([]OutlookRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentOutlooksSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent outlooks: %w", queryErr)
	}
	defer rows.Close()

	records := make([]OutlookRecord, 0, limit)
	for rows.Next() {
		var rec OutlookRecord
		if err := rows.Scan(&rec.ID, &rec.Text, &rec.GeneratedAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanFiring(row pgx.Row) (FiringRecord, error) {
	var (
		rec          FiringRecord
		thresholdStr string
		priceStr     string
	)

	if err := row.Scan(
		&rec.ID,
		&rec.RuleID,
		&thresholdStr,
		&rec.Condition,
		&priceStr,
		&rec.FiredAt,
		&rec.CreatedAt,
	); err != nil {
		return FiringRecord{}, err
	}

	var convErr error
	rec.Threshold, convErr = decimal.NewFromString(thresholdStr)
	if convErr != nil {
		return FiringRecord{}, fmt.Errorf("parse threshold: %w", convErr)
	}
	rec.Price, convErr = decimal.NewFromString(priceStr)
	if convErr != nil {
		return FiringRecord{}, fmt.Errorf("parse price: %w", convErr)
	}

	return rec, nil
}

var (
	_ FiringStore  = (*Store)(nil)
	_ OutlookStore = (*Store)(nil)
)
