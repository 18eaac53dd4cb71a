// Package store persists reports, sentiment alerts and alert chat
// registrations in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/web3-frozen/token-insight/internal/aggregator"
	"github.com/web3-frozen/token-insight/internal/monitor"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// --- Reports ---

type StoredReport struct {
	ID           int64           `json:"id"`
	Subject      string          `json:"subject"`
	OverallScore float64         `json:"overall_score"`
	RiskLevel    string          `json:"risk_level"`
	Confidence   string          `json:"confidence"`
	Report       json.RawMessage `json:"report"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SaveReport stores r and returns its row id.
func (s *Store) SaveReport(ctx context.Context, r *aggregator.Report) (int64, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("encode report: %w", err)
	}
	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO reports (subject, overall_score, risk_level, confidence, report)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		r.Subject, r.OverallScore, r.RiskAssessment.Level, r.Metadata.Confidence, body).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

// ListReports returns the newest reports, optionally for one subject.
func (s *Store) ListReports(ctx context.Context, subject string, limit int) ([]StoredReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, subject, overall_score, risk_level, confidence, report, created_at
		FROM reports
		WHERE $1::text = '' OR subject = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, subject, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StoredReport, error) {
		var r StoredReport
		err := row.Scan(&r.ID, &r.Subject, &r.OverallScore, &r.RiskLevel, &r.Confidence, &r.Report, &r.CreatedAt)
		return r, err
	})
}

// --- Sentiment alerts ---

type StoredAlert struct {
	ID int64 `json:"id"`
	monitor.Alert
}

func (s *Store) SaveAlert(ctx context.Context, a monitor.Alert) error {
	at := a.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sentiment_alerts (symbol, previous, current, delta, direction, threshold, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.Symbol, a.Previous, a.Current, a.Delta, a.Direction, a.Threshold, at)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *Store) ListAlerts(ctx context.Context, symbol string, limit int) ([]StoredAlert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, symbol, previous, current, delta, direction, threshold, created_at
		FROM sentiment_alerts
		WHERE $1::text = '' OR symbol = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, symbol, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StoredAlert, error) {
		var a StoredAlert
		err := row.Scan(&a.ID, &a.Symbol, &a.Previous, &a.Current, &a.Delta, &a.Direction, &a.Threshold, &a.At)
		return a, err
	})
}

// --- Alert chats ---

// AddAlertChat registers (or re-activates) a Telegram chat for alerts.
func (s *Store) AddAlertChat(ctx context.Context, chatID int64, username string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alert_chats (tg_chat_id, tg_username, active)
		VALUES ($1, $2, true)
		ON CONFLICT (tg_chat_id) DO UPDATE SET active = true, tg_username = $2`,
		chatID, username)
	return err
}

func (s *Store) RemoveAlertChat(ctx context.Context, chatID int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE alert_chats SET active = false WHERE tg_chat_id = $1`, chatID)
	return err
}

func (s *Store) AlertChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT tg_chat_id FROM alert_chats WHERE active = true ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
