package store

import "context"

const migrationSQL = `
CREATE TABLE IF NOT EXISTS reports (
    id BIGSERIAL PRIMARY KEY,
    subject TEXT NOT NULL,
    overall_score DOUBLE PRECISION NOT NULL,
    risk_level TEXT NOT NULL,
    confidence TEXT NOT NULL DEFAULT '',
    report JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS reports_subject_created_idx ON reports (subject, created_at DESC);

CREATE TABLE IF NOT EXISTS sentiment_alerts (
    id BIGSERIAL PRIMARY KEY,
    symbol TEXT NOT NULL,
    previous DOUBLE PRECISION NOT NULL,
    current DOUBLE PRECISION NOT NULL,
    delta DOUBLE PRECISION NOT NULL,
    direction TEXT NOT NULL,
    threshold DOUBLE PRECISION NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS sentiment_alerts_symbol_created_idx ON sentiment_alerts (symbol, created_at DESC);

CREATE TABLE IF NOT EXISTS alert_chats (
    id BIGSERIAL PRIMARY KEY,
    tg_chat_id BIGINT NOT NULL UNIQUE,
    tg_username TEXT NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT true,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationSQL)
	return err
}
