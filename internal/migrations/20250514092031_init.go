package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upInit, downInit)
}

func upInit(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE drafts (
		id           TEXT PRIMARY KEY,
		payload      JSONB NOT NULL,
		status       TEXT NOT NULL DEFAULT 'draft',
		scheduled_at TIMESTAMPTZ,
		error_log    JSONB NOT NULL DEFAULT '[]',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX idx_drafts_status ON drafts (status);
	CREATE INDEX idx_drafts_scheduled_at ON drafts (scheduled_at) WHERE scheduled_at IS NOT NULL;
	`)
	if err != nil {
		return err
	}
	return nil
}

func downInit(tx *sql.Tx) error {
	_, err := tx.Exec(`
	DROP TABLE drafts;
	`)
	if err != nil {
		return err
	}
	return nil
}
