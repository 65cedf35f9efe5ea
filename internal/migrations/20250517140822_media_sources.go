package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upMediaSources, downMediaSources)
}

func upMediaSources(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE media_sources (
		id           TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		path         TEXT NOT NULL UNIQUE,
		enabled      BOOLEAN NOT NULL DEFAULT true,
		is_default   BOOLEAN NOT NULL DEFAULT false,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE media_settings (
		custom_sources_enabled BOOLEAN NOT NULL DEFAULT false
	);
	INSERT INTO media_settings (custom_sources_enabled) VALUES (false);
	`)
	if err != nil {
		return err
	}
	return nil
}

func downMediaSources(tx *sql.Tx) error {
	_, err := tx.Exec(`
	DROP TABLE media_sources;
	DROP TABLE media_settings;
	`)
	if err != nil {
		return err
	}
	return nil
}
