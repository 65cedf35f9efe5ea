package source

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voxpost/voxpost/internal/repositories"
	"github.com/voxpost/voxpost/pkg/logger"

	sq "github.com/Masterminds/squirrel"
)

type Pgx struct {
	pg     *pgxpool.Pool
	logger logger.Logger
}

func NewPgx(pg *pgxpool.Pool, logger logger.Logger) *Pgx {
	return &Pgx{
		pg:     pg,
		logger: logger.WithComponent("SourceRepo"),
	}
}

var _ Repository = (*Pgx)(nil)

// Create registers a new media source.
func (p *Pgx) Create(ctx context.Context, s Source) error {
	query, args, err := repositories.SqBuilder.
		Insert("media_sources").
		Columns("id", "display_name", "path", "enabled", "is_default", "created_at").
		Values(s.ID, s.DisplayName, s.Path, s.Enabled, s.IsDefault, time.Now()).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	_, err = p.pg.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Delete removes a source from the registry.
func (p *Pgx) Delete(ctx context.Context, id string) error {
	query, args, err := repositories.SqBuilder.
		Delete("media_sources").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	result, err := p.pg.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled toggles a single source.
func (p *Pgx) SetEnabled(ctx context.Context, id string, enabled bool) error {
	query, args, err := repositories.SqBuilder.
		Update("media_sources").
		Set("enabled", enabled).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	result, err := p.pg.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every registered source.
func (p *Pgx) List(ctx context.Context) ([]Source, error) {
	query, args, err := repositories.SqBuilder.
		Select("id", "display_name", "path", "enabled", "is_default", "created_at").
		From("media_sources").
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.DisplayName, &s.Path, &s.Enabled, &s.IsDefault, &s.CreatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sources, nil
}

// CustomSourcesEnabled reads the global custom-sources switch.
func (p *Pgx) CustomSourcesEnabled(ctx context.Context) (bool, error) {
	query, args, err := repositories.SqBuilder.
		Select("custom_sources_enabled").
		From("media_settings").
		Limit(1).
		ToSql()
	if err != nil {
		return false, repositories.ErrBadQuery
	}

	var enabled bool
	err = p.pg.QueryRow(ctx, query, args...).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return enabled, nil
}

// SetCustomSourcesEnabled writes the global custom-sources switch.
func (p *Pgx) SetCustomSourcesEnabled(ctx context.Context, enabled bool) error {
	query, args, err := repositories.SqBuilder.
		Update("media_settings").
		Set("custom_sources_enabled", enabled).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	_, err = p.pg.Exec(ctx, query, args...)
	return err
}
