package draft

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voxpost/voxpost/internal/domain"
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
		logger: logger.WithComponent("DraftRepo"),
	}
}

var _ Repository = (*Pgx)(nil)

func scheduledAt(d *domain.DraftPost) *time.Time {
	if d.Options.Schedule == "" || d.Options.Schedule == domain.ScheduleNow {
		return nil
	}
	t, err := time.Parse(time.RFC3339, d.Options.Schedule)
	if err != nil {
		return nil
	}
	return &t
}

// Save inserts a new draft with the given status.
func (p *Pgx) Save(ctx context.Context, d *domain.DraftPost, status domain.PostStatus) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}

	query, args, err := repositories.SqBuilder.
		Insert("drafts").
		Columns("id", "payload", "status", "scheduled_at", "created_at", "updated_at").
		Values(d.ID, payload, string(status), scheduledAt(d), time.Now(), time.Now()).
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

// Update replaces the payload of an existing draft.
func (p *Pgx) Update(ctx context.Context, id string, d *domain.DraftPost) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}

	query, args, err := repositories.SqBuilder.
		Update("drafts").
		Set("payload", payload).
		Set("scheduled_at", scheduledAt(d)).
		Set("updated_at", time.Now()).
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

// Delete removes a draft and its audit trail.
func (p *Pgx) Delete(ctx context.Context, id string) error {
	query, args, err := repositories.SqBuilder.
		Delete("drafts").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	_, err = p.pg.Exec(ctx, query, args...)
	return err
}

// GetByID returns a single record.
func (p *Pgx) GetByID(ctx context.Context, id string) (*Record, error) {
	query, args, err := repositories.SqBuilder.
		Select("payload", "status", "created_at", "updated_at", "error_log").
		From("drafts").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	row := p.pg.QueryRow(ctx, query, args...)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Stream returns records matching the filter, newest first.
func (p *Pgx) Stream(ctx context.Context, f Filter) ([]*Record, error) {
	builder := repositories.SqBuilder.
		Select("payload", "status", "created_at", "updated_at", "error_log").
		From("drafts").
		OrderBy("created_at DESC")

	if f.Status != nil {
		builder = builder.Where(sq.Eq{"status": string(*f.Status)})
	}
	if f.Limit > 0 {
		builder = builder.Limit(uint64(f.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// SetStatus writes the terminal or scheduled status for a draft.
func (p *Pgx) SetStatus(ctx context.Context, id string, status domain.PostStatus) error {
	query, args, err := repositories.SqBuilder.
		Update("drafts").
		Set("status", string(status)).
		Set("updated_at", time.Now()).
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

// AppendErrorLog appends one audit entry to the jsonb log in place.
func (p *Pgx) AppendErrorLog(ctx context.Context, id string, entry domain.ErrorLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	query, args, err := repositories.SqBuilder.
		Update("drafts").
		Set("error_log", sq.Expr("error_log || ?::jsonb", payload)).
		Set("updated_at", time.Now()).
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

// ListDue returns scheduled drafts whose schedule time has passed.
func (p *Pgx) ListDue(ctx context.Context, before time.Time) ([]*Record, error) {
	query, args, err := repositories.SqBuilder.
		Select("payload", "status", "created_at", "updated_at", "error_log").
		From("drafts").
		Where(sq.Eq{"status": string(domain.StatusScheduled)}).
		Where(sq.LtOrEq{"scheduled_at": before}).
		OrderBy("scheduled_at ASC").
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// CleanupOldRecords deletes terminal records older than the duration.
func (p *Pgx) CleanupOldRecords(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	query, args, err := repositories.SqBuilder.
		Delete("drafts").
		Where(sq.Eq{"status": []string{string(domain.StatusPosted), string(domain.StatusFailed)}}).
		Where(sq.Lt{"updated_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, repositories.ErrBadQuery
	}

	result, err := p.pg.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		payload  []byte
		status   string
		rec      Record
		errorLog []byte
	)
	if err := row.Scan(&payload, &status, &rec.CreatedAt, &rec.UpdatedAt, &errorLog); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &rec.Draft); err != nil {
		return nil, err
	}
	if len(errorLog) > 0 {
		if err := json.Unmarshal(errorLog, &rec.ErrorLog); err != nil {
			return nil, err
		}
	}
	rec.Status = domain.PostStatus(status)
	return &rec, nil
}
