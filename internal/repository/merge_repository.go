package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-pickup-api/internal/models"
	appErrors "github.com/noah-isme/sma-pickup-api/pkg/errors"
)

const pqUniqueViolation = "23505"

// MergeRepository persists the class-merge topology. The unique constraint on
// (source_year, source_label) is the serialization point for concurrent merge
// creation: a duplicate create fails instead of racing.
type MergeRepository struct {
	db *sqlx.DB
}

// NewMergeRepository constructs a MergeRepository.
func NewMergeRepository(db *sqlx.DB) *MergeRepository {
	return &MergeRepository{db: db}
}

// Create inserts a new merge. A source uniqueness violation surfaces as a
// CONFLICTING_ROLE error so racing creates reject cleanly.
func (r *MergeRepository) Create(ctx context.Context, merge *models.ClassMerge) error {
	if merge.ID == "" {
		merge.ID = uuid.NewString()
	}
	if merge.CreatedAt.IsZero() {
		merge.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO class_merges (id, source_year, source_label, host_year, host_label, created_at)
        VALUES (:id, :source_year, :source_label, :host_year, :host_label, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, merge); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return appErrors.Clone(appErrors.ErrConflictingRole, "class is already the source of another merge")
		}
		return fmt.Errorf("create merge: %w", err)
	}
	return nil
}

// GetBySource returns the merge whose source matches, or sql.ErrNoRows.
func (r *MergeRepository) GetBySource(ctx context.Context, source models.ClassChannel) (*models.ClassMerge, error) {
	const query = `SELECT id, source_year, source_label, host_year, host_label, created_at
        FROM class_merges WHERE source_year = $1 AND source_label = $2`
	var merge models.ClassMerge
	if err := r.db.GetContext(ctx, &merge, query, source.Year, source.Label); err != nil {
		return nil, err
	}
	return &merge, nil
}

// HostOf returns the host channel when the given channel is currently a merge
// source, or nil when it is not.
func (r *MergeRepository) HostOf(ctx context.Context, channel models.ClassChannel) (*models.ClassChannel, error) {
	merge, err := r.GetBySource(ctx, channel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("host of %s: %w", channel, err)
	}
	host := merge.Host()
	return &host, nil
}

// SourcesOf returns the channels currently merged into the given host,
// oldest merge first.
func (r *MergeRepository) SourcesOf(ctx context.Context, host models.ClassChannel) ([]models.ClassChannel, error) {
	const query = `SELECT source_year AS year, source_label AS class_label
        FROM class_merges WHERE host_year = $1 AND host_label = $2 ORDER BY created_at ASC`
	var sources []models.ClassChannel
	if err := r.db.SelectContext(ctx, &sources, query, host.Year, host.Label); err != nil {
		return nil, fmt.Errorf("sources of %s: %w", host, err)
	}
	return sources, nil
}

// IsSource reports whether the channel is currently a merge source.
func (r *MergeRepository) IsSource(ctx context.Context, channel models.ClassChannel) (bool, error) {
	return r.exists(ctx, "SELECT 1 FROM class_merges WHERE source_year = $1 AND source_label = $2 LIMIT 1", channel)
}

// IsHost reports whether the channel currently hosts at least one merge.
func (r *MergeRepository) IsHost(ctx context.Context, channel models.ClassChannel) (bool, error) {
	return r.exists(ctx, "SELECT 1 FROM class_merges WHERE host_year = $1 AND host_label = $2 LIMIT 1", channel)
}

func (r *MergeRepository) exists(ctx context.Context, query string, channel models.ClassChannel) (bool, error) {
	var one int
	if err := r.db.GetContext(ctx, &one, query, channel.Year, channel.Label); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check merge role: %w", err)
	}
	return true, nil
}

// Delete removes the merge for the given source. The bool reports whether a
// row was actually removed.
func (r *MergeRepository) Delete(ctx context.Context, source models.ClassChannel) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM class_merges WHERE source_year = $1 AND source_label = $2",
		source.Year, source.Label)
	if err != nil {
		return false, fmt.Errorf("delete merge: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete merge rows: %w", err)
	}
	return affected > 0, nil
}

// ClearAll removes every merge atomically and returns the count removed.
func (r *MergeRepository) ClearAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM class_merges")
	if err != nil {
		return 0, fmt.Errorf("clear merges: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear merges rows: %w", err)
	}
	return affected, nil
}

// List returns every active merge, oldest first.
func (r *MergeRepository) List(ctx context.Context) ([]models.ClassMerge, error) {
	const query = `SELECT id, source_year, source_label, host_year, host_label, created_at
        FROM class_merges ORDER BY created_at ASC`
	var merges []models.ClassMerge
	if err := r.db.SelectContext(ctx, &merges, query); err != nil {
		return nil, fmt.Errorf("list merges: %w", err)
	}
	return merges, nil
}
