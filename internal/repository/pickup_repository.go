package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-pickup-api/internal/models"
)

// PickupRepository manages persistence for pickup records.
type PickupRepository struct {
	db *sqlx.DB
}

// NewPickupRepository constructs a PickupRepository.
func NewPickupRepository(db *sqlx.DB) *PickupRepository {
	return &PickupRepository{db: db}
}

// Create inserts a new pending pickup.
func (r *PickupRepository) Create(ctx context.Context, pickup *models.Pickup) error {
	if pickup.ID == "" {
		pickup.ID = uuid.NewString()
	}
	if pickup.CreatedAt.IsZero() {
		pickup.CreatedAt = time.Now().UTC()
	}
	pickup.Status = models.PickupStatusPending
	const query = `INSERT INTO pickups (id, student_id, student_name, year, class_label, status, created_at)
        VALUES (:id, :student_id, :student_name, :year, :class_label, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, pickup); err != nil {
		return fmt.Errorf("create pickup: %w", err)
	}
	return nil
}

// FindByID fetches a pickup by identifier.
func (r *PickupRepository) FindByID(ctx context.Context, id string) (*models.Pickup, error) {
	const query = `SELECT id, student_id, student_name, year, class_label, status, created_at, acknowledged_at
        FROM pickups WHERE id = $1`
	var pickup models.Pickup
	if err := r.db.GetContext(ctx, &pickup, query, id); err != nil {
		return nil, err
	}
	return &pickup, nil
}

// Acknowledge flips a pending pickup to acknowledged and returns the updated
// row. sql.ErrNoRows means no pending pickup with that id exists.
func (r *PickupRepository) Acknowledge(ctx context.Context, id string, at time.Time) (*models.Pickup, error) {
	const query = `UPDATE pickups SET status = $2, acknowledged_at = $3
        WHERE id = $1 AND status = $4
        RETURNING id, student_id, student_name, year, class_label, status, created_at, acknowledged_at`
	var pickup models.Pickup
	if err := r.db.GetContext(ctx, &pickup, query, id, models.PickupStatusAcknowledged, at.UTC(), models.PickupStatusPending); err != nil {
		return nil, err
	}
	return &pickup, nil
}

// ListPendingByChannel returns the pending pickups addressed literally to the
// channel, oldest first. Merge redirection is deliberately not applied here;
// this is the unredirected per-class query used for admin purposes and as one
// leg of the display resolver.
func (r *PickupRepository) ListPendingByChannel(ctx context.Context, channel models.ClassChannel) ([]models.Pickup, error) {
	const query = `SELECT id, student_id, student_name, year, class_label, status, created_at, acknowledged_at
        FROM pickups WHERE year = $1 AND class_label = $2 AND status = $3
        ORDER BY created_at ASC`
	var pickups []models.Pickup
	if err := r.db.SelectContext(ctx, &pickups, query, channel.Year, channel.Label, models.PickupStatusPending); err != nil {
		return nil, fmt.Errorf("list pending pickups for %s: %w", channel, err)
	}
	return pickups, nil
}

// List returns pickups matching the history filter with pagination.
func (r *PickupRepository) List(ctx context.Context, filter models.PickupFilter) ([]models.Pickup, int, error) {
	base := "FROM pickups"
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Year != nil {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, *filter.Year)
	}
	if filter.ClassLabel != "" {
		conditions = append(conditions, fmt.Sprintf("class_label = $%d", len(args)+1))
		args = append(args, filter.ClassLabel)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)+1))
		args = append(args, filter.To.UTC())
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, student_id, student_name, year, class_label, status, created_at, acknowledged_at
        %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var pickups []models.Pickup
	if err := r.db.SelectContext(ctx, &pickups, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list pickups: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count pickups: %w", err)
	}
	return pickups, total, nil
}

// ListForExport returns every pickup created inside [from, to), oldest first.
func (r *PickupRepository) ListForExport(ctx context.Context, from, to time.Time) ([]models.Pickup, error) {
	const query = `SELECT id, student_id, student_name, year, class_label, status, created_at, acknowledged_at
        FROM pickups WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at ASC`
	var pickups []models.Pickup
	if err := r.db.SelectContext(ctx, &pickups, query, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("export pickups: %w", err)
	}
	return pickups, nil
}

// PurgeAcknowledgedBefore deletes acknowledged pickups older than the cutoff
// and returns the number removed.
func (r *PickupRepository) PurgeAcknowledgedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM pickups WHERE status = $1 AND acknowledged_at < $2",
		models.PickupStatusAcknowledged, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge pickups: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge pickups rows: %w", err)
	}
	return affected, nil
}

// StatsForRange aggregates pickup counts created inside [from, to).
func (r *PickupRepository) StatsForRange(ctx context.Context, from, to time.Time) (*models.PickupStats, error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE status = $3) AS pending,
        COUNT(*) FILTER (WHERE status = $4) AS acknowledged,
        COUNT(*) AS total
        FROM pickups WHERE created_at >= $1 AND created_at < $2`
	var stats models.PickupStats
	if err := r.db.GetContext(ctx, &stats, query, from.UTC(), to.UTC(),
		models.PickupStatusPending, models.PickupStatusAcknowledged); err != nil {
		return nil, fmt.Errorf("pickup stats: %w", err)
	}
	return &stats, nil
}
