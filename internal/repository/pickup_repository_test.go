package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-pickup-api/internal/models"
)

var pickupColumns = []string{"id", "student_id", "student_name", "year", "class_label", "status", "created_at", "acknowledged_at"}

func TestPickupRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPickupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pickups")).
		WithArgs(sqlmock.AnyArg(), "student-1", "Siti Rahma", 1, "Blue", models.PickupStatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	pickup := &models.Pickup{StudentID: "student-1", StudentName: "Siti Rahma", Year: 1, ClassLabel: "Blue"}
	err := repo.Create(context.Background(), pickup)
	require.NoError(t, err)

	assert.NotEmpty(t, pickup.ID)
	assert.Equal(t, models.PickupStatusPending, pickup.Status)
	assert.False(t, pickup.CreatedAt.IsZero())
}

func TestPickupRepositoryCreateForcesPendingStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPickupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pickups")).
		WithArgs(sqlmock.AnyArg(), "student-1", "Siti Rahma", 1, "Blue", models.PickupStatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	pickup := &models.Pickup{StudentID: "student-1", StudentName: "Siti Rahma", Year: 1, ClassLabel: "Blue", Status: "acknowledged"}
	err := repo.Create(context.Background(), pickup)
	require.NoError(t, err)
	assert.Equal(t, models.PickupStatusPending, pickup.Status)
}

func TestPickupRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPickupRepository(db)

	created := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(pickupColumns).
		AddRow("pickup-1", "student-1", "Siti Rahma", 1, "Blue", "pending", created, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, student_name, year, class_label, status, created_at, acknowledged_at")).
		WithArgs("pickup-1").
		WillReturnRows(rows)

	pickup, err := repo.FindByID(context.Background(), "pickup-1")
	require.NoError(t, err)
	assert.Equal(t, "pickup-1", pickup.ID)
	assert.Nil(t, pickup.AcknowledgedAt)
	assert.Equal(t, models.ClassChannel{Year: 1, Label: "Blue"}, pickup.Channel())
}

func TestPickupRepositoryAcknowledge(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPickupRepository(db)

	at := time.Date(2026, 8, 26, 8, 5, 0, 0, time.UTC)
	rows := sqlmock.NewRows(pickupColumns).
		AddRow("pickup-1", "student-1", "Siti Rahma", 1, "Blue", "acknowledged", at.Add(-time.Minute), at)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE pickups SET status = $2, acknowledged_at = $3")).
		WithArgs("pickup-1", models.PickupStatusAcknowledged, at, models.PickupStatusPending).
		WillReturnRows(rows)

	pickup, err := repo.Acknowledge(context.Background(), "pickup-1", at)
	require.NoError(t, err)
	assert.Equal(t, models.PickupStatusAcknowledged, pickup.Status)
	require.NotNil(t, pickup.AcknowledgedAt)
	assert.True(t, pickup.AcknowledgedAt.Equal(at))
}

func TestPickupRepositoryAcknowledgeNoPendingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPickupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE pickups")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Acknowledge(context.Background(), "pickup-1", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPickupRepositoryListPendingByChannel(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPickupRepository(db)

	base := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(pickupColumns).
		AddRow("pickup-1", "student-1", "Siti Rahma", 1, "Blue", "pending", base, nil).
		AddRow("pickup-2", "student-2", "Budi Santoso", 1, "Blue", "pending", base.Add(time.Minute), nil)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE year = $1 AND class_label = $2 AND status = $3")).
		WithArgs(1, "Blue", models.PickupStatusPending).
		WillReturnRows(rows)

	pending, err := repo.ListPendingByChannel(context.Background(), models.ClassChannel{Year: 1, Label: "Blue"})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "pickup-1", pending[0].ID)
	assert.Equal(t, "pickup-2", pending[1].ID)
}

func TestPickupRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPickupRepository(db)

	rows := sqlmock.NewRows(pickupColumns).
		AddRow("pickup-1", "student-1", "Siti Rahma", 1, "Blue", "acknowledged", time.Now(), time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("acknowledged", 1, "Blue").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("acknowledged", 1, "Blue").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	year := 1
	items, total, err := repo.List(context.Background(), models.PickupFilter{
		Status:     "acknowledged",
		Year:       &year,
		ClassLabel: "Blue",
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, total)
}

func TestPickupRepositoryListCapsPageSize(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPickupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("LIMIT 20 OFFSET 20")).
		WillReturnRows(sqlmock.NewRows(pickupColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.PickupFilter{Page: 2, PageSize: 500})
	require.NoError(t, err)
}

func TestPickupRepositoryPurgeAcknowledgedBefore(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPickupRepository(db)

	cutoff := time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM pickups WHERE status = $1 AND acknowledged_at < $2")).
		WithArgs(models.PickupStatusAcknowledged, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 5))

	count, err := repo.PurgeAcknowledgedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestPickupRepositoryStatsForRange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPickupRepository(db)

	from := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	rows := sqlmock.NewRows([]string{"pending", "acknowledged", "total"}).AddRow(3, 9, 12)
	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER")).
		WithArgs(from, to, models.PickupStatusPending, models.PickupStatusAcknowledged).
		WillReturnRows(rows)

	stats, err := repo.StatsForRange(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Pending)
	assert.Equal(t, 9, stats.Acknowledged)
	assert.Equal(t, 12, stats.Total)
}

func TestPickupRepositoryListForExport(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPickupRepository(db)

	from := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	rows := sqlmock.NewRows(pickupColumns).
		AddRow("pickup-1", "student-1", "Siti Rahma", 1, "Blue", "acknowledged", from.Add(time.Hour), from.Add(2*time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at ASC")).
		WithArgs(from, to).
		WillReturnRows(rows)

	items, err := repo.ListForExport(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "pickup-1", items[0].ID)
}
