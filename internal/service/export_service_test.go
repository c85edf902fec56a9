package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-pickup-api/internal/models"
	appErrors "github.com/noah-isme/sma-pickup-api/pkg/errors"
)

type exportRepoStub struct {
	pickups []models.Pickup
	err     error
}

func (s *exportRepoStub) ListForExport(ctx context.Context, from, to time.Time) ([]models.Pickup, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pickups, nil
}

func exportWindow() (time.Time, time.Time) {
	from := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	return from, from.Add(24 * time.Hour)
}

func TestExportServicePickupLogCSV(t *testing.T) {
	from, to := exportWindow()
	acked := from.Add(2 * time.Hour)
	repo := &exportRepoStub{pickups: []models.Pickup{
		{StudentName: "Siti Rahma", Year: 1, ClassLabel: "Blue", Status: "acknowledged", CreatedAt: from.Add(time.Hour), AcknowledgedAt: &acked},
		{StudentName: "Budi Santoso", Year: 2, ClassLabel: "Red", Status: "pending", CreatedAt: from.Add(3 * time.Hour)},
	}}
	svc := NewExportService(repo, nil)

	result, err := svc.PickupLog(context.Background(), from, to, ExportFormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "pickups-2026-08-26.csv", result.FileName)
	assert.Equal(t, "text/csv", result.ContentType)

	body := string(result.Content)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student,Year,Class,Status,Called At,Acknowledged At", lines[0])
	assert.Contains(t, lines[1], "Siti Rahma")
	assert.Contains(t, lines[2], "Budi Santoso")
}

func TestExportServicePickupLogPDF(t *testing.T) {
	from, to := exportWindow()
	repo := &exportRepoStub{pickups: []models.Pickup{
		{StudentName: "Siti Rahma", Year: 1, ClassLabel: "Blue", Status: "pending", CreatedAt: from.Add(time.Hour)},
	}}
	svc := NewExportService(repo, nil)

	result, err := svc.PickupLog(context.Background(), from, to, ExportFormatPDF)
	require.NoError(t, err)

	assert.Equal(t, "pickups-2026-08-26.pdf", result.FileName)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}

func TestExportServicePickupLogEmptyRange(t *testing.T) {
	from, _ := exportWindow()
	svc := NewExportService(&exportRepoStub{}, nil)

	_, err := svc.PickupLog(context.Background(), from, from, ExportFormatCSV)
	assertAppErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestExportServicePickupLogUnknownFormat(t *testing.T) {
	from, to := exportWindow()
	svc := NewExportService(&exportRepoStub{}, nil)

	_, err := svc.PickupLog(context.Background(), from, to, "xlsx")
	assertAppErrorCode(t, err, appErrors.ErrValidation.Code)
}
