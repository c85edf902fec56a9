package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-pickup-api/internal/models"
	appErrors "github.com/noah-isme/sma-pickup-api/pkg/errors"
	"github.com/noah-isme/sma-pickup-api/pkg/export"
)

// Export formats supported by the pickup log export.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type exportRepository interface {
	ListForExport(ctx context.Context, from, to time.Time) ([]models.Pickup, error)
}

// ExportResult carries a rendered export document.
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ExportService renders pickup history into downloadable documents.
type ExportService struct {
	repo   exportRepository
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(repo exportRepository, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		repo:   repo,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// PickupLog renders every pickup created inside [from, to) as CSV or PDF.
func (s *ExportService) PickupLog(ctx context.Context, from, to time.Time, format string) (*ExportResult, error) {
	if !to.After(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "export range is empty")
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	pickups, err := s.repo.ListForExport(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pickups for export")
	}

	table := buildPickupTable(pickups)
	stamp := from.Format("2006-01-02")

	switch format {
	case ExportFormatPDF:
		content, err := s.pdf.Render(table, fmt.Sprintf("Pickup log %s", stamp))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("pickups-%s.pdf", stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		content, err := s.csv.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("pickups-%s.csv", stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	}
}

func buildPickupTable(pickups []models.Pickup) export.Table {
	rows := make([][]string, 0, len(pickups))
	for _, pickup := range pickups {
		acked := ""
		if pickup.AcknowledgedAt != nil {
			acked = pickup.AcknowledgedAt.Format(time.RFC3339)
		}
		rows = append(rows, []string{
			pickup.StudentName,
			fmt.Sprintf("%d", pickup.Year),
			pickup.ClassLabel,
			pickup.Status,
			pickup.CreatedAt.Format(time.RFC3339),
			acked,
		})
	}
	return export.Table{
		Columns: []string{"Student", "Year", "Class", "Status", "Called At", "Acknowledged At"},
		Rows:    rows,
	}
}
