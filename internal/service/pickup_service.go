package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-pickup-api/internal/models"
	"github.com/noah-isme/sma-pickup-api/internal/realtime"
	appErrors "github.com/noah-isme/sma-pickup-api/pkg/errors"
)

type pickupRepository interface {
	Create(ctx context.Context, pickup *models.Pickup) error
	FindByID(ctx context.Context, id string) (*models.Pickup, error)
	Acknowledge(ctx context.Context, id string, at time.Time) (*models.Pickup, error)
	ListPendingByChannel(ctx context.Context, channel models.ClassChannel) ([]models.Pickup, error)
	List(ctx context.Context, filter models.PickupFilter) ([]models.Pickup, int, error)
	PurgeAcknowledgedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type studentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type mergeSources interface {
	SourcesOf(ctx context.Context, host models.ClassChannel) ([]models.ClassChannel, error)
}

type eventRouter interface {
	RouteAndPublish(ctx context.Context, channel models.ClassChannel, event realtime.Event) error
}

type statsInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// RaisePickupRequest holds payload for calling a student to reception.
type RaisePickupRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// PickupService handles pickup use-cases, including the merge-aware pending
// view used for display snapshots.
type PickupService struct {
	repo      pickupRepository
	students  studentLookup
	merges    mergeSources
	router    eventRouter
	cache     statsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPickupService constructs the pickup service. A nil cache disables stats
// cache invalidation.
func NewPickupService(repo pickupRepository, students studentLookup, merges mergeSources, router eventRouter, cache statsInvalidator, validate *validator.Validate, logger *zap.Logger) *PickupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PickupService{repo: repo, students: students, merges: merges, router: router, cache: cache, validator: validate, logger: logger}
}

// invalidateStats drops cached daily summaries after a pickup write. Best
// effort: the cache TTL covers a failed invalidation.
func (s *PickupService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, statsCacheKeyPrefix+"*"); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

// Raise records that a student has been called for pickup and routes the
// notification to the class display, or to its host when the class is merged.
func (s *PickupService) Raise(ctx context.Context, req RaisePickupRequest) (*models.Pickup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pickup payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is inactive")
	}

	pickup := &models.Pickup{
		StudentID:   student.ID,
		StudentName: student.FullName,
		Year:        student.Year,
		ClassLabel:  student.ClassLabel,
	}
	if err := s.repo.Create(ctx, pickup); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to record pickup")
	}
	s.invalidateStats(ctx)

	// Delivery is fire-and-forget: a routing failure leaves the committed row
	// to be picked up by the reconnect-and-resync path.
	if err := s.router.RouteAndPublish(ctx, pickup.Channel(), realtime.NewNewPickupEvent(*pickup)); err != nil {
		s.logger.Warn("pickup broadcast failed",
			zap.String("pickup_id", pickup.ID),
			zap.Error(err))
	}

	return pickup, nil
}

// Acknowledge flips a pending pickup to acknowledged and clears it from the
// display that visually owns it, via the same merge-aware path as creation.
func (s *PickupService) Acknowledge(ctx context.Context, id string) (*models.Pickup, error) {
	pickup, err := s.repo.Acknowledge(ctx, id, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pending pickup not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acknowledge pickup")
	}
	s.invalidateStats(ctx)

	if err := s.router.RouteAndPublish(ctx, pickup.Channel(), realtime.NewAcknowledgedEvent(pickup.ID)); err != nil {
		s.logger.Warn("acknowledge broadcast failed",
			zap.String("pickup_id", pickup.ID),
			zap.Error(err))
	}

	return pickup, nil
}

// PendingForDisplay computes the authoritative "what should this display show"
// view: pickups addressed directly to the channel plus pickups addressed to
// every class currently merged into it, ascending by creation time. It reads
// committed store state only, so a reconnecting display always converges even
// after missing live events.
func (s *PickupService) PendingForDisplay(ctx context.Context, channel models.ClassChannel) ([]models.Pickup, error) {
	pending, err := s.repo.ListPendingByChannel(ctx, channel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending pickups")
	}

	sources, err := s.merges.SourcesOf(ctx, channel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve merged classes")
	}
	for _, source := range sources {
		merged, err := s.repo.ListPendingByChannel(ctx, source)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load merged pending pickups")
		}
		pending = append(pending, merged...)
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

// PendingByChannel returns the unredirected per-class pending list. A pickup
// whose class was merged away still shows up here; only the display view
// applies merge redirection.
func (s *PickupService) PendingByChannel(ctx context.Context, channel models.ClassChannel) ([]models.Pickup, error) {
	pending, err := s.repo.ListPendingByChannel(ctx, channel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending pickups")
	}
	return pending, nil
}

// History returns pickups matching the filter with pagination metadata.
func (s *PickupService) History(ctx context.Context, filter models.PickupFilter) ([]models.Pickup, *models.Pagination, error) {
	pickups, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pickups")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return pickups, pagination, nil
}

// PurgeAcknowledged removes acknowledged pickups older than the retention
// window. Invoked by the daily scheduled sweep.
func (s *PickupService) PurgeAcknowledged(ctx context.Context, window time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-window)
	count, err := s.repo.PurgeAcknowledgedBefore(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge pickups")
	}
	if count > 0 {
		s.logger.Info("acknowledged pickups purged", zap.Int64("count", count))
	}
	return count, nil
}
