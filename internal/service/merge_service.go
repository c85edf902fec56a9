package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-pickup-api/internal/models"
	appErrors "github.com/noah-isme/sma-pickup-api/pkg/errors"
)

type mergeRepository interface {
	Create(ctx context.Context, merge *models.ClassMerge) error
	GetBySource(ctx context.Context, source models.ClassChannel) (*models.ClassMerge, error)
	SourcesOf(ctx context.Context, host models.ClassChannel) ([]models.ClassChannel, error)
	IsSource(ctx context.Context, channel models.ClassChannel) (bool, error)
	IsHost(ctx context.Context, channel models.ClassChannel) (bool, error)
	Delete(ctx context.Context, source models.ClassChannel) (bool, error)
	ClearAll(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]models.ClassMerge, error)
}

type mergeBroadcaster interface {
	NotifyMergeCreated(ctx context.Context, merge models.ClassMerge) error
	NotifyMergeRemoved(ctx context.Context, formerHost models.ClassChannel) error
	NotifyMergesCleared()
}

// CreateMergeRequest holds payload for merging one class into another.
type CreateMergeRequest struct {
	SourceYear  int    `json:"source_year" validate:"required,min=1"`
	SourceLabel string `json:"source_label" validate:"required"`
	HostYear    int    `json:"host_year" validate:"required,min=1"`
	HostLabel   string `json:"host_label" validate:"required"`
}

// MergeService owns the merge topology and its structural invariants.
type MergeService struct {
	repo      mergeRepository
	router    mergeBroadcaster
	validator *validator.Validate
	logger    *zap.Logger

	// createMu serializes creations: the store's unique index only guards
	// duplicate sources, so interleaved role checks could otherwise commit a
	// chain deeper than one level.
	createMu sync.Mutex
}

// NewMergeService constructs the merge service.
func NewMergeService(repo mergeRepository, router mergeBroadcaster, validate *validator.Validate, logger *zap.Logger) *MergeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MergeService{repo: repo, router: router, validator: validate, logger: logger}
}

// Create validates the depth-1 forest invariants, persists the merge and
// replays the source's pending pickups to the host. The replay is part of the
// creation: if it cannot complete the merge is rolled back and the call fails.
func (s *MergeService) Create(ctx context.Context, req CreateMergeRequest) (*models.ClassMerge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid merge payload")
	}

	source := models.ClassChannel{Year: req.SourceYear, Label: req.SourceLabel}
	host := models.ClassChannel{Year: req.HostYear, Label: req.HostLabel}

	if source == host {
		return nil, appErrors.Clone(appErrors.ErrInvalidMerge, "")
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	if err := s.checkRoles(ctx, source, host); err != nil {
		return nil, err
	}

	merge := &models.ClassMerge{
		SourceYear:  source.Year,
		SourceLabel: source.Label,
		HostYear:    host.Year,
		HostLabel:   host.Label,
	}
	if err := s.repo.Create(ctx, merge); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to persist merge")
	}

	// Clients render the combined-classes header from the synchronous response
	// plus the side channel, so the broadcast must succeed before we return.
	if err := s.router.NotifyMergeCreated(ctx, *merge); err != nil {
		if _, delErr := s.repo.Delete(ctx, source); delErr != nil {
			s.logger.Error("merge rollback failed",
				zap.String("source", source.String()),
				zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "merge notification could not complete")
	}

	s.logger.Info("merge created",
		zap.String("source", source.String()),
		zap.String("host", host.String()))
	return merge, nil
}

func (s *MergeService) checkRoles(ctx context.Context, source, host models.ClassChannel) error {
	isSource, err := s.repo.IsSource(ctx, source)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check merge roles")
	}
	if isSource {
		return appErrors.Clone(appErrors.ErrConflictingRole, "class is already the source of another merge")
	}

	isHost, err := s.repo.IsHost(ctx, source)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check merge roles")
	}
	if isHost {
		return appErrors.Clone(appErrors.ErrConflictingRole, "class currently hosts other classes and cannot be merged away")
	}

	hostIsSource, err := s.repo.IsSource(ctx, host)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check merge roles")
	}
	if hostIsSource {
		return appErrors.Clone(appErrors.ErrConflictingRole, "host class is itself merged into another class")
	}

	return nil
}

// Delete removes the merge whose source matches and notifies the former host.
func (s *MergeService) Delete(ctx context.Context, source models.ClassChannel) error {
	merge, err := s.repo.GetBySource(ctx, source)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "merge not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load merge")
	}

	removed, err := s.repo.Delete(ctx, source)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete merge")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "merge not found")
	}

	if err := s.router.NotifyMergeRemoved(ctx, merge.Host()); err != nil {
		// The merge row is gone; displays reconverge via the resync path.
		s.logger.Warn("merge removal broadcast failed",
			zap.String("host", merge.Host().String()),
			zap.Error(err))
	}

	s.logger.Info("merge removed", zap.String("source", source.String()))
	return nil
}

// ClearAll removes every merge atomically and broadcasts empty source lists.
// Used by the scheduled daily reset.
func (s *MergeService) ClearAll(ctx context.Context) (int64, error) {
	count, err := s.repo.ClearAll(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear merges")
	}
	s.router.NotifyMergesCleared()
	s.logger.Info("merges cleared", zap.Int64("count", count))
	return count, nil
}

// List returns every active merge.
func (s *MergeService) List(ctx context.Context) ([]models.ClassMerge, error) {
	merges, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list merges")
	}
	return merges, nil
}
