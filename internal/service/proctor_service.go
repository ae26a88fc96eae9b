package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-proctor-api/internal/models"
	"github.com/noah-isme/exam-proctor-api/internal/repository"
	"github.com/noah-isme/exam-proctor-api/pkg/config"
	appErrors "github.com/noah-isme/exam-proctor-api/pkg/errors"
)

type proctorCatalog interface {
	FindByID(ctx context.Context, id string) (*models.Proctor, error)
	FindByUserID(ctx context.Context, userID string) (*models.Proctor, error)
	List(ctx context.Context, filter models.ProctorFilter) ([]models.Proctor, int, error)
}

type constraintStore interface {
	ListByProctor(ctx context.Context, proctorID string) ([]models.ProctorConstraint, error)
	Create(ctx context.Context, constraint *models.ProctorConstraint) error
	Delete(ctx context.Context, id string) error
}

type rosterReader interface {
	ListUpcomingByProctor(ctx context.Context, proctorID string, from time.Time) ([]models.AssignmentDetail, error)
}

type rosterCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type cacheMetrics interface {
	RosterCacheLookup(hit bool)
}

type workloadRecordReader interface {
	Record(ctx context.Context, proctor *models.Proctor, termID string) (*models.WorkloadRecord, error)
}

type examLookup interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
}

// ProctorService serves the proctor directory, declarative constraints, the
// cached duty roster and on-demand eligibility previews.
type ProctorService struct {
	proctors    proctorCatalog
	constraints constraintStore
	roster      rosterReader
	cache       rosterCache
	workload    workloadRecordReader
	exams       examLookup
	eligibility eligibilityChecker
	metrics     cacheMetrics
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewProctorService creates a service instance.
func NewProctorService(
	proctors proctorCatalog,
	constraints constraintStore,
	roster rosterReader,
	cache rosterCache,
	workload workloadRecordReader,
	exams examLookup,
	eligibility eligibilityChecker,
	metrics cacheMetrics,
	cfg config.RosterConfig,
	logger *zap.Logger,
) *ProctorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProctorService{
		proctors:    proctors,
		constraints: constraints,
		roster:      roster,
		cache:       cache,
		workload:    workload,
		exams:       exams,
		eligibility: eligibility,
		metrics:     metrics,
		cacheTTL:    ttl,
		logger:      logger,
	}
}

// Get fetches one proctor.
func (s *ProctorService) Get(ctx context.Context, id string) (*models.Proctor, error) {
	proctor, err := s.proctors.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proctor")
	}
	return proctor, nil
}

// ForUser resolves the proctor record behind an authenticated user.
func (s *ProctorService) ForUser(ctx context.Context, userID string) (*models.Proctor, error) {
	proctor, err := s.proctors.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no proctor profile for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve proctor")
	}
	return proctor, nil
}

// List returns proctors matching the filter plus the total count.
func (s *ProctorService) List(ctx context.Context, filter models.ProctorFilter) ([]models.Proctor, int, error) {
	proctors, total, err := s.proctors.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list proctors")
	}
	return proctors, total, nil
}

// Roster returns the proctor's upcoming duties, served from cache when
// fresh. Plans and swaps invalidate the entry, so a stale read window is
// bounded by the TTL only when invalidation itself failed.
func (s *ProctorService) Roster(ctx context.Context, proctorID string) ([]models.AssignmentDetail, error) {
	if _, err := s.Get(ctx, proctorID); err != nil {
		return nil, err
	}

	key := repository.RosterKey(proctorID)
	var cached []models.AssignmentDetail
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RosterCacheLookup(true)
			}
			return cached, nil
		}
		if s.metrics != nil {
			s.metrics.RosterCacheLookup(false)
		}
	}

	duties, err := s.roster.ListUpcomingByProctor(ctx, proctorID, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load duty roster")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, duties, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache duty roster", zap.String("proctor_id", proctorID), zap.Error(err))
		}
	}
	return duties, nil
}

// Workload returns the proctor's committed-minutes record for a term.
func (s *ProctorService) Workload(ctx context.Context, proctorID, termID string) (*models.WorkloadRecord, error) {
	proctor, err := s.Get(ctx, proctorID)
	if err != nil {
		return nil, err
	}
	return s.workload.Record(ctx, proctor, termID)
}

// Constraints lists the proctor's stored constraints.
func (s *ProctorService) Constraints(ctx context.Context, proctorID string) ([]models.ProctorConstraint, error) {
	if _, err := s.Get(ctx, proctorID); err != nil {
		return nil, err
	}
	constraints, err := s.constraints.ListByProctor(ctx, proctorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list constraints")
	}
	return constraints, nil
}

// AddConstraint stores a declarative constraint for the proctor.
func (s *ProctorService) AddConstraint(ctx context.Context, constraint *models.ProctorConstraint) error {
	if _, err := s.Get(ctx, constraint.ProctorID); err != nil {
		return err
	}
	if err := s.constraints.Create(ctx, constraint); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create constraint")
	}
	return nil
}

// RemoveConstraint deletes a stored constraint.
func (s *ProctorService) RemoveConstraint(ctx context.Context, id string) error {
	if err := s.constraints.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "constraint not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete constraint")
	}
	return nil
}

// CheckEligibility previews the eligibility verdict for a (proctor, exam)
// pair without mutating anything.
func (s *ProctorService) CheckEligibility(ctx context.Context, proctorID, examID string) (*models.EligibilityVerdict, error) {
	proctor, err := s.Get(ctx, proctorID)
	if err != nil {
		return nil, err
	}
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return s.eligibility.Check(ctx, proctor, exam, nil)
}
