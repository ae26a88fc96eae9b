package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-proctor-api/internal/models"
	"github.com/noah-isme/exam-proctor-api/pkg/config"
	appErrors "github.com/noah-isme/exam-proctor-api/pkg/errors"
)

type workloadStore interface {
	Ensure(ctx context.Context, exec sqlx.ExtContext, proctorID, termID string, capMinutes int) (*models.WorkloadRecord, error)
	AddMinutes(ctx context.Context, exec sqlx.ExtContext, proctorID, termID string, delta int) error
	Committed(ctx context.Context, proctorID, termID string) (int, error)
	Get(ctx context.Context, proctorID, termID string) (*models.WorkloadRecord, error)
}

// WorkloadService is the committed-minutes bookkeeper. Mutations always run
// on the caller's executor so a swap's subtract and add are one atomic unit
// with the assignment mutation itself.
type WorkloadService struct {
	records workloadStore
	policy  config.WorkloadConfig
	logger  *zap.Logger
}

// NewWorkloadService creates a service instance.
func NewWorkloadService(records workloadStore, policy config.WorkloadConfig, logger *zap.Logger) *WorkloadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.FullTimeCapMinutes <= 0 {
		policy.FullTimeCapMinutes = 1200
	}
	if policy.PartTimeCapMinutes <= 0 {
		policy.PartTimeCapMinutes = 600
	}
	return &WorkloadService{records: records, policy: policy, logger: logger}
}

// ResolveCap derives the per-term cap from employment type and academic
// level. The numbers come from department policy, never from code.
func (s *WorkloadService) ResolveCap(proctor *models.Proctor) int {
	cap := s.policy.PartTimeCapMinutes
	if proctor.EmploymentType == models.EmploymentFullTime {
		cap = s.policy.FullTimeCapMinutes
	}
	if proctor.AcademicLevel == models.LevelPhD {
		cap += s.policy.PhDUpliftMinutes
	}
	return cap
}

// Committed returns the proctor's committed minutes for the term; an
// unused (proctor, term) pair reads as zero.
func (s *WorkloadService) Committed(ctx context.Context, proctorID, termID string) (int, error) {
	minutes, err := s.records.Committed(ctx, proctorID, termID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read workload")
	}
	return minutes, nil
}

// Record returns the full workload record, creating nothing.
func (s *WorkloadService) Record(ctx context.Context, proctor *models.Proctor, termID string) (*models.WorkloadRecord, error) {
	record, err := s.records.Get(ctx, proctor.ID, termID)
	if err != nil {
		return &models.WorkloadRecord{
			ProctorID:  proctor.ID,
			TermID:     termID,
			CapMinutes: s.ResolveCap(proctor),
		}, nil
	}
	return record, nil
}

// AddCommitted books minutes against the proctor's term record, creating
// the record on first use.
func (s *WorkloadService) AddCommitted(ctx context.Context, exec sqlx.ExtContext, proctor *models.Proctor, termID string, minutes int) error {
	if minutes <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "minutes must be positive")
	}
	if _, err := s.records.Ensure(ctx, exec, proctor.ID, termID, s.ResolveCap(proctor)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to ensure workload record")
	}
	if err := s.records.AddMinutes(ctx, exec, proctor.ID, termID, minutes); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add workload minutes")
	}
	return nil
}

// RemoveCommitted releases minutes from the proctor's term record.
func (s *WorkloadService) RemoveCommitted(ctx context.Context, exec sqlx.ExtContext, proctor *models.Proctor, termID string, minutes int) error {
	if minutes <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "minutes must be positive")
	}
	if _, err := s.records.Ensure(ctx, exec, proctor.ID, termID, s.ResolveCap(proctor)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to ensure workload record")
	}
	if err := s.records.AddMinutes(ctx, exec, proctor.ID, termID, -minutes); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release workload minutes")
	}
	return nil
}
