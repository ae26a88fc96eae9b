package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-proctor-api/internal/models"
	"github.com/noah-isme/exam-proctor-api/pkg/config"
	"github.com/noah-isme/exam-proctor-api/pkg/jobs"
)

// Notification is a composed message awaiting dispatch.
type Notification struct {
	Type      string `json:"type"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

const (
	notifyTypeAssignment = "assignment_notice"
	notifyTypeSwap       = "swap_confirmation"
	notifyTypeInstructor = "instructor_notice"
	notifyTypeEscalation = "escalation_notice"
)

// dutyRoster surfaces a proctor's upcoming duties so the takeover notice
// can list everything now on their plate.
type dutyRoster interface {
	ListUpcomingByProctor(ctx context.Context, proctorID string, from time.Time) ([]models.AssignmentDetail, error)
}

// MessageSender delivers one composed notification. The default sender
// only logs; a mail or chat integration plugs in here.
type MessageSender interface {
	Send(ctx context.Context, n Notification) error
}

type logSender struct {
	logger *zap.Logger
}

func (s *logSender) Send(_ context.Context, n Notification) error {
	s.logger.Info("notification dispatched",
		zap.String("type", n.Type),
		zap.String("recipient", n.Recipient),
		zap.String("subject", n.Subject),
	)
	return nil
}

// NotificationService composes and dispatches proctoring notices through
// a background queue. Dispatch is strictly best effort: a dead queue or
// failing sender never surfaces to the caller.
type NotificationService struct {
	queue   *jobs.Queue
	roster  dutyRoster
	enabled bool
	sender  string
	logger  *zap.Logger
}

// NotificationOption customizes optional collaborators.
type NotificationOption func(*NotificationService)

// WithUpcomingDuties lets swap takeover notices include the new
// proctor's full upcoming duty list.
func WithUpcomingDuties(roster dutyRoster) NotificationOption {
	return func(s *NotificationService) {
		s.roster = roster
	}
}

// NewNotificationService wires the dispatch queue. Call Start before
// serving and Stop on shutdown.
func NewNotificationService(cfg config.NotificationsConfig, sender MessageSender, logger *zap.Logger, opts ...NotificationOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = &logSender{logger: logger}
	}
	s := &NotificationService{
		enabled: cfg.Enabled,
		sender:  cfg.SenderName,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.queue = jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		n, ok := job.Payload.(Notification)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return sender.Send(ctx, n)
	}, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	if s.enabled {
		s.queue.Start(ctx)
	}
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	if s.enabled {
		s.queue.Stop()
	}
}

// NotifyAssignment tells a proctor about a new duty.
func (s *NotificationService) NotifyAssignment(ctx context.Context, exam *models.Exam, proctor *models.Proctor) {
	s.dispatch(Notification{
		Type:      notifyTypeAssignment,
		Recipient: proctor.Email,
		Subject:   fmt.Sprintf("Proctoring duty: %s %s", exam.CourseCode, exam.Type),
		Body:      examSummary(exam),
	})
}

// NotifySwap confirms a completed swap: the requester gets a handover
// confirmation, the new proctor a takeover notice with their upcoming
// duty list, and the course instructor a heads-up when we have a
// contact on file.
func (s *NotificationService) NotifySwap(ctx context.Context, exam *models.Exam, request *models.SwapRequest, from, to *models.Proctor) {
	body := fmt.Sprintf("%s\nReason: %s", examSummary(exam), request.Reason)
	s.dispatch(Notification{
		Type:      notifyTypeSwap,
		Recipient: from.Email,
		Subject:   fmt.Sprintf("Swap confirmed: %s handed to %s", exam.CourseCode, to.FullName),
		Body:      body,
	})
	s.dispatch(Notification{
		Type:      notifyTypeSwap,
		Recipient: to.Email,
		Subject:   fmt.Sprintf("Swap confirmed: you now proctor %s", exam.CourseCode),
		Body:      body + s.upcomingDuties(ctx, to.ID),
	})
	if exam.InstructorEmail != nil {
		s.dispatch(Notification{
			Type:      notifyTypeInstructor,
			Recipient: *exam.InstructorEmail,
			Subject:   fmt.Sprintf("Proctor change for %s section %s", exam.CourseCode, exam.Section),
			Body: fmt.Sprintf("%s\nOutgoing proctor: %s\nIncoming proctor: %s",
				examSummary(exam), from.FullName, to.FullName),
		})
	}
}

// upcomingDuties renders the proctor's forward-looking roster as a text
// block, or an empty string when nothing can be fetched.
func (s *NotificationService) upcomingDuties(ctx context.Context, proctorID string) string {
	if s.roster == nil {
		return ""
	}
	duties, err := s.roster.ListUpcomingByProctor(ctx, proctorID, time.Now())
	if err != nil {
		s.logger.Warn("failed to load upcoming duties for swap notice",
			zap.String("proctor_id", proctorID),
			zap.Error(err),
		)
		return ""
	}
	if len(duties) == 0 {
		return ""
	}
	lines := []string{"", "Your upcoming duties:"}
	for _, d := range duties {
		lines = append(lines, fmt.Sprintf("- %s %s %s %s-%s",
			d.ExamDate.Format("2006-01-02"), d.CourseCode, d.ExamTitle, d.StartTime, d.EndTime))
	}
	return strings.Join(lines, "\n")
}

// NotifyEscalation flags an understaffed exam to the scheduling desk.
func (s *NotificationService) NotifyEscalation(ctx context.Context, exam *models.Exam, shortfall int) {
	s.dispatch(Notification{
		Type:      notifyTypeEscalation,
		Recipient: s.sender,
		Subject:   fmt.Sprintf("Exam %s %s needs %d more proctors", exam.CourseCode, exam.Type, shortfall),
		Body:      examSummary(exam),
	})
}

func (s *NotificationService) dispatch(n Notification) {
	if !s.enabled {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    n.Type,
		Payload: n,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("type", n.Type),
			zap.String("recipient", n.Recipient),
			zap.Error(err),
		)
	}
}

// examSummary renders the exam block shared by every notice.
func examSummary(exam *models.Exam) string {
	lines := []string{
		fmt.Sprintf("Exam: %s (%s, section %s)", exam.Title, exam.CourseCode, exam.Section),
		fmt.Sprintf("Date: %s", exam.Date.Format("2006-01-02")),
		fmt.Sprintf("Time: %s-%s", exam.StartTime, exam.EndTime),
		fmt.Sprintf("Room: %s", exam.RoomOrTBD()),
	}
	return strings.Join(lines, "\n")
}
