package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-proctor-api/internal/models"
	"github.com/noah-isme/exam-proctor-api/pkg/config"
)

type captureSender struct {
	sent chan Notification
}

func (s *captureSender) Send(_ context.Context, n Notification) error {
	s.sent <- n
	return nil
}

type rosterStub struct {
	duties []models.AssignmentDetail
}

func (r *rosterStub) ListUpcomingByProctor(_ context.Context, _ string, _ time.Time) ([]models.AssignmentDetail, error) {
	return r.duties, nil
}

func notificationTestConfig() config.NotificationsConfig {
	return config.NotificationsConfig{
		Enabled:    true,
		Workers:    1,
		MaxRetries: 0,
		RetryDelay: 10 * time.Millisecond,
		SenderName: "scheduling-desk@example.edu",
	}
}

func collectNotifications(t *testing.T, sent chan Notification, count int) map[string]Notification {
	t.Helper()
	byRecipient := make(map[string]Notification, count)
	for i := 0; i < count; i++ {
		select {
		case n := <-sent:
			byRecipient[n.Recipient] = n
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for notification %d of %d", i+1, count)
		}
	}
	return byRecipient
}

func TestNotifySwapSendsThreeNotices(t *testing.T) {
	sender := &captureSender{sent: make(chan Notification, 8)}
	roster := &rosterStub{duties: []models.AssignmentDetail{
		{
			ExamTitle:  "Distributed Systems Final",
			CourseCode: "CS546",
			Section:    "01",
			ExamDate:   time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
			StartTime:  "09:00",
			EndTime:    "11:00",
		},
		{
			ExamTitle:  "Algorithms Midterm",
			CourseCode: "CS430",
			Section:    "02",
			ExamDate:   time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
			StartTime:  "14:00",
			EndTime:    "16:00",
		},
	}}
	svc := NewNotificationService(notificationTestConfig(), sender, zap.NewNop(),
		WithUpcomingDuties(roster))
	svc.Start(context.Background())
	defer svc.Stop()

	instructorEmail := "prof.li@example.edu"
	exam := &models.Exam{
		CourseCode:      "CS546",
		Section:         "01",
		Title:           "Distributed Systems Final",
		InstructorName:  "Prof. Li",
		InstructorEmail: &instructorEmail,
		Date:            time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
		StartTime:       "09:00",
		EndTime:         "11:00",
	}
	request := &models.SwapRequest{Reason: "medical appointment"}
	from := &models.Proctor{ID: "p-out", Email: "out@example.edu", FullName: "Aylin Demir"}
	to := &models.Proctor{ID: "p-in", Email: "in@example.edu", FullName: "Mert Kaya"}

	svc.NotifySwap(context.Background(), exam, request, from, to)

	notices := collectNotifications(t, sender.sent, 3)

	requester, ok := notices["out@example.edu"]
	require.True(t, ok, "requester confirmation missing")
	require.Equal(t, "swap_confirmation", requester.Type)
	require.Contains(t, requester.Subject, "Mert Kaya")
	require.Contains(t, requester.Body, "medical appointment")

	takeover, ok := notices["in@example.edu"]
	require.True(t, ok, "new proctor notice missing")
	require.Contains(t, takeover.Body, "Your upcoming duties:")
	require.Contains(t, takeover.Body, "2026-10-12 CS546 Distributed Systems Final 09:00-11:00")
	require.Contains(t, takeover.Body, "2026-10-20 CS430 Algorithms Midterm 14:00-16:00")

	instructor, ok := notices["prof.li@example.edu"]
	require.True(t, ok, "instructor notice missing")
	require.Equal(t, "instructor_notice", instructor.Type)
	require.Contains(t, instructor.Subject, "CS546")
	require.Contains(t, instructor.Body, "Outgoing proctor: Aylin Demir")
	require.Contains(t, instructor.Body, "Incoming proctor: Mert Kaya")
}

func TestNotifySwapSkipsInstructorWithoutContact(t *testing.T) {
	sender := &captureSender{sent: make(chan Notification, 8)}
	svc := NewNotificationService(notificationTestConfig(), sender, zap.NewNop())
	svc.Start(context.Background())
	defer svc.Stop()

	exam := &models.Exam{
		CourseCode:     "CS430",
		Section:        "02",
		Title:          "Algorithms Midterm",
		InstructorName: "Prof. Acar",
		Date:           time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
		StartTime:      "14:00",
		EndTime:        "16:00",
	}
	request := &models.SwapRequest{Reason: "conference travel"}
	from := &models.Proctor{ID: "p-out", Email: "out@example.edu", FullName: "Aylin Demir"}
	to := &models.Proctor{ID: "p-in", Email: "in@example.edu", FullName: "Mert Kaya"}

	svc.NotifySwap(context.Background(), exam, request, from, to)

	notices := collectNotifications(t, sender.sent, 2)
	require.Contains(t, notices, "out@example.edu")
	require.Contains(t, notices, "in@example.edu")

	select {
	case n := <-sender.sent:
		t.Fatalf("unexpected extra notification to %s", n.Recipient)
	case <-time.After(100 * time.Millisecond):
	}
}
