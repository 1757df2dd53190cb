package services

import (
	"fmt"
	"strings"
	"time"

	"learnhub_go/models"
	"learnhub_go/services/notifications"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReminderLead is how long before a session starts its reminder goes out.
const ReminderLead = time.Hour

// NotificationScheduler runs the time-driven session jobs: reminders before a
// session, the daily agenda and closing sessions whose end time has passed.
type NotificationScheduler struct {
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
}

func NewNotificationScheduler(db *gorm.DB, notifier Notifier) *NotificationScheduler {
	return &NotificationScheduler{db: db, notifier: notifier, now: utcNow}
}

// participants returns the course instructor and its actively enrolled students.
func (ns *NotificationScheduler) participants(courseID, instructorID uint) ([]uint, error) {
	var ids []uint
	if err := ns.db.Model(&models.Enrollment{}).
		Where("course_id = ? AND status = ?", courseID, models.EnrollmentActive).
		Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}
	if instructorID != 0 {
		ids = append(ids, instructorID)
	}
	return ids, nil
}

// CheckUpcomingSessions reminds participants of scheduled sessions starting
// within ReminderLead. Each session is reminded at most once.
func (ns *NotificationScheduler) CheckUpcomingSessions() int {
	now := ns.now()

	var sessions []models.ClassSession
	err := ns.db.Preload("Course").
		Where("status = ? AND reminder_sent_at IS NULL AND start_time > ? AND start_time <= ?",
			models.SessionScheduled, now, now.Add(ReminderLead)).
		Order("start_time ASC").
		Find(&sessions).Error
	if err != nil {
		logrus.WithError(err).Error("failed to load upcoming sessions")
		return 0
	}

	sent := 0
	for _, session := range sessions {
		// claim the session first so overlapping runs do not remind twice
		res := ns.db.Model(&models.ClassSession{}).
			Where("id = ? AND reminder_sent_at IS NULL", session.ID).
			Update("reminder_sent_at", now)
		if res.Error != nil {
			logrus.WithError(res.Error).WithField("session_id", session.ID).Error("failed to mark reminder")
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}

		var instructorID uint
		courseTitle := ""
		if session.Course != nil {
			instructorID = session.Course.InstructorID
			courseTitle = session.Course.Title
		}
		ids, err := ns.participants(session.CourseID, instructorID)
		if err != nil {
			logrus.WithError(err).WithField("session_id", session.ID).Error("failed to load participants")
			continue
		}

		minutes := int(session.StartTime.Sub(now).Round(time.Minute).Minutes())
		notify(ns.notifier, ids, notifications.NewWithData(
			"Upcoming session",
			fmt.Sprintf("%s: %s starts in %d minutes at %s UTC.", courseTitle, session.Title, minutes, session.StartTime.Format("15:04")),
			models.NotificationSession,
			map[string]uint{"session_id": session.ID, "course_id": session.CourseID},
			"normal", "popup", "line"))
		sent++
	}

	if sent > 0 {
		logrus.WithField("sessions", sent).Info("sent session reminders")
	}
	return sent
}

// SendDailyScheduleReminder sends every participant one digest of the
// sessions scheduled in the next 24 hours.
func (ns *NotificationScheduler) SendDailyScheduleReminder() int {
	now := ns.now()

	var sessions []models.ClassSession
	err := ns.db.Preload("Course").
		Where("status = ? AND start_time BETWEEN ? AND ?", models.SessionScheduled, now, now.Add(24*time.Hour)).
		Order("start_time ASC").
		Find(&sessions).Error
	if err != nil {
		logrus.WithError(err).Error("failed to load daily sessions")
		return 0
	}

	perUser := make(map[uint][]models.ClassSession)
	for _, session := range sessions {
		var instructorID uint
		if session.Course != nil {
			instructorID = session.Course.InstructorID
		}
		ids, err := ns.participants(session.CourseID, instructorID)
		if err != nil {
			logrus.WithError(err).WithField("session_id", session.ID).Warn("failed to load participants")
			continue
		}
		for _, id := range ids {
			perUser[id] = append(perUser[id], session)
		}
	}

	for userID, list := range perUser {
		var b strings.Builder
		b.WriteString("Sessions in the next 24 hours:\n")
		for _, s := range list {
			title := s.Title
			if s.Course != nil {
				title = s.Course.Title + ": " + s.Title
			}
			fmt.Fprintf(&b, "- %s at %s UTC\n", title, s.StartTime.Format("Jan 2 15:04"))
		}
		notify(ns.notifier, []uint{userID}, notifications.New("Daily schedule", b.String(), models.NotificationInfo))
	}
	return len(perUser)
}

// CompleteFinishedSessions marks in-progress sessions whose end time has
// passed as completed.
func (ns *NotificationScheduler) CompleteFinishedSessions() int64 {
	res := ns.db.Model(&models.ClassSession{}).
		Where("status = ? AND end_time < ?", models.SessionInProgress, ns.now()).
		Update("status", models.SessionCompleted)
	if res.Error != nil {
		logrus.WithError(res.Error).Error("failed to complete finished sessions")
		return 0
	}
	if res.RowsAffected > 0 {
		logrus.WithField("sessions", res.RowsAffected).Info("completed finished sessions")
	}
	return res.RowsAffected
}
