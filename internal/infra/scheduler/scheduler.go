package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"substitute_sms_notifier/internal/app"
)

// Notifier delivers the morning digest to the operator.
type Notifier interface {
	NotifyAdmin(text string) error
}

// TeacherSource is the part of the session the scheduler drives.
type TeacherSource interface {
	RefreshPreservingSelection(ctx context.Context) error
	Teachers() []app.TeacherView
}

type RefreshScheduler struct {
	cronEngine      *cron.Cron
	source          TeacherSource
	notifier        Notifier
	logger          *logrus.Entry
	cronSpecRefresh string
	cronSpecDigest  string
}

func NewRefreshScheduler(
	source TeacherSource,
	notifier Notifier,
	logger *logrus.Entry,
	cronSpecRefresh string,
	cronSpecDigest string,
) *RefreshScheduler {
	return &RefreshScheduler{
		cronEngine:      cron.New(cron.WithLocation(time.Local)),
		source:          source,
		notifier:        notifier,
		logger:          logger.WithField("component", "scheduler"),
		cronSpecRefresh: cronSpecRefresh,
		cronSpecDigest:  cronSpecDigest,
	}
}

// Start registers the jobs and starts the cron engine.
func (s *RefreshScheduler) Start() error {
	s.logger.Info("Starting scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpecRefresh, s.runRefresh); err != nil {
		return fmt.Errorf("could not add refresh job: %w", err)
	}
	if s.notifier != nil {
		if _, err := s.cronEngine.AddFunc(s.cronSpecDigest, s.runDigest); err != nil {
			return fmt.Errorf("could not add digest job: %w", err)
		}
	}

	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{
		"refresh": s.cronSpecRefresh,
		"digest":  s.cronSpecDigest,
	}).Info("Scheduler started with jobs")
	return nil
}

func (s *RefreshScheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.source.RefreshPreservingSelection(ctx); err != nil {
		s.logger.WithError(err).Error("Scheduled refresh failed")
		return
	}
	s.logger.Debug("Scheduled refresh done")
}

func (s *RefreshScheduler) runDigest() {
	s.runRefresh()
	if err := s.notifier.NotifyAdmin(Digest(s.source.Teachers())); err != nil {
		s.logger.WithError(err).Error("Failed to send digest")
	}
}

// Digest summarizes the teacher list for the operator.
func Digest(views []app.TeacherView) string {
	if len(views) == 0 {
		return "Good morning. No substitute assignments are loaded."
	}
	selected := 0
	var missing []string
	for _, v := range views {
		if v.Selected {
			selected++
		}
		if !v.PhoneValid {
			missing = append(missing, v.Name)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Good morning. %d teachers have assignments, %d selected.", len(views), selected)
	if len(missing) > 0 {
		fmt.Fprintf(&b, "\nMissing or invalid phone: %s", strings.Join(missing, ", "))
	}
	b.WriteString("\nUse /teachers to review and /send when ready.")
	return b.String()
}

// Stop waits for running jobs to finish.
func (s *RefreshScheduler) Stop() {
	s.logger.Info("Stopping scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler gracefully stopped.")
}
