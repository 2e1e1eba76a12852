// ABOUTME: Dashboard stats loader fetching user and schedule counts in parallel
// ABOUTME: A failed fetch degrades its figure to zero instead of failing the view

// Package dashboard loads the summary figures shown on the console home page.
package dashboard

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/posible/posible-admin/internal/backend"
)

// Figure names reported in Stats.Degraded.
const (
	FigureUsers     = "users"
	FigureSchedules = "schedules"
)

// Source is the part of the admin API the dashboard reads.
type Source interface {
	Users(ctx context.Context) ([]backend.User, error)
	Schedules(ctx context.Context, phoneNumber string) ([]backend.Schedule, error)
}

// Stats are the dashboard figures. Degraded names the figures whose fetch
// failed and were reported as zero.
type Stats struct {
	Users     int
	Schedules int
	Degraded  []string
}

// IsDegraded reports whether any figure failed to load.
func (s Stats) IsDegraded() bool {
	return len(s.Degraded) > 0
}

// Loader computes Stats from a Source.
type Loader struct {
	source Source
	logger *slog.Logger
}

// NewLoader returns a Loader reading from source.
func NewLoader(source Source, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{source: source, logger: logger.With("component", "dashboard")}
}

// Load fetches both figures concurrently. It never fails; fetch errors are
// logged and surface only through Stats.Degraded. There is no retry.
func (l *Loader) Load(ctx context.Context) Stats {
	var (
		g                  errgroup.Group
		users, schedules   int
		usersErr, schedErr error
	)

	g.Go(func() error {
		list, err := l.source.Users(ctx)
		users, usersErr = len(list), err
		return nil
	})
	g.Go(func() error {
		list, err := l.source.Schedules(ctx, "")
		schedules, schedErr = len(list), err
		return nil
	})
	_ = g.Wait()

	var stats Stats
	if usersErr != nil {
		l.logger.Warn("user count unavailable", "error", usersErr)
		stats.Degraded = append(stats.Degraded, FigureUsers)
	} else {
		stats.Users = users
	}
	if schedErr != nil {
		l.logger.Warn("schedule count unavailable", "error", schedErr)
		stats.Degraded = append(stats.Degraded, FigureSchedules)
	} else {
		stats.Schedules = schedules
	}
	return stats
}
