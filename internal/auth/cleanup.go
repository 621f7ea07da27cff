// cleanup.go -- Periodic pruning of dead session rows.
//
// Runs once at startup and then on the interval. A best-effort Redis lock
// keeps a multi-instance deployment from running overlapping sweeps; the
// deletes themselves are idempotent, so a rare double run is wasted work,
// not corruption.
package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/AryanTejani/backend-Lms-sub001/internal/store"
)

const cleanupLockName = "session-cleanup"

// SessionJanitor is the pruning surface of one session table.
// Implemented by store.CustomerSessions and store.StaffSessions.
type SessionJanitor interface {
	CleanupRevoked(ctx context.Context, retention time.Duration, batchSize int) (int64, error)
	CleanupExpired(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

// JanitorTable pairs a session table with its name for logging.
type JanitorTable struct {
	Name    string
	Janitor SessionJanitor
}

// CleanupJob owns the cleanup schedule for every session table.
type CleanupJob struct {
	Locker *store.Locker
	Tables []JanitorTable

	Interval         time.Duration
	LockTTL          time.Duration
	RevokedRetention time.Duration
	SessionMaxAge    time.Duration
	BatchSize        int
}

// Run blocks until ctx is canceled, sweeping immediately and then every
// Interval. Call it from its own goroutine.
func (j *CleanupJob) Run(ctx context.Context) {
	j.RunOnce(ctx)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep if this instance wins the lock.
func (j *CleanupJob) RunOnce(ctx context.Context) {
	lock, err := j.Locker.Acquire(ctx, cleanupLockName, j.LockTTL)
	if err != nil {
		// Redis down: skip this sweep rather than risk a stampede of
		// unlocked deletes across instances.
		slog.Warn("cleanup lock acquisition failed, skipping sweep", "error", err)
		return
	}
	if lock == nil {
		slog.Debug("cleanup already running elsewhere, skipping sweep")
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			// The lock TTL expires it anyway.
			slog.Warn("cleanup lock release failed", "error", err)
		}
	}()

	start := time.Now()
	for _, t := range j.Tables {
		revoked, err := t.Janitor.CleanupRevoked(ctx, j.RevokedRetention, j.BatchSize)
		if err != nil {
			slog.Error("revoked session cleanup failed", "table", t.Name, "error", err)
		}
		expired, err := t.Janitor.CleanupExpired(ctx, j.SessionMaxAge, j.BatchSize)
		if err != nil {
			slog.Error("expired session cleanup failed", "table", t.Name, "error", err)
		}
		slog.Info("session cleanup", "table", t.Name,
			"revoked_deleted", revoked, "expired_deleted", expired)
	}
	slog.Info("session cleanup sweep finished", "duration", time.Since(start))
}
