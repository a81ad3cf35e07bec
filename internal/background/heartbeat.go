package background

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BradenHooton/uniplus/internal/metrics"
	"github.com/BradenHooton/uniplus/internal/models"
	pkglogger "github.com/BradenHooton/uniplus/pkg/logger"
)

// SessionSource is the part of the session manager the heartbeat drives
type SessionSource interface {
	Current(ctx context.Context) (*models.Session, error)
	Rotate(ctx context.Context, session *models.Session) (*models.Session, error)
	TerminateIf(ctx context.Context, accessToken string) error
	Now() time.Time
}

// ForcedLogoutFunc is told why a session was cleared. It runs on the
// heartbeat goroutine and must not call End.
type ForcedLogoutFunc func(session *models.Session, reason error)

type HeartbeatConfig struct {
	Interval   time.Duration
	WarnWindow time.Duration
}

// Heartbeat polls the active session while an authenticated context is bound.
// Inside the warn window it starts one silent rotation at a time; on hard
// expiry or a failed rotation it clears the session.
type Heartbeat struct {
	sessions       SessionSource
	config         HeartbeatConfig
	logger         *slog.Logger
	onForcedLogout ForcedLogoutFunc

	refreshing atomic.Bool
	rotations  sync.WaitGroup
	loops      sync.WaitGroup

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

func NewHeartbeat(sessions SessionSource, config HeartbeatConfig, logger *slog.Logger, onForcedLogout ForcedLogoutFunc) *Heartbeat {
	return &Heartbeat{
		sessions:       sessions,
		config:         config,
		logger:         logger,
		onForcedLogout: onForcedLogout,
	}
}

// Begin binds the heartbeat to a fresh authenticated context, replacing any
// loop that is already running. The first tick runs immediately.
func (h *Heartbeat) Begin() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.gen++

	h.loops.Add(1)
	go h.loop(ctx, cancel, h.gen)
}

// End cancels the bound context and waits for the loop and any in-flight
// rotation to return.
func (h *Heartbeat) End() {
	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.mu.Unlock()

	h.loops.Wait()
	h.rotations.Wait()
}

// Running reports whether a loop is currently bound
func (h *Heartbeat) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancel != nil
}

// WaitRotation blocks until no rotation is in flight
func (h *Heartbeat) WaitRotation() {
	h.rotations.Wait()
}

func (h *Heartbeat) loop(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer h.loops.Done()
	defer func() {
		h.mu.Lock()
		if h.gen == gen && h.cancel != nil {
			h.cancel = nil
		}
		h.mu.Unlock()
	}()

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	if h.tick(ctx, cancel) {
		return
	}

	for {
		select {
		case <-ticker.C:
			if h.tick(ctx, cancel) {
				return
			}
		case <-ctx.Done():
			h.logger.Debug("heartbeat stopped")
			return
		}
	}
}

// Tick runs one heartbeat check outside the loop
func (h *Heartbeat) Tick(ctx context.Context) {
	h.tick(ctx, nil)
}

// tick reports true once the session has been force-logged-out
func (h *Heartbeat) tick(ctx context.Context, cancel context.CancelFunc) bool {
	if ctx.Err() != nil || h.refreshing.Load() {
		return false
	}

	session, err := h.sessions.Current(ctx)
	if err != nil {
		if !errors.Is(err, models.ErrNoSession) {
			h.logger.Error("heartbeat failed to read session", slog.Any("error", err))
		}
		return false
	}

	timeLeft := session.TimeLeft(h.sessions.Now())
	switch {
	case timeLeft <= 0:
		h.forceLogout(ctx, session, models.ErrSessionExpired)
		return true
	case timeLeft < h.config.WarnWindow:
		if h.refreshing.CompareAndSwap(false, true) {
			h.rotations.Add(1)
			go h.rotate(ctx, cancel, session)
		}
	}
	return false
}

func (h *Heartbeat) rotate(ctx context.Context, cancel context.CancelFunc, session *models.Session) {
	defer h.rotations.Done()
	defer h.refreshing.Store(false)

	rotated, err := h.sessions.Rotate(ctx, session)
	if err == nil {
		h.logger.Info("session rotated silently",
			slog.String("student_id", pkglogger.SanitizedID(rotated.User.StudentID)),
			slog.Time("expires_at", rotated.ExpiresAtTime()))
		return
	}

	// Unbound meanwhile, or the slot now belongs to another session
	if ctx.Err() != nil || errors.Is(err, models.ErrNoSession) {
		return
	}

	h.forceLogout(ctx, session, err)
	if cancel != nil {
		cancel()
	}
}

func (h *Heartbeat) forceLogout(ctx context.Context, session *models.Session, reason error) {
	if err := h.sessions.TerminateIf(context.WithoutCancel(ctx), session.AccessToken); err != nil {
		h.logger.Error("failed to clear session", slog.Any("error", err))
	}

	label := "expired"
	if errors.Is(reason, models.ErrRotationFailed) {
		label = "rotation_failed"
	}
	metrics.ForcedLogoutsTotal.WithLabelValues(label).Inc()

	h.logger.Warn("forced logout",
		slog.String("student_id", pkglogger.SanitizedID(session.User.StudentID)),
		slog.String("reason", label),
		slog.Any("error", reason))

	if h.onForcedLogout != nil {
		h.onForcedLogout(session, reason)
	}
}
