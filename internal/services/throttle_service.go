package services

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/uniplus/internal/metrics"
	"github.com/BradenHooton/uniplus/internal/models"
	pkglogger "github.com/BradenHooton/uniplus/pkg/logger"
)

// ThrottleConfig holds the lockout rule for failed logins
type ThrottleConfig struct {
	MaxFailures int
	Cooldown    time.Duration
	// Decay resets the count once a full cool-down has passed since the last
	// failure. Off by default: only a successful login clears the count.
	Decay bool
}

// ThrottleService counts consecutive failed logins per student ID. State is
// held in process memory only and is lost on restart.
type ThrottleService struct {
	mu       sync.Mutex
	entries  map[string]*models.ThrottleEntry
	inFlight map[string]int
	config   ThrottleConfig
	logger  *slog.Logger
	now     func() time.Time
}

func NewThrottleService(config ThrottleConfig, logger *slog.Logger) *ThrottleService {
	return &ThrottleService{
		entries:  make(map[string]*models.ThrottleEntry),
		inFlight: make(map[string]int),
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (s *ThrottleService) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// CheckAllowed reports whether a login attempt for studentID may proceed and,
// if not, how long until it may.
func (s *ThrottleService) CheckAllowed(studentID string) (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	retryAfter := s.lockedFor(studentID)
	return retryAfter == 0, retryAfter
}

// lockedFor returns the remaining cool-down of studentID, zero when not
// locked. Caller holds mu.
func (s *ThrottleService) lockedFor(studentID string) time.Duration {
	entry, ok := s.entries[studentID]
	if !ok {
		return 0
	}

	sinceLast := s.now().Sub(entry.LastAttempt)
	if s.config.Decay && sinceLast >= s.config.Cooldown {
		delete(s.entries, studentID)
		return 0
	}

	if entry.Count >= s.config.MaxFailures && sinceLast < s.config.Cooldown {
		return s.config.Cooldown - sinceLast
	}
	return 0
}

// Check returns a *models.LockedError when studentID is locked out
func (s *ThrottleService) Check(studentID string) error {
	if allowed, retryAfter := s.CheckAllowed(studentID); !allowed {
		return &models.LockedError{RetryAfter: retryAfter}
	}
	return nil
}

// RecordFailure bumps the failure count and timestamp for studentID
func (s *ThrottleService) RecordFailure(studentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordFailure(studentID)
}

func (s *ThrottleService) recordFailure(studentID string) {
	now := s.now()
	entry, ok := s.entries[studentID]
	if !ok {
		entry = &models.ThrottleEntry{}
		s.entries[studentID] = entry
	} else if s.config.Decay && now.Sub(entry.LastAttempt) >= s.config.Cooldown {
		entry.Count = 0
	}

	entry.Count++
	entry.LastAttempt = now

	if entry.Count == s.config.MaxFailures {
		metrics.LockoutsTotal.Inc()
		if s.logger != nil {
			s.logger.Warn("login throttled",
				slog.String("student_id", pkglogger.SanitizedID(studentID)),
				slog.Int("failed_attempts", entry.Count),
				slog.Duration("cooldown", s.config.Cooldown))
		}
	}
}

// Attempt is a credential check admitted by Reserve. Exactly one of Succeed,
// Fail or Abandon settles it; later calls are no-ops.
type Attempt struct {
	throttle  *ThrottleService
	studentID string
	once      sync.Once
}

// Reserve admits one credential check for studentID. Checks still in flight
// count against the remaining failure budget, so concurrent callers can never
// run more checks than the failures it takes to lock the identity. Once the
// cool-down of a locked identity has passed, one check at a time is admitted.
func (s *ThrottleService) Reserve(studentID string) (*Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if retryAfter := s.lockedFor(studentID); retryAfter > 0 {
		return nil, &models.LockedError{RetryAfter: retryAfter}
	}

	remaining := s.config.MaxFailures
	if entry, ok := s.entries[studentID]; ok {
		remaining -= entry.Count
	}
	if remaining < 1 {
		remaining = 1
	}
	if s.inFlight[studentID] >= remaining {
		return nil, &models.LockedError{RetryAfter: s.config.Cooldown}
	}

	s.inFlight[studentID]++
	return &Attempt{throttle: s, studentID: studentID}, nil
}

// Succeed settles the attempt and clears every recorded failure
func (a *Attempt) Succeed() {
	a.settle(func(s *ThrottleService) { delete(s.entries, a.studentID) })
}

// Fail settles the attempt as a failed login
func (a *Attempt) Fail() {
	a.settle(func(s *ThrottleService) { s.recordFailure(a.studentID) })
}

// Abandon settles the attempt without recording an outcome
func (a *Attempt) Abandon() {
	a.settle(func(*ThrottleService) {})
}

func (a *Attempt) settle(record func(s *ThrottleService)) {
	a.once.Do(func() {
		s := a.throttle
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.inFlight[a.studentID] <= 1 {
			delete(s.inFlight, a.studentID)
		} else {
			s.inFlight[a.studentID]--
		}
		record(s)
	})
}

// RecordSuccess clears every recorded failure for studentID
func (s *ThrottleService) RecordSuccess(studentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, studentID)
}

// Failures returns the current failure count for studentID
func (s *ThrottleService) Failures(studentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[studentID]; ok {
		return entry.Count
	}
	return 0
}

// Sweep drops entries whose cool-down has fully elapsed and returns how many
// were removed. Without Decay counts never expire, so nothing is swept.
func (s *ThrottleService) Sweep() int {
	if !s.config.Decay {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.entries {
		if s.inFlight[id] > 0 {
			continue
		}
		if now.Sub(entry.LastAttempt) >= s.config.Cooldown {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
