package models

import "time"

// ThrottleEntry tracks consecutive failed logins for one student ID.
// Lives in process memory only.
type ThrottleEntry struct {
	Count       int
	LastAttempt time.Time
}
