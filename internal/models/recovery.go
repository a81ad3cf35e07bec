package models

import "time"

// RecoveryTicket is a pending password recovery for one account
type RecoveryTicket struct {
	StudentID string    `json:"studentId"`
	CodeHash  string    `json:"codeHash"` // SHA-256 of the mailed code
	ExpiresAt time.Time `json:"expiresAt"`
	Attempts  int       `json:"attempts"` // wrong codes entered so far
}
