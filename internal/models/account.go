package models

// Account is an identity record in the credential store, keyed by StudentID
type Account struct {
	StudentID    string `json:"studentId"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"` // verifier, never the raw password
	Profile      User   `json:"profile"`
}
