package model

import "time"

// User is a vault account holder. This service never issues credentials;
// it only resolves identities (token subject, email lookups for sharing).
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
