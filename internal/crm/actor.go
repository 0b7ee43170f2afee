package crm

import "strings"

// Actor identifies the user performing an operation.
type Actor struct {
	ID    string
	Name  string
	Email string
}

// Present reports whether the actor carries an identity.
func (a Actor) Present() bool {
	return strings.TrimSpace(a.ID) != ""
}

// DisplayName returns the best human-readable label for the actor.
func (a Actor) DisplayName() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	if email := strings.TrimSpace(a.Email); email != "" {
		return email
	}
	return a.ID
}
