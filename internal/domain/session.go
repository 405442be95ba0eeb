package domain

import "strings"

// Session is the material a client attaches to every write call.
// There is no token and no expiry; logging out discards the value.
type Session struct {
	Name     string `json:"display_name"`
	Password string `json:"password"`
}

// NewSession trims the name the same way registration does
func NewSession(name, password string) Session {
	return Session{
		Name:     strings.TrimSpace(name),
		Password: password,
	}
}

// Valid reports whether both name and password are present
func (s Session) Valid() bool {
	return s.Name != "" && s.Password != ""
}
