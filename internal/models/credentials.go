// Package models defines data structures and domain types.
package models

// Credentials holds the API token and group identifier used to scope the
// Coding Plan usage query. It is the sole content of the credential file.
type Credentials struct {
	Token   string `json:"token"`
	GroupID string `json:"groupId"`
}

// IsComplete reports whether both the token and the group ID are set.
func (c *Credentials) IsComplete() bool {
	return c != nil && c.Token != "" && c.GroupID != ""
}

// MaskedToken returns the token with everything but its last 4 characters hidden.
func (c *Credentials) MaskedToken() string {
	if c == nil || c.Token == "" {
		return ""
	}
	runes := []rune(c.Token)
	if len(runes) <= 4 {
		return "****" + c.Token
	}
	return "****" + string(runes[len(runes)-4:])
}
