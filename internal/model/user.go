package model

import "strings"

// User is the authenticated principal resolved at login or startup
// validation. The backend has no identity endpoint, so after a restart
// the user is reconstructed from the locally cached address.
type User struct {
	// ID is the server-assigned user identifier.
	ID string `json:"id"`

	// Address is the user's email address.
	Address string `json:"address"`

	// Name is the display name, derived from the local part of the
	// address.
	Name string `json:"name"`
}

// DisplayName derives a display name from an email address by taking
// the local part. An address without an "@" is returned unchanged.
func DisplayName(address string) string {
	if i := strings.Index(address, "@"); i > 0 {
		return address[:i]
	}
	return address
}
