package domain

import "time"

// Credential is the pair of tokens issued by the backend at login. It is
// owned exclusively by the session store; consumers re-read it per use so a
// concurrent refresh is visible to the next call.
type Credential struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Empty reports whether no credential is held (logged out).
func (c Credential) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// User is the authenticated account as returned by GET /api/auth/me.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Username  string     `json:"username"`
	Role      string     `json:"role"` // "USER" or "ADMIN"
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}
