package models

// User is a username/password identity. No email, no profile; anonymity is
// the point.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	// PasswordHash is a bcrypt hash; never serialized to clients.
	PasswordHash string `json:"password_hash,omitempty"`
	CreatedTS    int64  `json:"created_ts,omitempty"`
}

// Public returns a copy safe to hand to clients.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}
