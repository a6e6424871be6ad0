package domain

// SessionState is a read-only snapshot of the session store.
type SessionState struct {
	Identity      *Identity `json:"user"`
	Authenticated bool      `json:"isAuthenticated"`
	Loading       bool      `json:"loading"`
}
