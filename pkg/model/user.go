package model

// User is the identity held by an authenticated session.
type User struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Role        string `json:"role"`
	RequiresMFA bool   `json:"requiresMFA,omitempty"`
}

// FullName returns "First Last".
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// MFASetup is returned when a user enrols an authenticator app.
type MFASetup struct {
	QRCode string `json:"qrCode"`
	Secret string `json:"secret"`
	URL    string `json:"url,omitempty"`
}

// LoginResult is returned by a successful password check.
type LoginResult struct {
	User        User   `json:"user"`
	RequiresMFA bool   `json:"requiresMFA"`
	Token       string `json:"token"`
}

// MFAResult is returned by a successful second-factor check.
type MFAResult struct {
	User     User   `json:"user"`
	Token    string `json:"token"`
	Verified bool   `json:"verified"`
}
