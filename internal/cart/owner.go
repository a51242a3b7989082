package cart

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

const sessionTokenBytes = 32

// Owner identifies who a cart belongs to: an authenticated user or an
// anonymous browser session. Exactly one side is set.
type Owner struct {
	userID       *uuid.UUID
	sessionToken string
}

// UserOwner builds an owner for an authenticated user.
func UserOwner(userID uuid.UUID) Owner {
	id := userID
	return Owner{userID: &id}
}

// SessionOwner builds an owner for an anonymous session token.
func SessionOwner(token string) Owner {
	return Owner{sessionToken: token}
}

// ResolveOwner applies the precedence rule: a user identity always wins over a
// session token, even when both are present on the request.
func ResolveOwner(userID *uuid.UUID, sessionToken string) (Owner, error) {
	if userID != nil && *userID != uuid.Nil {
		return UserOwner(*userID), nil
	}
	if sessionToken != "" {
		return SessionOwner(sessionToken), nil
	}
	return Owner{}, fmt.Errorf("no cart identity on request")
}

// IsUser reports whether the owner is an authenticated user.
func (o Owner) IsUser() bool {
	return o.userID != nil
}

// IsZero reports whether the owner carries no identity at all.
func (o Owner) IsZero() bool {
	return o.userID == nil && o.sessionToken == ""
}

// UserID returns the owning user id; only meaningful when IsUser is true.
func (o Owner) UserID() uuid.UUID {
	if o.userID == nil {
		return uuid.Nil
	}
	return *o.userID
}

// SessionToken returns the owning session token; empty for user owners.
func (o Owner) SessionToken() string {
	return o.sessionToken
}

// String renders the owner for log fields without leaking the full token.
func (o Owner) String() string {
	if o.userID != nil {
		return "user:" + o.userID.String()
	}
	if len(o.sessionToken) > 8 {
		return "session:" + o.sessionToken[:8] + "..."
	}
	return "session:" + o.sessionToken
}

// NewSessionToken mints an opaque token for a fresh anonymous session.
func NewSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
