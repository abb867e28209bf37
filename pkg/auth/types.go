package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Mode selects the process-wide operating posture. It is resolved once at
// startup and never changes for the process lifetime.
type Mode string

const (
	// ModeSingleUser runs the gateway for one operator; authentication is
	// optional and controlled by the single-user auth flag.
	ModeSingleUser Mode = "single_user"
	// ModeMultiUser runs the gateway for multiple tenants; authentication
	// is mandatory and role-scoped.
	ModeMultiUser Mode = "multi_user"
)

// Role is the access level attached to a principal.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
)

var roleRank = map[Role]int{
	RoleAnonymous: 0,
	RoleUser:      1,
	RoleAdmin:     2,
}

// ParseRole converts a string to a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// AtLeast reports whether r grants at least the access of min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// Principal is the resolved identity and role attached to an authenticated
// request. It is constructed per request and never persisted directly.
type Principal struct {
	SubjectID        string `json:"subject_id"`
	DisplayName      string `json:"display_name,omitempty"`
	Role             Role   `json:"role"`
	Active           bool   `json:"active"`
	ProviderIdentity string `json:"provider_identity,omitempty"`
}

// User is the persisted account record in multi-tenant mode. The provider
// identity is unique and immutable after creation; deactivation is a soft
// flag and rows are never auto-deleted.
type User struct {
	ID                     int64      `json:"id"`
	ProviderIdentity       string     `json:"provider_identity"`
	DisplayName            string     `json:"display_name,omitempty"`
	Email                  string     `json:"email,omitempty"`
	AvatarURL              string     `json:"avatar_url,omitempty"`
	Role                   Role       `json:"role"`
	Active                 bool       `json:"active"`
	EncryptedProviderToken []byte     `json:"-"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	LastLoginAt            *time.Time `json:"last_login_at,omitempty"`
}

// Principal builds the request-scoped principal for the user.
func (u *User) Principal() Principal {
	return Principal{
		SubjectID:        u.ProviderIdentity,
		DisplayName:      u.DisplayName,
		Role:             u.Role,
		Active:           u.Active,
		ProviderIdentity: u.ProviderIdentity,
	}
}

const (
	// SessionCookieName carries the session credential for browser clients.
	SessionCookieName = "hubgate_session"
	// RawTokenHeader carries an unauthenticated provider token, consumed
	// only in single-user mode without auth.
	RawTokenHeader = "X-GitHub-Token"
)

// RequestContext exposes the credential carriers of one inbound request.
type RequestContext struct {
	// SessionToken is the bearer- or cookie-carried session credential,
	// empty if absent.
	SessionToken string
	// RawProviderToken is the optional raw provider token header.
	RawProviderToken string
}

// NewRequestContext extracts credential carriers from an HTTP request.
// The Authorization header takes precedence over the session cookie.
func NewRequestContext(r *http.Request) RequestContext {
	rc := RequestContext{
		RawProviderToken: r.Header.Get(RawTokenHeader),
	}

	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			rc.SessionToken = parts[1]
		}
	}
	if rc.SessionToken == "" {
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			rc.SessionToken = cookie.Value
		}
	}
	return rc
}
