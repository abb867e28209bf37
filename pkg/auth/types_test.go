package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{input: "anonymous", want: RoleAnonymous},
		{input: "user", want: RoleUser},
		{input: "admin", want: RoleAdmin},
		{input: "", wantErr: true},
		{input: "superuser", wantErr: true},
		{input: "Admin", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			role, err := ParseRole(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, role)
		})
	}
}

func TestRoleAtLeast(t *testing.T) {
	assert.True(t, RoleAdmin.AtLeast(RoleUser))
	assert.True(t, RoleAdmin.AtLeast(RoleAdmin))
	assert.True(t, RoleUser.AtLeast(RoleAnonymous))
	assert.False(t, RoleUser.AtLeast(RoleAdmin))
	assert.False(t, RoleAnonymous.AtLeast(RoleUser))
}

func TestNewRequestContext(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(r *http.Request)
		wantSession string
		wantRaw     string
	}{
		{
			name:  "empty request",
			setup: func(r *http.Request) {},
		},
		{
			name: "bearer header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer abc.def.ghi")
			},
			wantSession: "abc.def.ghi",
		},
		{
			name: "bearer scheme is case insensitive",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "bearer abc.def.ghi")
			},
			wantSession: "abc.def.ghi",
		},
		{
			name: "session cookie",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
			},
			wantSession: "cookie-token",
		},
		{
			name: "header takes precedence over cookie",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer header-token")
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
			},
			wantSession: "header-token",
		},
		{
			name: "basic scheme is ignored",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
			},
		},
		{
			name: "raw provider token header",
			setup: func(r *http.Request) {
				r.Header.Set(RawTokenHeader, "gho_raw")
			},
			wantRaw: "gho_raw",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)

			rc := NewRequestContext(r)
			assert.Equal(t, tt.wantSession, rc.SessionToken)
			assert.Equal(t, tt.wantRaw, rc.RawProviderToken)
		})
	}
}
