package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSubject = Subject{
	ID:               "octocat",
	DisplayName:      "The Octocat",
	Role:             "user",
	ProviderIdentity: "octocat",
}

func newTestService(t *testing.T, key string) *Service {
	t.Helper()
	svc, err := NewService([]byte(key))
	require.NoError(t, err)
	return svc
}

func TestNewService_RequiresKey(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}

func TestIssue_Validation(t *testing.T) {
	svc := newTestService(t, "test-signing-key")

	tests := []struct {
		name string
		sub  Subject
		ttl  time.Duration
	}{
		{name: "missing subject id", sub: Subject{Role: "user"}, ttl: time.Minute},
		{name: "missing role", sub: Subject{ID: "octocat"}, ttl: time.Minute},
		{name: "zero ttl", sub: testSubject, ttl: 0},
		{name: "negative ttl", sub: testSubject, ttl: -time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Issue(tt.sub, tt.ttl)
			assert.Error(t, err)
		})
	}
}

func TestVerify_RoundTrip(t *testing.T) {
	svc := newTestService(t, "test-signing-key")

	token, err := svc.Issue(testSubject, 30*time.Minute)
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, testSubject.ID, claims.Subject)
	assert.Equal(t, testSubject.DisplayName, claims.DisplayName)
	assert.Equal(t, testSubject.Role, claims.Role)
	assert.Equal(t, testSubject.ProviderIdentity, claims.ProviderIdentity)
	assert.NotEmpty(t, claims.ID, "jti should be set")
}

func TestVerify_Expired(t *testing.T) {
	svc := newTestService(t, "test-signing-key")

	issued := time.Now().UTC()
	svc.now = func() time.Time { return issued }

	token, err := svc.Issue(testSubject, time.Minute)
	require.NoError(t, err)

	// Still valid just before expiry.
	svc.now = func() time.Time { return issued.Add(59 * time.Second) }
	_, err = svc.Verify(token)
	require.NoError(t, err)

	// Rejected once past expiry.
	svc.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_WrongKey(t *testing.T) {
	issuerSvc := newTestService(t, "key-one")
	verifierSvc := newTestService(t, "key-two")

	token, err := issuerSvc.Issue(testSubject, time.Minute)
	require.NoError(t, err)

	_, err = verifierSvc.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalidSignature)
}

func TestVerify_TamperedRole(t *testing.T) {
	svc := newTestService(t, "test-signing-key")

	token, err := svc.Issue(testSubject, time.Minute)
	require.NoError(t, err)

	// Re-issue under a different key with an elevated role and splice the
	// forged payload onto the original signature.
	forger := newTestService(t, "attacker-key")
	admin := testSubject
	admin.Role = "admin"
	forged, err := forger.Issue(admin, time.Minute)
	require.NoError(t, err)

	spliced := splitJWT(t, forged)[0] + "." + splitJWT(t, forged)[1] + "." + splitJWT(t, token)[2]
	_, err = svc.Verify(spliced)
	assert.ErrorIs(t, err, ErrTokenInvalidSignature)
}

func TestVerify_Malformed(t *testing.T) {
	svc := newTestService(t, "test-signing-key")

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "two segments", token: "aaaa.bbbb"},
		{name: "binary", token: "\x00\x01\x02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			assert.ErrorIs(t, err, ErrTokenMalformed)
		})
	}
}

func TestIsVerificationError(t *testing.T) {
	assert.True(t, IsVerificationError(ErrTokenExpired))
	assert.True(t, IsVerificationError(ErrTokenInvalidSignature))
	assert.True(t, IsVerificationError(ErrTokenMalformed))
	assert.False(t, IsVerificationError(nil))
	assert.False(t, IsVerificationError(assert.AnError))
}

func splitJWT(t *testing.T, token string) []string {
	t.Helper()
	parts := make([]string, 0, 3)
	start := 0
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			parts = append(parts, token[start:i])
			start = i + 1
		}
	}
	parts = append(parts, token[start:])
	require.Len(t, parts, 3)
	return parts
}
