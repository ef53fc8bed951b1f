package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	req := require.New(t)
	v := NewVerifier("test-secret", time.Hour)

	token, err := v.Issue(Identity{UserID: "u-1", Username: "alice"})
	req.NoError(err)
	req.NotEmpty(token)

	id, err := v.Verify(token)
	req.NoError(err)
	req.Equal("u-1", id.UserID)
	req.Equal("alice", id.Username)
	req.False(id.IsAnonymous())
}

func TestVerifyMissingCredential(t *testing.T) {
	v := NewVerifier("test-secret", time.Hour)

	_, err := v.Verify("")
	require.ErrorIs(t, err, ErrNoCredential)
}

func TestVerifyMalformedCredential(t *testing.T) {
	v := NewVerifier("test-secret", time.Hour)

	_, err := v.Verify("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestVerifyWrongSecret(t *testing.T) {
	req := require.New(t)
	issuer := NewVerifier("secret-a", time.Hour)
	verifier := NewVerifier("secret-b", time.Hour)

	token, err := issuer.Issue(Identity{UserID: "u-1", Username: "alice"})
	req.NoError(err)

	_, err = verifier.Verify(token)
	req.ErrorIs(err, ErrInvalidCredential)
}

func TestVerifyExpiredCredential(t *testing.T) {
	req := require.New(t)
	v := NewVerifier("test-secret", -time.Minute)

	token, err := v.Issue(Identity{UserID: "u-1", Username: "alice"})
	req.NoError(err)

	_, err = v.Verify(token)
	req.ErrorIs(err, ErrInvalidCredential)
}

func TestVerifyRejectsEmptySubject(t *testing.T) {
	req := require.New(t)
	v := NewVerifier("test-secret", time.Hour)

	token, err := v.Issue(Identity{})
	req.NoError(err)

	_, err = v.Verify(token)
	req.ErrorIs(err, ErrInvalidCredential)
}

func TestAnonymousIdentity(t *testing.T) {
	require.True(t, Identity{}.IsAnonymous())
	require.False(t, Identity{UserID: "u"}.IsAnonymous())
}
