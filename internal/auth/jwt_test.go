package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	tokens, err := Issue("maria", RoleAdmin, "regdesk", "signing-key", time.Minute, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(tokens.AccessToken, "signing-key", "regdesk")
	require.NoError(t, err)
	require.Equal(t, "maria", claims.Subject)
	require.Equal(t, RoleAdmin, claims.Role)
}

func TestParseRejectsWrongKey(t *testing.T) {
	tokens, err := Issue("maria", RoleStaff, "regdesk", "signing-key", time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(tokens.AccessToken, "other-key", "regdesk")
	require.Error(t, err)
}

func TestParseRejectsIssuerMismatch(t *testing.T) {
	tokens, err := Issue("maria", RoleStaff, "someone-else", "signing-key", time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(tokens.AccessToken, "signing-key", "regdesk")
	require.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	tokens, err := Issue("maria", RoleStaff, "regdesk", "signing-key", -time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(tokens.AccessToken, "signing-key", "regdesk")
	require.Error(t, err)
}
