package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPromptCredentials(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	username, password, err := promptCredentials(strings.NewReader("alice\nsecret\n"), &out)
	require.NoError(t, err)
	require.Equal(t, "alice", username)
	require.Equal(t, "secret", password)
	require.Contains(t, out.String(), "Username: ")
	require.Contains(t, out.String(), "Password: ")
}

func TestPromptCredentialsTrimsWhitespace(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	username, password, err := promptCredentials(strings.NewReader("  alice  \n  secret  \n"), &out)
	require.NoError(t, err)
	require.Equal(t, "alice", username)
	require.Equal(t, "secret", password)
}

func TestPromptCredentialsRequiresUsername(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	_, _, err := promptCredentials(strings.NewReader("\nsecret\n"), &out)
	require.ErrorContains(t, err, "username is required")
}

func TestPromptCredentialsRequiresPassword(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	_, _, err := promptCredentials(strings.NewReader("alice\n\n"), &out)
	require.ErrorContains(t, err, "password is required")
}

func TestPromptCredentialsWithoutTrailingNewline(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	username, password, err := promptCredentials(strings.NewReader("alice\nsecret"), &out)
	require.NoError(t, err)
	require.Equal(t, "alice", username)
	require.Equal(t, "secret", password)
}
