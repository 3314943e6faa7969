package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIDUnmarshalAcceptsNumbersAndStrings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    ID
		wantErr bool
	}{
		{name: "number", input: `7`, want: ID("7")},
		{name: "string", input: `"local-abc"`, want: ID("local-abc")},
		{name: "null", input: `null`, want: ID("")},
		{name: "object", input: `{}`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var id ID
			err := json.Unmarshal([]byte(tc.input), &id)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, id)
		})
	}
}

func TestMessageUnmarshalBackendRecord(t *testing.T) {
	t.Parallel()

	raw := `{
		"id": 42,
		"sender": 1,
		"recipient": 2,
		"content": "hello",
		"timestamp": "2026-03-01T10:15:00Z",
		"is_read": false
	}`

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	require.Equal(t, ID("42"), msg.ID)
	require.Equal(t, ID("1"), msg.Sender)
	require.Equal(t, ID("2"), msg.Recipient)
	require.Equal(t, "hello", msg.Content)
	require.Equal(t, time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC), msg.Timestamp)
	require.False(t, msg.IsRead)
	require.Equal(t, SendConfirmed, msg.SendState)
}

func TestParticipantDisplayName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Asha Rana", Participant{Username: "asha", FirstName: "Asha", LastName: "Rana"}.DisplayName())
	require.Equal(t, "asha", Participant{Username: "asha"}.DisplayName())
	require.Equal(t, "9", Participant{ID: ID("9")}.DisplayName())
}
