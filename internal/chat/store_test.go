package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pashusagar/pashusagar-cli/pkg/types"
)

func msg(id, sender, recipient, content string, ts time.Time) types.Message {
	return types.Message{
		ID:        types.ID(id),
		Sender:    types.ID(sender),
		Recipient: types.ID(recipient),
		Content:   content,
		Timestamp: ts,
	}
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestIngestIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewStore()
	m := msg("1", "a", "b", "hi", t0)

	s.Ingest(m)
	s.Ingest(m)
	s.Ingest(m, m)

	require.Equal(t, 1, s.Len())
	require.Equal(t, []types.Message{m}, s.Snapshot())
}

func TestIngestReplacesByID(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Ingest(msg("1", "a", "b", "hi", t0))
	s.Ingest(msg("2", "b", "a", "yo", t0.Add(time.Minute)))

	updated := msg("1", "a", "b", "hi", t0)
	updated.IsRead = true
	s.Ingest(updated)

	require.Equal(t, 2, s.Len())
	snap := s.Snapshot()
	require.True(t, snap[0].IsRead, "replacement must win")
	require.Equal(t, types.ID("1"), snap[0].ID, "replacement keeps the insertion slot")
}

func TestIngestSkipsRecordsWithoutID(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Ingest(
		msg("1", "a", "b", "ok", t0),
		msg("", "a", "b", "broken", t0),
		msg("2", "b", "a", "also ok", t0),
	)

	require.Equal(t, 2, s.Len())
}

func TestReplaceReconcilesTemporaryID(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Ingest(msg("local-x", "a", "b", "hi", t0))

	confirmed := msg("10", "a", "b", "hi", t0.Add(time.Second))
	s.Replace(types.ID("local-x"), confirmed)

	require.Equal(t, 1, s.Len())
	require.Equal(t, confirmed, s.Snapshot()[0])
}

func TestReplaceDropsTempWhenEchoAlreadyArrived(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Ingest(msg("local-x", "a", "b", "hi", t0))
	// The server echoed the confirmed record over the live connection first.
	confirmed := msg("10", "a", "b", "hi", t0.Add(time.Second))
	s.Ingest(confirmed)

	s.Replace(types.ID("local-x"), confirmed)

	require.Equal(t, 1, s.Len())
	require.Equal(t, confirmed, s.Snapshot()[0])
}

func TestReplaceWithoutExistingSlotIngests(t *testing.T) {
	t.Parallel()

	s := NewStore()
	confirmed := msg("10", "a", "b", "hi", t0)
	s.Replace(types.ID("local-unknown"), confirmed)

	require.Equal(t, 1, s.Len())
}

func TestSetSendState(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Ingest(msg("1", "a", "b", "hi", t0))

	require.True(t, s.SetSendState(types.ID("1"), types.SendFailed))
	require.Equal(t, types.SendFailed, s.Snapshot()[0].SendState)
	require.False(t, s.SetSendState(types.ID("404"), types.SendFailed))
}
