package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pashusagar/pashusagar-cli/internal/api"
	"github.com/pashusagar/pashusagar-cli/internal/chat"
	"github.com/pashusagar/pashusagar-cli/pkg/types"
)

const me = types.ID("1")

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeRest struct {
	createFn func(ctx context.Context, sender, recipient types.ID, content string) (types.Message, error)
}

func (f *fakeRest) CreateMessage(ctx context.Context, sender, recipient types.ID, content string) (types.Message, error) {
	return f.createFn(ctx, sender, recipient, content)
}

func newTestSession(t *testing.T, rest *fakeRest) (*chatSession, *bytes.Buffer) {
	t.Helper()

	if rest == nil {
		rest = &fakeRest{createFn: func(ctx context.Context, sender, recipient types.ID, content string) (types.Message, error) {
			return types.Message{ID: "100", Sender: sender, Recipient: recipient, Content: content, Timestamp: t0}, nil
		}}
	}
	var out bytes.Buffer
	return &chatSession{
		userID: me,
		asm:    chat.New(me, rest, nil, nil),
		out:    &out,
	}, &out
}

func TestRenderConversationsEmpty(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	renderConversations(&out, nil)
	require.Contains(t, out.String(), "No conversations yet.")
}

func TestRenderConversationsShowsUnreadBadge(t *testing.T) {
	t.Parallel()

	last := types.Message{ID: "10", Sender: "2", Recipient: me, Content: "checkup due", Timestamp: t0}
	var out bytes.Buffer
	renderConversations(&out, []chat.Conversation{
		{CounterpartyID: "2", CounterpartyName: "Dr. Mehta", LastMessage: &last, UnreadCount: 3},
		{CounterpartyID: "5", CounterpartyName: "Asha"},
	})

	got := out.String()
	require.Contains(t, got, "Dr. Mehta (3 unread)")
	require.Contains(t, got, "checkup due")
	require.Contains(t, got, "Asha")
}

func TestRenderThreadMarksFailedAndPendingSends(t *testing.T) {
	t.Parallel()

	conv := chat.Conversation{
		CounterpartyID:   "2",
		CounterpartyName: "Dr. Mehta",
		Messages: []types.Message{
			{ID: "10", Sender: "2", Recipient: me, Content: "how is the calf", Timestamp: t0},
			{ID: "local-1", Sender: me, Recipient: "2", Content: "much better", Timestamp: t0.Add(time.Minute), SendState: types.SendFailed},
			{ID: "local-2", Sender: me, Recipient: "2", Content: "sending photos", Timestamp: t0.Add(2 * time.Minute), SendState: types.SendPending},
		},
	}

	var out bytes.Buffer
	renderThread(&out, conv, me)

	got := out.String()
	require.Contains(t, got, "--- Dr. Mehta ---")
	require.Contains(t, got, "Dr. Mehta: how is the calf")
	require.Contains(t, got, "you: [failed] much better")
	require.Contains(t, got, "you: [sending] sending photos")
}

func TestHandleLineQuit(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t, nil)
	require.False(t, s.handleLine("/quit"))
	require.False(t, s.handleLine("/exit"))
	require.True(t, s.handleLine(""))
}

func TestHandleLineUnknownCommand(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, nil)
	require.True(t, s.handleLine("/frobnicate"))
	require.Contains(t, out.String(), "unknown command")
}

func TestHandleLineSendWithoutOpenConversation(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, nil)
	require.True(t, s.handleLine("hello"))
	require.Contains(t, out.String(), "no conversation open")
}

func TestOpenByListNumberRendersThread(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, nil)
	s.asm.Ingest(types.Message{ID: "10", Sender: "2", Recipient: me, Content: "vaccination reminder", Timestamp: t0})
	s.asm.SetDirectory(types.Participant{ID: "2", FirstName: "Ravi", LastName: "Mehta", Role: "doctor"})

	require.True(t, s.handleLine("/list"))
	require.True(t, s.handleLine("/open 1"))

	got := out.String()
	require.Contains(t, got, "vaccination reminder")
	require.Equal(t, types.ID("2"), s.asm.Active())
}

func TestOpenByIDWithoutHistory(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, nil)
	require.True(t, s.handleLine("/open 7"))
	require.Contains(t, out.String(), "no conversation 7, use /list first")

	require.True(t, s.handleLine("/open abc"))
	require.Equal(t, types.ID("abc"), s.asm.Active())
}

func TestSendRendersConfirmedMessage(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, nil)
	s.asm.Select("2")

	require.True(t, s.handleLine("the calf is eating again"))
	require.Contains(t, out.String(), "you: the calf is eating again")

	conv, ok := s.asm.Conversation("2")
	require.True(t, ok)
	require.Len(t, conv.Messages, 1)
	require.Equal(t, types.ID("100"), conv.Messages[0].ID)
}

func TestLoadDirectoryKeepsDoctorAndUserLabels(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/doctors/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":2,"username":"drmehta","role":"doctor"}]`))
	})
	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":5,"username":"asha"}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := api.New(srv.URL)
	t.Cleanup(func() { _ = client.Close() })

	var out bytes.Buffer
	s := &chatSession{
		userID: me,
		rest:   client,
		asm:    chat.New(me, nil, nil, nil),
		out:    &out,
	}
	s.loadDirectory()
	s.asm.Ingest(types.Message{ID: "10", Sender: "2", Recipient: me, Content: "bring the calf in", Timestamp: t0})

	// The doctor label must survive the later users fetch.
	conv, ok := s.asm.Conversation("2")
	require.True(t, ok)
	require.Equal(t, "drmehta", conv.CounterpartyName)
	require.Equal(t, "asha", s.counterpartyName("5"))
}

func TestSendFailureReportsAndKeepsMessage(t *testing.T) {
	t.Parallel()

	rest := &fakeRest{createFn: func(ctx context.Context, sender, recipient types.ID, content string) (types.Message, error) {
		return types.Message{}, context.DeadlineExceeded
	}}
	s, out := newTestSession(t, rest)
	s.asm.Select("2")

	require.True(t, s.handleLine("are you there"))
	require.Contains(t, out.String(), "send failed, message kept as [failed]")

	conv, ok := s.asm.Conversation("2")
	require.True(t, ok)
	require.Len(t, conv.Messages, 1)
	require.Equal(t, types.SendFailed, conv.Messages[0].SendState)
}
