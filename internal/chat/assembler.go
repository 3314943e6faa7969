package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pashusagar/pashusagar-cli/internal/wire"
	"github.com/pashusagar/pashusagar-cli/pkg/logger"
	"github.com/pashusagar/pashusagar-cli/pkg/types"
)

// ErrEmptyContent is returned when a send is attempted with no content.
var ErrEmptyContent = errors.New("chat: message content is empty")

// RestClient is the backend surface the assembler needs. The REST call is the
// correctness-bearing leg of a send.
type RestClient interface {
	CreateMessage(ctx context.Context, sender, recipient types.ID, content string) (types.Message, error)
}

// Socket is the live-connection surface: a best-effort, non-blocking emit.
type Socket interface {
	Send(payload any) bool
}

// WatermarkStore persists the last-read timestamp per counterparty.
type WatermarkStore interface {
	Get(counterparty types.ID) (mark time.Time, ok bool)
	Set(counterparty types.ID, mark time.Time) error
}

// Conversation is the derived per-counterparty view. It is recomputed from
// the message collection and the read watermark on demand; it carries no
// state of its own.
type Conversation struct {
	// CounterpartyID is the participant who is not the current user.
	CounterpartyID types.ID
	// CounterpartyName is the display label from the participant directory,
	// falling back to the raw id.
	CounterpartyName string
	// Messages holds the full history with this counterparty, ascending by
	// timestamp; ties keep arrival order so re-renders never reorder.
	Messages []types.Message
	// LastMessage is the most recent message, nil for an unmessaged contact.
	LastMessage *types.Message
	// UnreadCount counts inbound messages that are unread on the server and
	// newer than the local read watermark.
	UnreadCount int
}

// Assembler turns the flat message collection into conversation views and
// owns the optimistic send flow.
type Assembler struct {
	userID types.ID
	rest   RestClient
	socket Socket
	marks  WatermarkStore
	store  *Store

	// Test seams.
	now   func() time.Time
	newID func() types.ID

	mu        sync.Mutex
	directory map[types.ID]types.Participant
	active    types.ID
	onChange  []func()
}

// New creates an assembler for the given user. socket may be nil when no live
// connection is available; sends then rely on the REST leg alone.
func New(userID types.ID, rest RestClient, socket Socket, marks WatermarkStore) *Assembler {
	if marks == nil {
		marks = NewMemoryWatermarks()
	}
	return &Assembler{
		userID:    userID,
		rest:      rest,
		socket:    socket,
		marks:     marks,
		store:     NewStore(),
		now:       time.Now,
		newID:     func() types.ID { return types.ID("local-" + uuid.NewString()) },
		directory: make(map[types.ID]types.Participant),
	}
}

// OnChange registers a callback invoked after every mutation of the message
// collection or the active conversation. The UI re-renders from it.
func (a *Assembler) OnChange(fn func()) {
	a.mu.Lock()
	a.onChange = append(a.onChange, fn)
	a.mu.Unlock()
}

func (a *Assembler) notify() {
	a.mu.Lock()
	fns := append([]func(){}, a.onChange...)
	a.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Ingest merges messages from the REST history fetch or a live event into the
// collection. Ingest is idempotent and order-independent.
func (a *Assembler) Ingest(msgs ...types.Message) {
	a.store.Ingest(msgs...)
	a.notify()
}

// HandleSocketEvent parses and ingests a new_message payload from the live
// connection. Malformed payloads are logged and dropped.
func (a *Assembler) HandleSocketEvent(data []byte) {
	ev, err := wire.ParseNewMessage(data)
	if err != nil {
		logger.Warnf("chat: dropping inbound event: %v", err)
		return
	}
	a.Ingest(ev.Message)
}

// SetDirectory merges participants into the directory used to label
// conversations and to surface known-but-unmessaged contacts. The directory
// is loaded from more than one endpoint, so entries accumulate; an existing
// entry with the same id is overwritten.
func (a *Assembler) SetDirectory(participants ...types.Participant) {
	a.mu.Lock()
	for _, p := range participants {
		if p.ID == "" || p.ID == a.userID {
			continue
		}
		a.directory[p.ID] = p
	}
	a.mu.Unlock()
	a.notify()
}

// Select marks a conversation as actively read: the local watermark for the
// counterparty moves to now, so its unread count derives to zero immediately,
// regardless of when the server's read receipts catch up.
func (a *Assembler) Select(counterparty types.ID) {
	a.mu.Lock()
	a.active = counterparty
	a.mu.Unlock()
	if err := a.marks.Set(counterparty, a.now()); err != nil {
		logger.Warnf("chat: failed to persist read watermark for %s: %v", counterparty, err)
	}
	a.notify()
}

// Active returns the currently selected counterparty, empty when none.
func (a *Assembler) Active() types.ID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Conversations derives the conversation list: one entry per counterparty,
// sorted by last activity, most recent first. Known but unmessaged directory
// contacts sort last.
func (a *Assembler) Conversations() []Conversation {
	msgs := a.store.Snapshot()

	a.mu.Lock()
	directory := make(map[types.ID]types.Participant, len(a.directory))
	for id, p := range a.directory {
		directory[id] = p
	}
	a.mu.Unlock()

	grouped := make(map[types.ID][]types.Message)
	for _, msg := range msgs {
		var counterparty types.ID
		switch a.userID {
		case msg.Sender:
			counterparty = msg.Recipient
		case msg.Recipient:
			counterparty = msg.Sender
		default:
			continue
		}
		grouped[counterparty] = append(grouped[counterparty], msg)
	}

	out := make([]Conversation, 0, len(grouped)+len(directory))
	for counterparty, history := range grouped {
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].Timestamp.Before(history[j].Timestamp)
		})
		last := history[len(history)-1]
		out = append(out, Conversation{
			CounterpartyID:   counterparty,
			CounterpartyName: a.labelFor(directory, counterparty),
			Messages:         history,
			LastMessage:      &last,
			UnreadCount:      a.countUnread(counterparty, history),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessage.Timestamp.After(out[j].LastMessage.Timestamp)
	})

	// Unmessaged directory contacts follow, in a stable name order.
	var contacts []Conversation
	for id, p := range directory {
		if _, ok := grouped[id]; ok {
			continue
		}
		contacts = append(contacts, Conversation{
			CounterpartyID:   id,
			CounterpartyName: p.DisplayName(),
		})
	}
	sort.Slice(contacts, func(i, j int) bool {
		if contacts[i].CounterpartyName != contacts[j].CounterpartyName {
			return contacts[i].CounterpartyName < contacts[j].CounterpartyName
		}
		return contacts[i].CounterpartyID < contacts[j].CounterpartyID
	})
	return append(out, contacts...)
}

// Conversation returns the derived view for a single counterparty.
//
// ok is false when the counterparty is neither messaged nor in the directory.
func (a *Assembler) Conversation(counterparty types.ID) (Conversation, bool) {
	for _, conv := range a.Conversations() {
		if conv.CounterpartyID == counterparty {
			return conv, true
		}
	}
	return Conversation{}, false
}

func (a *Assembler) labelFor(directory map[types.ID]types.Participant, id types.ID) string {
	if p, ok := directory[id]; ok {
		return p.DisplayName()
	}
	return id.String()
}

func (a *Assembler) countUnread(counterparty types.ID, history []types.Message) int {
	mark, marked := a.marks.Get(counterparty)
	count := 0
	for _, msg := range history {
		if msg.Recipient != a.userID || msg.IsRead {
			continue
		}
		if marked && !msg.Timestamp.After(mark) {
			continue
		}
		count++
	}
	return count
}

// Send performs the optimistic two-phase send. Phase one is unconditional: a
// Pending record with a temporary id is ingested immediately so the UI never
// waits on the network. The live-connection emit is best-effort; the REST
// create is authoritative. On REST success the temporary record is replaced
// by the confirmed server record; on failure it stays visible, marked Failed.
func (a *Assembler) Send(ctx context.Context, counterparty types.ID, content string) (types.Message, error) {
	if strings.TrimSpace(content) == "" {
		return types.Message{}, ErrEmptyContent
	}

	temp := types.Message{
		ID:        a.newID(),
		Sender:    a.userID,
		Recipient: counterparty,
		Content:   content,
		Timestamp: a.now(),
		SendState: types.SendPending,
	}
	a.store.Ingest(temp)
	a.notify()

	if a.socket != nil && !a.socket.Send(wire.NewMessageEvent(temp)) {
		logger.Debugf("chat: live send skipped, connection not open")
	}

	confirmed, err := a.rest.CreateMessage(ctx, a.userID, counterparty, content)
	if err != nil {
		a.store.SetSendState(temp.ID, types.SendFailed)
		a.notify()
		temp.SendState = types.SendFailed
		return temp, fmt.Errorf("send message: %w", err)
	}

	confirmed.SendState = types.SendConfirmed
	a.store.Replace(temp.ID, confirmed)
	a.notify()
	return confirmed, nil
}

// MemoryWatermarks is an in-memory WatermarkStore, used when no persistent
// store is configured.
type MemoryWatermarks struct {
	mu    sync.Mutex
	marks map[types.ID]time.Time
}

// NewMemoryWatermarks creates an empty in-memory watermark store.
func NewMemoryWatermarks() *MemoryWatermarks {
	return &MemoryWatermarks{marks: make(map[types.ID]time.Time)}
}

// Get implements WatermarkStore.
func (m *MemoryWatermarks) Get(counterparty types.ID) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mark, ok := m.marks[counterparty]
	return mark, ok
}

// Set implements WatermarkStore.
func (m *MemoryWatermarks) Set(counterparty types.ID, mark time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[counterparty] = mark
	return nil
}
