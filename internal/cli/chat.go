package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pashusagar/pashusagar-cli/internal/api"
	"github.com/pashusagar/pashusagar-cli/internal/auth"
	"github.com/pashusagar/pashusagar-cli/internal/chat"
	"github.com/pashusagar/pashusagar-cli/internal/config"
	"github.com/pashusagar/pashusagar-cli/internal/notify"
	"github.com/pashusagar/pashusagar-cli/internal/storage"
	"github.com/pashusagar/pashusagar-cli/internal/websocket"
	"github.com/pashusagar/pashusagar-cli/internal/wire"
	"github.com/pashusagar/pashusagar-cli/pkg/logger"
	"github.com/pashusagar/pashusagar-cli/pkg/types"
)

const (
	requestTimeout = 15 * time.Second
	sendTimeout    = 15 * time.Second
	// offlineRetryInterval paces reconnect attempts when the initial
	// connection could not be established at all.
	offlineRetryInterval = 15 * time.Second
)

// ChatCommand runs the interactive messaging session: it loads the message
// history, opens the live connection and drops into a line-based prompt.
func ChatCommand(cfg *config.Config) error {
	token, ok, err := storage.LoadToken(cfg.AccessKey)
	if err != nil {
		return fmt.Errorf("failed to read access token: %w", err)
	}
	if !ok {
		return fmt.Errorf("not logged in; run `pashusagar login` first")
	}

	if soon, err := auth.ExpiresSoon(token, time.Minute); err != nil {
		logger.Debugf("could not inspect token expiry: %v", err)
	} else if soon {
		logger.Warnf("Access token is about to expire; run `pashusagar login` to refresh it")
	}

	userID, err := auth.UserID(token)
	if err != nil {
		return fmt.Errorf("invalid access token: %w", err)
	}

	rest := api.New(cfg.ServerURL)
	defer rest.Close()
	rest.SetToken(token)

	var markStore chat.WatermarkStore
	if marks, err := storage.OpenWatermarks(cfg.WatermarksPath); err != nil {
		logger.Warnf("read watermarks unavailable, unread counts reset each session: %v", err)
	} else {
		markStore = marks
	}

	sock := websocket.New(cfg.SocketURL, token)
	asm := chat.New(userID, rest, sock, markStore)

	var notifier *notify.Notifier
	if cfg.PushoverToken != "" && cfg.PushoverUser != "" {
		notifier, err = notify.New(notify.Config{
			Token:   cfg.PushoverToken,
			UserKey: cfg.PushoverUser,
		})
		if err != nil {
			return fmt.Errorf("failed to configure notifications: %w", err)
		}
		defer notifier.Close()
	}

	session := &chatSession{
		userID:   userID,
		rest:     rest,
		sock:     sock,
		asm:      asm,
		notifier: notifier,
		in:       os.Stdin,
		out:      os.Stdout,
	}
	return session.run()
}

// chatSession holds the state of one interactive run.
type chatSession struct {
	userID   types.ID
	rest     *api.Client
	sock     *websocket.Client
	asm      *chat.Assembler
	notifier *notify.Notifier

	in  io.Reader
	out io.Writer

	// lastList is the conversation list as last rendered, so `/open 2`
	// resolves against what the user saw.
	lastList []chat.Conversation

	done chan struct{}
}

func (s *chatSession) run() error {
	s.done = make(chan struct{})
	defer close(s.done)

	reader := bufio.NewReader(s.in)

	if err := s.loadHistory(reader); err != nil {
		return err
	}
	s.loadDirectory()

	// Ingest before display, so the handler order matters.
	s.sock.On(websocket.EventNewMessage, s.asm.HandleSocketEvent)
	s.sock.On(websocket.EventNewMessage, s.handleInbound)
	s.sock.OnStateChange(s.handleStateChange)

	if err := s.sock.Connect(context.Background()); err != nil {
		logger.Warnf("live connection unavailable: %v", err)
		fmt.Fprintln(s.out, "offline: messages are still delivered, retrying connection in background")
		go s.retryConnect()
	}
	defer s.sock.Disconnect()

	fmt.Fprintln(s.out, "Type /help for commands.")
	s.list()

	for {
		fmt.Fprint(s.out, "> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}
		if !s.handleLine(strings.TrimSpace(line)) {
			return nil
		}
	}
}

// loadHistory fetches the full message collection, offering a manual retry
// when the backend is unreachable.
func (s *chatSession) loadHistory(reader *bufio.Reader) error {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		msgs, err := s.rest.Messages(ctx)
		cancel()
		if err == nil {
			s.asm.Ingest(msgs...)
			return nil
		}

		fmt.Fprintf(s.out, "failed to load messages: %v\n", err)
		fmt.Fprint(s.out, "Retry? [y/N] ")
		answer, readErr := reader.ReadString('\n')
		if readErr != nil || !strings.EqualFold(strings.TrimSpace(answer), "y") {
			return fmt.Errorf("failed to load messages: %w", err)
		}
	}
}

// loadDirectory populates the participant directory. Failures degrade labels
// to raw ids, so they only warn.
func (s *chatSession) loadDirectory() {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	doctors, err := s.rest.Doctors(ctx)
	if err != nil {
		logger.Warnf("failed to load doctor directory: %v", err)
	} else {
		s.asm.SetDirectory(doctors...)
	}

	users, err := s.rest.Users(ctx)
	if err != nil {
		logger.Warnf("failed to load user directory: %v", err)
	} else {
		s.asm.SetDirectory(users...)
	}
}

// handleInbound runs after the assembler has ingested the event. It paints
// messages for the open conversation and raises notifications for the rest.
func (s *chatSession) handleInbound(data []byte) {
	ev, err := wire.ParseNewMessage(data)
	if err != nil {
		return
	}
	msg := ev.Message
	if msg.Recipient != s.userID {
		return
	}

	name := s.counterpartyName(msg.Sender)
	if s.asm.Active() == msg.Sender {
		renderMessage(s.out, msg, name, s.userID)
		// The thread is on screen, so the message counts as read.
		s.asm.Select(msg.Sender)
		return
	}

	fmt.Fprintf(s.out, "\n* new message from %s (/list to see conversations)\n> ", name)
	if s.notifier != nil {
		go s.pushNotify(name, msg.Content)
	}
}

func (s *chatSession) pushNotify(sender, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := s.notifier.MessageReceived(ctx, sender, body); err != nil {
		logger.Warnf("push notification failed: %v", err)
	}
}

func (s *chatSession) handleStateChange(state websocket.State) {
	switch state {
	case websocket.StateOpen:
		fmt.Fprint(s.out, "\n[connected]\n> ")
	case websocket.StateReconnectPending:
		fmt.Fprint(s.out, "\n[connection lost, reconnecting]\n> ")
	}
}

// retryConnect keeps dialing until the session ends or a connection opens.
// Once open, drop-and-reconnect is handled inside the websocket client.
func (s *chatSession) retryConnect() {
	ticker := time.NewTicker(offlineRetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.sock.Connect(context.Background()); err == nil {
				return
			}
		}
	}
}

// handleLine executes one prompt line. It returns false when the session
// should end.
func (s *chatSession) handleLine(line string) bool {
	switch {
	case line == "":
		return true
	case line == "/quit" || line == "/exit":
		return false
	case line == "/help":
		s.help()
		return true
	case line == "/list":
		s.list()
		return true
	case strings.HasPrefix(line, "/open"):
		s.open(strings.TrimSpace(strings.TrimPrefix(line, "/open")))
		return true
	case strings.HasPrefix(line, "/"):
		fmt.Fprintf(s.out, "unknown command %q, try /help\n", line)
		return true
	default:
		s.send(line)
		return true
	}
}

func (s *chatSession) help() {
	fmt.Fprintln(s.out, "/list          show conversations")
	fmt.Fprintln(s.out, "/open <n|id>   open a conversation by list number or participant id")
	fmt.Fprintln(s.out, "/quit          leave the chat")
	fmt.Fprintln(s.out, "anything else is sent to the open conversation")
}

func (s *chatSession) list() {
	s.lastList = s.asm.Conversations()
	renderConversations(s.out, s.lastList)
}

func (s *chatSession) open(arg string) {
	if arg == "" {
		fmt.Fprintln(s.out, "usage: /open <n|id>")
		return
	}

	id := types.ID(arg)
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(s.lastList) {
			fmt.Fprintf(s.out, "no conversation %d, use /list first\n", n)
			return
		}
		id = s.lastList[n-1].CounterpartyID
	}

	s.asm.Select(id)
	conv, ok := s.asm.Conversation(id)
	if !ok {
		conv = chat.Conversation{CounterpartyID: id, CounterpartyName: string(id)}
	}
	renderThread(s.out, conv, s.userID)
}

func (s *chatSession) send(text string) {
	active := s.asm.Active()
	if active == "" {
		fmt.Fprintln(s.out, "no conversation open, use /open first")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	msg, err := s.asm.Send(ctx, active, text)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyContent) {
			return
		}
		fmt.Fprintf(s.out, "send failed, message kept as [failed]: %v\n", err)
		return
	}
	renderMessage(s.out, msg, s.counterpartyName(active), s.userID)
}

func (s *chatSession) counterpartyName(id types.ID) string {
	if conv, ok := s.asm.Conversation(id); ok {
		return conv.CounterpartyName
	}
	return string(id)
}
