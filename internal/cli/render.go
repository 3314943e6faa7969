package cli

import (
	"fmt"
	"io"

	"github.com/pashusagar/pashusagar-cli/internal/chat"
	"github.com/pashusagar/pashusagar-cli/pkg/types"
)

const timeLayout = "2006-01-02 15:04"

// renderConversations prints the conversation list, most recent first, with
// unread badges. Contacts without history come last.
func renderConversations(w io.Writer, convs []chat.Conversation) {
	if len(convs) == 0 {
		fmt.Fprintln(w, "No conversations yet.")
		return
	}
	for i, conv := range convs {
		badge := ""
		if conv.UnreadCount > 0 {
			badge = fmt.Sprintf(" (%d unread)", conv.UnreadCount)
		}
		if conv.LastMessage == nil {
			fmt.Fprintf(w, "%2d. %s%s\n", i+1, conv.CounterpartyName, badge)
			continue
		}
		fmt.Fprintf(w, "%2d. %s%s - %s %s\n",
			i+1, conv.CounterpartyName, badge,
			conv.LastMessage.Timestamp.Local().Format(timeLayout),
			preview(conv.LastMessage.Content, 40))
	}
}

// renderThread prints the full history of one conversation, oldest first.
// Failed sends keep their place with a marker so the user can see what did
// not reach the server.
func renderThread(w io.Writer, conv chat.Conversation, userID types.ID) {
	fmt.Fprintf(w, "--- %s ---\n", conv.CounterpartyName)
	for _, msg := range conv.Messages {
		renderMessage(w, msg, conv.CounterpartyName, userID)
	}
}

func renderMessage(w io.Writer, msg types.Message, counterpartyName string, userID types.ID) {
	who := counterpartyName
	if msg.Sender == userID {
		who = "you"
	}
	marker := ""
	switch msg.SendState {
	case types.SendPending:
		marker = " [sending]"
	case types.SendFailed:
		marker = " [failed]"
	}
	fmt.Fprintf(w, "[%s] %s:%s %s\n",
		msg.Timestamp.Local().Format(timeLayout), who, marker, msg.Content)
}

func preview(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
