package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rahul/tally/internal/agent"
	"github.com/rahul/tally/internal/observability"
	"github.com/rahul/tally/internal/store"
)

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start listens for messages until ctx is done
	Start(ctx context.Context) error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

const (
	defaultReplyTimeout = 3 * time.Minute
	historyLimit        = 10
)

// HistoryReader returns the recorded exchanges of a chat.
type HistoryReader interface {
	GetHistory(chatID string, limit int) ([]store.Message, error)
}

// Responder turns one incoming chat message into the reply text.
type Responder struct {
	Brain   agent.Brain
	History HistoryReader
	Timeout time.Duration
}

func NewResponder(brain agent.Brain) *Responder {
	return &Responder{Brain: brain, Timeout: defaultReplyTimeout}
}

// Reply answers text sent in chatID. Commands are handled locally; anything
// else goes to the brain.
func (r *Responder) Reply(ctx context.Context, chatID string, text string) string {
	text = cleanText(text)
	switch strings.ToLower(text) {
	case "":
		return ""
	case "/start", "/help":
		return "Send me an arithmetic question, for example: What is 6 times 7, and 20 divided by 4?"
	case "/status":
		return statusText()
	case "/history":
		return r.historyText(chatID)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	answer, err := r.Brain.Think(ctx, chatID, text)
	if err != nil {
		log.Printf("Error thinking: %v", err)
		return failureText(err)
	}
	return cleanText(answer)
}

func statusText() string {
	heartbeat := observability.LastHeartbeat().Format("15:04:05")
	tasks := observability.ActiveTasks()
	if len(tasks) == 0 {
		return fmt.Sprintf("%s (heartbeat %s)", observability.StageIdle, heartbeat)
	}

	lines := make([]string, 0, len(tasks)+1)
	lines = append(lines, fmt.Sprintf("%d request(s) in flight (heartbeat %s)", len(tasks), heartbeat))
	for _, ts := range tasks {
		lines = append(lines, fmt.Sprintf("%s: %s", ts.Stage, ts.Query))
	}
	return strings.Join(lines, "\n")
}

func (r *Responder) historyText(chatID string) string {
	if r.History == nil {
		return "History is not enabled."
	}
	messages, err := r.History.GetHistory(chatID, historyLimit)
	if err != nil {
		log.Printf("Error loading history: %v", err)
		return "I couldn't load the history of this chat."
	}
	if len(messages) == 0 {
		return "No history yet."
	}

	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return strings.Join(lines, "\n\n")
}

func failureText(err error) string {
	var routeErr *agent.RouteError
	switch {
	case errors.Is(err, agent.ErrPolicyDenied):
		return "Sorry, I can't help with that request."
	case errors.Is(err, context.DeadlineExceeded):
		return "That took too long, please try again."
	case errors.As(err, &routeErr):
		return fmt.Sprintf("I couldn't work out part %d of your question: %v", routeErr.ID, routeErr.Err)
	case errors.Is(err, agent.ErrPlanning):
		return "I couldn't break that question down into steps."
	default:
		return "I'm having trouble thinking right now..."
	}
}

// chunk splits text into pieces of at most limit bytes, preferring line breaks.
func chunk(text string, limit int) []string {
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			// keep multi-byte runes intact
			for cut > 0 && !isRuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		parts = append(parts, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
