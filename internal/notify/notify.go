// Package notify sends participant emails. Delivery is best effort:
// callers dispatch in the background and only log failures.
package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eph-competitions/internal/model"
)

// Message is a plain-text email.
type Message struct {
	To      []mail.Address
	Subject string
	Text    string
}

// HasRecipients reports whether the message has anyone to go to.
func (m Message) HasRecipients() bool { return len(m.To) > 0 }

// Notifier delivers messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

func recipient(u *model.User) []mail.Address {
	if u == nil || u.Email == "" {
		return nil
	}
	return []mail.Address{{Name: u.Name, Address: u.Email}}
}

// RegistrationConfirmed builds the confirmation sent to a registration's leader.
func RegistrationConfirmed(leader *model.User, c *model.Competition, r *model.Registration) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", leader.Name)
	fmt.Fprintf(&b, "You are registered for %q.\n", c.Title)
	if r.Type == model.RegistrationTeam && r.TeamName != "" {
		fmt.Fprintf(&b, "Team: %s (%d members)\n", r.TeamName, r.TeamSize())
	}
	fmt.Fprintf(&b, "Starts: %s\n", c.StartDate.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Ends: %s\n", c.EndDate.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Registration id: %s\n", r.ID)
	return Message{
		To:      recipient(leader),
		Subject: "Registration confirmed: " + c.Title,
		Text:    b.String(),
	}
}

// RegistrationCancelled builds the notice sent after a leader cancels.
func RegistrationCancelled(leader *model.User, c *model.Competition) Message {
	return Message{
		To:      recipient(leader),
		Subject: "Registration cancelled: " + c.Title,
		Text: fmt.Sprintf("Hi %s,\n\nYour registration for %q has been cancelled and your seat released.\n",
			leader.Name, c.Title),
	}
}

// ─── Log notifier ─────────────────────────────────────────────────────────────

// maxRecorded bounds the history a long-running LogNotifier keeps.
const maxRecorded = 256

// LogNotifier writes messages to the logger instead of sending them.
// It keeps the messages it has seen, which tests read back via Sent.
type LogNotifier struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []Message
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Send logs msg.
func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	if !msg.HasRecipients() {
		return nil
	}
	to := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		to = append(to, a.String())
	}
	n.logger.Info("email",
		zap.Strings("to", to),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	n.mu.Lock()
	if len(n.sent) == maxRecorded {
		n.sent = n.sent[1:]
	}
	n.sent = append(n.sent, msg)
	n.mu.Unlock()
	return nil
}

// Sent returns a copy of the most recent messages, oldest first.
func (n *LogNotifier) Sent() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.sent...)
}
