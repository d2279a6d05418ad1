package services

import (
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go/v7"
)

// Publisher sends a message to a realtime channel.
type Publisher interface {
	Publish(channel string, message map[string]any) error
}

type PubNubPublisher struct {
	pn *pubnub.PubNub
}

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

func NewPubNubPublisher(cfg PubNubConfig) *PubNubPublisher {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey
	return &PubNubPublisher{pn: pubnub.NewPubNub(pnCfg)}
}

func (p *PubNubPublisher) Publish(channel string, message map[string]any) error {
	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	return err
}

// Notifier tells buyers about purchase outcomes on their user channel.
// Delivery is best effort; a nil Notifier drops everything.
type Notifier struct {
	pub Publisher
}

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func userChannel(userID int64) string {
	return fmt.Sprintf("user-%d", userID)
}

func (n *Notifier) PurchaseOutcome(userID int64, res *PurchaseResult) {
	if n == nil || n.pub == nil || res.Payment == nil {
		return
	}

	msg := map[string]any{
		"payment_reference": res.Payment.Reference,
		"status":            string(res.Payment.Status),
		"outcome":           string(res.Outcome),
	}
	if res.Outcome == OutcomeSuccess {
		msg["type"] = "purchase_success"
		if res.Ticket != nil {
			msg["ticket_id"] = res.Ticket.ID
		}
	} else {
		msg["type"] = "purchase_failed"
		msg["message"] = res.Message
	}

	if err := n.pub.Publish(userChannel(userID), msg); err != nil {
		slog.Warn("purchase notification not delivered", "user_id", userID, "error", err)
	}
}

func (n *Notifier) LockedOut(userID int64, info *LockoutInfo) {
	if n == nil || n.pub == nil {
		return
	}
	msg := map[string]any{
		"type":              "account_locked",
		"remaining_seconds": info.RemainingSeconds,
	}
	if err := n.pub.Publish(userChannel(userID), msg); err != nil {
		slog.Warn("lockout notification not delivered", "user_id", userID, "error", err)
	}
}
