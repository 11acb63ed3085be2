package mail

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/yuin/goldmark"
)

// Message is a composed outbound mail: plain-text markdown source plus the
// rendered HTML alternative.
type Message struct {
	Subject  string
	TextBody string
	HTMLBody string
}

// Deliverer hands a composed message to an outbound mail system. Delivery
// itself is an external concern; implementations may enqueue, send, or drop.
type Deliverer interface {
	Deliver(ctx context.Context, destination string, msg Message) error
}

// NoOpDeliverer drops messages. The default when no deliverer is wired.
type NoOpDeliverer struct{}

func (NoOpDeliverer) Deliver(context.Context, string, Message) error { return nil }

// Delivery pairs a destination with its message, for test capture.
type Delivery struct {
	Destination string
	Message     Message
}

// ChannelDeliverer writes deliveries into a buffered channel.
type ChannelDeliverer struct {
	deliveries chan Delivery
}

func NewChannelDeliverer(buffer int) *ChannelDeliverer {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelDeliverer{deliveries: make(chan Delivery, buffer)}
}

func (d *ChannelDeliverer) Deliver(ctx context.Context, destination string, msg Message) error {
	select {
	case d.deliveries <- Delivery{Destination: destination, Message: msg}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *ChannelDeliverer) Deliveries() <-chan Delivery {
	return d.deliveries
}

const activationTemplate = `# Confirm your account

Hello,

an account for **%s** was registered with %s. Use the token below to
activate it. The token is valid for %s and works exactly once.

    %s

If you did not register this account, ignore this message.
`

const passwordResetTemplate = `# Reset your password

Hello,

a password reset was requested for **%s**. Use the token below to choose a
new password. The token is valid for %s and works exactly once.

    %s

If you did not request this, your password is unchanged and you can ignore
this message.
`

// Composer renders lifecycle mails from markdown templates. The markdown
// source doubles as the plain-text body.
type Composer struct {
	ServiceName string
}

// Activation composes the account confirmation mail carrying the challenge
// token.
func (c Composer) Activation(username, token string, validity time.Duration) (Message, error) {
	text := fmt.Sprintf(activationTemplate, username, c.ServiceName, validity, token)
	return c.render("Confirm your "+c.ServiceName+" account", text)
}

// PasswordReset composes the reset mail carrying the challenge token.
func (c Composer) PasswordReset(username, token string, validity time.Duration) (Message, error) {
	text := fmt.Sprintf(passwordResetTemplate, username, validity, token)
	return c.render("Reset your "+c.ServiceName+" password", text)
}

func (c Composer) render(subject, markdown string) (Message, error) {
	var html bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &html); err != nil {
		return Message{}, err
	}
	return Message{
		Subject:  subject,
		TextBody: markdown,
		HTMLBody: html.String(),
	}, nil
}
