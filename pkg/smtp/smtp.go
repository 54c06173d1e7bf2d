package smtp

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Client sends notification emails to subscribers
type Client struct {
	dialer sender
	from   string
	domain string
}

// NewClient creates a Client. domain is used for the Message-ID header.
func NewClient(dialer *gomail.Dialer, from, domain string) *Client {
	return &Client{dialer: dialer, from: from, domain: domain}
}

var expiredTemplate = template.Must(template.New("expired").Parse(
	`<p>Your <b>{{ .Plan }}</b> subscription has expired and the shared libraries are no longer available.</p>` +
		`<p>You can subscribe again at any time from the bot.</p>`,
))

// SendExpiredNotice tells the subscriber that their access was revoked
func (c *Client) SendExpiredNotice(to string, planName string) error {
	var body bytes.Buffer
	if err := expiredTemplate.Execute(&body, struct{ Plan string }{planName}); err != nil {
		return err
	}

	msg := c.newMessage(to, "Your subscription has expired")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Your %s subscription has expired and the shared libraries are no longer available. "+
			"You can subscribe again at any time from the bot.", planName))
	msg.AddAlternative("text/html", body.String())

	return c.dialer.DialAndSend(msg)
}

func (c *Client) newMessage(to, subject string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("Message-ID", generateMessageID(c.domain))
	msg.SetHeader("Date", time.Now().Format(time.RFC1123Z))
	msg.SetHeader("From", c.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	return msg
}

func generateMessageID(domain string) string {
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)
}
