package smtp

import (
	"bytes"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type recordingSender struct {
	messages []*gomail.Message
	err      error
}

func (s *recordingSender) DialAndSend(m ...*gomail.Message) error {
	s.messages = append(s.messages, m...)
	return s.err
}

func TestSendExpiredNotice(t *testing.T) {
	sender := &recordingSender{}
	client := &Client{dialer: sender, from: "bot@example.com", domain: "example.com"}

	require.NoError(t, client.SendExpiredNotice("user@example.com", "Standard"))
	require.Len(t, sender.messages, 1)

	msg := sender.messages[0]
	assert.Equal(t, []string{"user@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"bot@example.com"}, msg.GetHeader("From"))
	assert.Regexp(t, regexp.MustCompile(`^<[0-9a-f-]{36}@example\.com>$`), msg.GetHeader("Message-ID")[0])

	var raw bytes.Buffer
	_, err := msg.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "Standard")
}

func TestSendExpiredNoticeError(t *testing.T) {
	sender := &recordingSender{err: errors.New("connection refused")}
	client := &Client{dialer: sender, from: "bot@example.com", domain: "example.com"}

	assert.Error(t, client.SendExpiredNotice("user@example.com", "Basic"))
}
