package client

import (
	"bytes"
	"testing"

	"lupora-api/internal/config"
	"lupora-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailClientBuildMessage(t *testing.T) {
	c := &smtpMailClient{cfg: config.Mail{From: "shop@lupora.in"}}

	m, err := c.buildMessage(model.MailMessage{
		To:      "owner@lupora.in",
		ReplyTo: "asha@example.com",
		Subject: "New order",
		Body:    "Order 42 placed",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "<shop@lupora.in>")
	assert.Contains(t, raw, "<owner@lupora.in>")
	assert.Contains(t, raw, "Reply-To: <asha@example.com>")
	assert.Contains(t, raw, "Subject: New order")
	assert.Contains(t, raw, "Order 42 placed")
}

func TestMailClientRejectsBadAddress(t *testing.T) {
	c := &smtpMailClient{cfg: config.Mail{From: "shop@lupora.in"}}

	_, err := c.buildMessage(model.MailMessage{To: "not an address", Subject: "x"})
	assert.Error(t, err)
}
