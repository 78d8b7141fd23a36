package client

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailClient delivers email through SendGrid.
type EmailClient struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

func NewEmailClient(apiKey, fromName, fromEmail string) *EmailClient {
	return &EmailClient{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (c *EmailClient) Send(ctx context.Context, destination, subject, body string) (string, error) {
	from := mail.NewEmail(c.fromName, c.fromEmail)
	to := mail.NewEmail("", destination)
	msg := mail.NewSingleEmail(from, subject, to, body, body)

	resp, err := c.client.SendWithContext(ctx, msg)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, resp.Body)
	}

	if ids, ok := resp.Headers["X-Message-Id"]; ok && len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}
