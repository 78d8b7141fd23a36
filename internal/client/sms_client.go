package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SMSClient delivers SMS through the gateway's JSON webhook. The gateway
// answers 202 with a messageId; anything else is a provider failure.
type SMSClient struct {
	url    string
	client *http.Client
}

func NewSMSClient(url string, timeout time.Duration) *SMSClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMSClient{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type sendRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type sendResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// Send posts the message and returns the provider's message id. The subject
// argument is ignored; SMS has no subject line.
func (c *SMSClient) Send(ctx context.Context, destination, _ string, body string) (string, error) {
	reqBody, err := json.Marshal(sendRequest{
		PhoneNumber: destination,
		Message:     body,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(respBody))
	}

	var sr sendResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(respBody))
	}
	if sr.MessageID == "" {
		return "", fmt.Errorf("missing messageId in response body=%q", string(respBody))
	}

	return sr.MessageID, nil
}
