//go:build integration

// Package integration exercises outbound delivery against a local smtp4dev
// instance. It is excluded from normal builds.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// smtp4devClient is a minimal client for the smtp4dev v3 API, used to
// inspect what the school helpdesk actually put on the wire.
type smtp4devClient struct {
	base   string
	client *http.Client
}

func newSMTP4DevClient(base string) *smtp4devClient {
	if base == "" {
		base = "http://localhost:8025/api/v3"
	}
	return &smtp4devClient{base: strings.TrimRight(base, "/"), client: http.DefaultClient}
}

type receivedMessage struct {
	ID      string   `json:"id"`
	Subject string   `json:"subject"`
	From    string   `json:"from"`
	To      []string `json:"to"`
}

func (c *smtp4devClient) Messages(ctx context.Context) ([]receivedMessage, error) {
	var msgs []receivedMessage
	if err := c.do(ctx, http.MethodGet, "/messages", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Source returns the raw RFC 5322 source of a received message.
func (c *smtp4devClient) Source(ctx context.Context, id string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/messages/"+id+"/source", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("smtp4dev source %s: %s", id, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	return string(data), err
}

func (c *smtp4devClient) DeleteAllMessages(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/messages", nil, nil)
}

func (c *smtp4devClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("smtp4dev %s %s failed: %s (%s)", method, path, resp.Status, string(b))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
