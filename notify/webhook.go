package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mainefish/fishwatch/report"
	"github.com/mainefish/fishwatch/urlcheck"
)

// WebhookConfig configures a generic JSON webhook destination.
type WebhookConfig struct {
	URL string
	// Token, when set, is sent as the X-Fishwatch-Token header so the
	// receiver can authenticate the producer.
	Token   string
	Timeout time.Duration
	// Validator guards the destination URL. Defaults to urlcheck.Validate,
	// which rejects private and loopback addresses.
	Validator func(string) error
}

// webhookPayload is the JSON body POSTed for each record.
type webhookPayload struct {
	Body   string        `json:"body"`
	Record report.Record `json:"record"`
}

type webhookSender struct {
	url    string
	host   string
	token  string
	client *http.Client
}

// NewWebhookSender builds a sender that POSTs each rendered record as JSON
// to cfg.URL. The URL is validated once, at construction.
func NewWebhookSender(cfg WebhookConfig) (Sender, error) {
	validate := cfg.Validator
	if validate == nil {
		validate = urlcheck.Validate
	}
	if err := validate(cfg.URL); err != nil {
		return nil, fmt.Errorf("notify: webhook url: %w", err)
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("notify: webhook url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &webhookSender{
		url:    cfg.URL,
		host:   u.Host,
		token:  cfg.Token,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (s *webhookSender) Name() string { return "webhook:" + s.host }

func (s *webhookSender) Send(ctx context.Context, msg Message) (string, error) {
	body, err := json.Marshal(webhookPayload{Body: msg.Body, Record: msg.Record})
	if err != nil {
		return "", &SendError{Sender: s.Name(), Cause: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", &SendError{Sender: s.Name(), Cause: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("X-Fishwatch-Token", s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &SendError{Sender: s.Name(), Cause: err}
	}
	// Drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &SendError{Sender: s.Name(),
			Cause: fmt.Errorf("webhook returned %d", resp.StatusCode)}
	}
	if id := resp.Header.Get("X-Delivery-Id"); id != "" {
		return id, nil
	}
	return resp.Status, nil
}
