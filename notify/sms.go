package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// SMSConfig configures Twilio SMS delivery. One sender is created per
// recipient so that partial delivery failures stay per-recipient.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	To         []string
	// BaseURL overrides the Twilio API endpoint, for tests.
	BaseURL string
	Timeout time.Duration
}

// NewSMSSenders builds one Twilio sender per recipient in cfg.To.
func NewSMSSenders(cfg SMSConfig) ([]Sender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, errors.New("notify: sms requires account_sid, auth_token and from")
	}
	if len(cfg.To) == 0 {
		return nil, errors.New("notify: sms requires at least one recipient")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	senders := make([]Sender, 0, len(cfg.To))
	for _, to := range cfg.To {
		senders = append(senders, &smsSender{
			accountSID: cfg.AccountSID,
			authToken:  cfg.AuthToken,
			from:       cfg.From,
			to:         to,
			http:       client,
		})
	}
	return senders, nil
}

type smsSender struct {
	accountSID string
	authToken  string
	from       string
	to         string
	http       *resty.Client
}

// twilioMessage is the subset of Twilio's message resource we read back.
type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *smsSender) Name() string { return "sms:" + s.to }

// Send creates one Twilio message and returns its SID.
func (s *smsSender) Send(ctx context.Context, msg Message) (string, error) {
	var created twilioMessage
	var apiErr twilioError

	res, err := s.http.R().
		SetContext(ctx).
		SetBasicAuth(s.accountSID, s.authToken).
		SetFormData(map[string]string{
			"To":   s.to,
			"From": s.from,
			"Body": msg.Body,
		}).
		SetResult(&created).
		SetError(&apiErr).
		Post("/2010-04-01/Accounts/" + s.accountSID + "/Messages.json")
	if err != nil {
		return "", &SendError{Sender: s.Name(), Cause: err}
	}
	if !res.IsSuccess() {
		cause := fmt.Errorf("twilio returned %d", res.StatusCode())
		if apiErr.Message != "" {
			cause = fmt.Errorf("twilio returned %d: %s (code %d)",
				res.StatusCode(), apiErr.Message, apiErr.Code)
		}
		return "", &SendError{Sender: s.Name(), Cause: cause}
	}
	return created.SID, nil
}
