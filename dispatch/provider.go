package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

const DefaultAPIURL = "https://api.resend.com"

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// statusError is a non-2xx provider response
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider responded %d: %s", e.Code, e.Body)
}

func (e *statusError) retryable() bool {
	return e.Code == fiber.StatusTooManyRequests || e.Code >= 500
}

// Provider sends through an HTTP email API
type Provider struct {
	apiURL         string
	apiKey         string
	from           string
	timeout        time.Duration
	maxElapsedTime time.Duration
}

func NewProvider(cfg Config) *Provider {
	p := &Provider{
		apiURL:         strings.TrimSuffix(cfg.APIURL, "/"),
		apiKey:         cfg.APIKey,
		from:           cfg.From,
		timeout:        cfg.Timeout,
		maxElapsedTime: cfg.MaxElapsedTime,
	}
	if p.apiURL == "" {
		p.apiURL = DefaultAPIURL
	}
	if p.timeout <= 0 {
		p.timeout = 10 * time.Second
	}
	if p.maxElapsedTime <= 0 {
		p.maxElapsedTime = 30 * time.Second
	}
	return p
}

func (p *Provider) Backend() string {
	return BackendProvider
}

func (p *Provider) Send(ctx context.Context, msg Message) Result {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = p.maxElapsedTime

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := p.post(msg)
		if err == nil {
			return nil
		}

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return backoff.Permanent(err)
		}

		log.WithFields(log.Fields{
			"to":      msg.To,
			"attempt": attempt,
			"error":   err,
		}).Warn("Dispatch attempt failed, retrying")
		return err
	}, backoff.WithContext(b, ctx))

	if err != nil {
		return failed(msg.To, "provider send failed", err)
	}
	return ok(msg.To)
}

func (p *Provider) post(msg Message) error {
	agent := fiber.Post(p.apiURL + "/emails")
	agent.Set(fiber.HeaderAuthorization, "Bearer "+p.apiKey)
	agent.Timeout(p.timeout)
	agent.JSON(emailRequest{
		From:    p.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Body,
	})

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code < 200 || code >= 300 {
		return &statusError{Code: code, Body: string(body)}
	}
	return nil
}

var _ Client = (*Provider)(nil)
