// Package dispatch delivers rendered digests through an email provider, or
// logs them when no provider is configured.
package dispatch

import (
	"context"
	"regwatch/models"
	"time"
)

const (
	BackendProvider = "provider"
	BackendDryRun   = "dry-run"
)

// Message is a rendered email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Result is the outcome of one send. Err is nil on success.
type Result struct {
	Destination string
	Err         *models.DispatchError
}

func (r Result) OK() bool {
	return r.Err == nil
}

func ok(to string) Result {
	return Result{Destination: to}
}

func failed(to, reason string, err error) Result {
	return Result{
		Destination: to,
		Err:         &models.DispatchError{Destination: to, Reason: reason, Err: err},
	}
}

// Client sends messages. Send never panics and never returns a Go error; a
// failure is reported in the Result.
type Client interface {
	Send(ctx context.Context, msg Message) Result
	Backend() string
}

// Config selects and configures the backend
type Config struct {
	APIURL         string
	APIKey         string
	From           string
	Timeout        time.Duration
	MaxElapsedTime time.Duration
}

// Configured reports whether the real provider can be used
func (c Config) Configured() bool {
	return c.APIKey != "" && c.From != ""
}

// New returns the provider backend when it is configured and the dry-run
// backend otherwise.
func New(cfg Config) Client {
	if cfg.Configured() {
		return NewProvider(cfg)
	}
	return NewDryRun()
}
