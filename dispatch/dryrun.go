package dispatch

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// DryRun logs messages instead of sending them
type DryRun struct {
	logger log.FieldLogger
}

func NewDryRun() *DryRun {
	return &DryRun{logger: log.StandardLogger()}
}

func (d *DryRun) Backend() string {
	return BackendDryRun
}

func (d *DryRun) Send(ctx context.Context, msg Message) Result {
	d.logger.WithFields(log.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.Body,
	}).Info("Dry-run dispatch")
	return ok(msg.To)
}

var _ Client = (*DryRun)(nil)
