// Package notify delivers stocking records to configured recipients.
//
// Each extracted record is rendered through a message template and handed to
// every configured Sender in order. Senders are independent: one failing
// delivery never stops the rest, and the Dispatcher's Report records every
// attempt so the caller can log partial failures.
//
//	senders, _ := notify.NewSMSSenders(smsCfg)
//	d, _ := notify.NewDispatcher(senders)
//	rep := d.Dispatch(ctx, records)
package notify

import (
	"context"
	"fmt"

	"github.com/mainefish/fishwatch/report"
)

// Message is one rendered notification for a single stocking record.
type Message struct {
	Body   string
	Record report.Record
}

// Sender delivers a rendered message to one destination. Name identifies the
// destination in logs and dispatch reports (e.g. "sms:+12075550101").
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) (deliveryID string, err error)
}

// SendError is returned when a message could not be delivered.
type SendError struct {
	Sender string
	Cause  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("notify: send failed on %s: %v", e.Sender, e.Cause)
}

func (e *SendError) Unwrap() error { return e.Cause }
