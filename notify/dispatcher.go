package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/mainefish/fishwatch/report"
)

// DefaultTemplate is the stock notification message, rendered with a
// report.Record. The wording is deliberate and known to recipients; change
// it via config, not here.
const DefaultTemplate = "Hello, Fish stalker letting you know that on {{.Date}}, " +
	"the Water in {{.Locality}} was stalked with {{.Quantity}} {{.Size}} inch " +
	"of {{.Species}}. Good luck and tight lines!"

// Attempt is one delivery attempt: record index × sender.
type Attempt struct {
	Record     int
	Sender     string
	DeliveryID string
	Err        error
}

// Report summarizes a dispatch: every attempt plus success/failure tallies.
type Report struct {
	Attempts []Attempt
	Sent     int
	Failed   int
}

// Dispatcher renders records through the message template and sends them to
// every configured sender, sequentially and in record order.
type Dispatcher struct {
	senders  []Sender
	tmplText string
	tmpl     *template.Template
	logger   *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithTemplate overrides the message template. The template is executed with
// a report.Record, so {{.Date}}, {{.Locality}}, {{.Quantity}}, {{.Size}} and
// {{.Species}} are available.
func WithTemplate(text string) DispatcherOption {
	return func(d *Dispatcher) { d.tmplText = text }
}

// NewDispatcher creates a Dispatcher over the given senders.
func NewDispatcher(senders []Sender, opts ...DispatcherOption) (*Dispatcher, error) {
	d := &Dispatcher{
		senders:  senders,
		tmplText: DefaultTemplate,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	if d.tmplText == "" {
		d.tmplText = DefaultTemplate
	}
	tmpl, err := template.New("notification").Parse(d.tmplText)
	if err != nil {
		return nil, fmt.Errorf("notify: parse template: %w", err)
	}
	d.tmpl = tmpl
	return d, nil
}

// Dispatch sends one message per record to every sender, in order. Failures
// are recorded in the report and never abort the remaining sends.
func (d *Dispatcher) Dispatch(ctx context.Context, records []report.Record) *Report {
	rep := &Report{}

	for i, rec := range records {
		body, err := d.render(rec)
		if err != nil {
			// A render failure is a template bug; the record cannot be
			// delivered anywhere.
			d.logger.Error("notify: render message", "record", i, "error", err)
			rep.Attempts = append(rep.Attempts, Attempt{Record: i, Err: err})
			rep.Failed++
			continue
		}

		for _, snd := range d.senders {
			id, err := snd.Send(ctx, Message{Body: body, Record: rec})
			rep.Attempts = append(rep.Attempts, Attempt{
				Record:     i,
				Sender:     snd.Name(),
				DeliveryID: id,
				Err:        err,
			})
			if err != nil {
				rep.Failed++
				d.logger.Warn("notify: send failed",
					"sender", snd.Name(), "record", i, "error", err)
				continue
			}
			rep.Sent++
			d.logger.Debug("notify: sent",
				"sender", snd.Name(), "record", i, "delivery_id", id)
		}
	}

	return rep
}

func (d *Dispatcher) render(rec report.Record) (string, error) {
	var sb strings.Builder
	if err := d.tmpl.Execute(&sb, rec); err != nil {
		return "", err
	}
	return sb.String(), nil
}
