// Package notify delivers job completion notifications to webhooks
package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/notify"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/go-pkgz/syncs"

	"github.com/umputun/fieldtrack/app/store"
)

const defaultMessage = `Job "{{.Job.Title}}{{if not .Job.Title}}{{.Job.Description}}{{end}}" ({{.Job.Type}}) at {{.Location.Name}} is done` +
	`{{if .Host}}, reported by {{.Host}}{{end}}`

// Sender sends text to a destination
type Sender interface {
	Send(ctx context.Context, destination, text string) error
}

// Params defines notification service parameters
type Params struct {
	Webhooks []string      // destination URLs
	Headers  []string      // extra webhook headers as "name:value"
	Timeout  time.Duration // timeout of a single attempt
	Attempts int           // delivery attempts per destination
	Delay    time.Duration // initial delay between attempts
	Host     string        // host name shown in messages
	Template string        // message template, defaultMessage if empty
}

// Service sends notifications about completed jobs
type Service struct {
	sender   Sender
	webhooks []string
	timeout  time.Duration
	rptr     *repeater.Repeater
	host     string
	tmpl     *template.Template
}

// NewService makes notification service, nil if no webhooks configured
func NewService(p Params) (*Service, error) {
	if len(p.Webhooks) == 0 {
		return nil, nil
	}
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Delay <= 0 {
		p.Delay = time.Second
	}
	msg := p.Template
	if msg == "" {
		msg = defaultMessage
	}
	tmpl, err := template.New("msg").Parse(msg)
	if err != nil {
		return nil, fmt.Errorf("can't parse message template: %w", err)
	}

	return &Service{
		sender:   notify.NewWebhook(notify.WebhookParams{Timeout: p.Timeout, Headers: p.Headers}),
		webhooks: p.Webhooks,
		timeout:  p.Timeout,
		rptr:     repeater.New(&strategy.Backoff{Repeats: p.Attempts, Duration: p.Delay, Factor: 2, Jitter: true}),
		host:     p.Host,
		tmpl:     tmpl,
	}, nil
}

// JobDone notifies all webhooks about completed job. Destinations are notified concurrently,
// each one retried independently. Returns combined error of failed destinations.
func (s *Service) JobDone(ctx context.Context, job store.Job, loc store.Location) error {
	text, err := s.makeMessage(job, loc)
	if err != nil {
		return err
	}

	grp := syncs.NewErrSizedGroup(4)
	for _, dest := range s.webhooks {
		grp.Go(func() error {
			err := s.rptr.Do(ctx, func() error {
				sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
				defer cancel()
				return s.sender.Send(sendCtx, dest, text)
			})
			if err != nil {
				return fmt.Errorf("failed to notify %s: %w", redact(dest), err)
			}
			log.Printf("[DEBUG] notified %s about job %s", redact(dest), job.ID)
			return nil
		})
	}
	return grp.Wait()
}

// makeMessage renders notification text for job
func (s *Service) makeMessage(job store.Job, loc store.Location) (string, error) {
	data := struct {
		Job      store.Job
		Location store.Location
		Host     string
	}{Job: job, Location: loc, Host: s.host}

	buf := bytes.Buffer{}
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to apply template: %w", err)
	}
	return buf.String(), nil
}

// redact removes query and credentials from webhook URL for logging
func redact(dest string) string {
	if idx := strings.Index(dest, "?"); idx >= 0 {
		dest = dest[:idx]
	}
	if idx := strings.Index(dest, "@"); idx >= 0 {
		if schema := strings.Index(dest, "://"); schema >= 0 && schema < idx {
			dest = dest[:schema+3] + "***" + dest[idx:]
		}
	}
	return dest
}
