// Package submission turns form payloads into a local backup record and a
// single relay request, and reduces the outcome to a Result.
package submission

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dilipdevops/portfolio/internal/log"
)

const (
	SuccessMessage = "Email sent successfully!"

	contactSubjectPrefix   = "Portfolio Contact: "
	interviewSubjectPrefix = "Interview Request - "
	timestampLayout        = "2006-01-02T15:04:05.000Z"
)

// LocalPersistenceError wraps a failed backup append. It is logged, never
// returned to callers.
type LocalPersistenceError struct {
	Key string
	Err error
}

func (e *LocalPersistenceError) Error() string {
	return fmt.Sprintf("store %s locally: %v", e.Key, e.Err)
}

func (e *LocalPersistenceError) Unwrap() error {
	return e.Err
}

type Config struct {
	// NextURL is the relay's redirect-after-success target.
	NextURL       string
	FallbackEmail string
}

type Pipeline struct {
	relay      Relay
	contacts   BackupLog
	interviews BackupLog
	cfg        Config

	now   func() time.Time
	newID func(time.Time) string
}

func New(relay Relay, contacts, interviews BackupLog, cfg Config) *Pipeline {
	return &Pipeline{
		relay:      relay,
		contacts:   contacts,
		interviews: interviews,
		cfg:        cfg,
		now:        time.Now,
		newID:      recordID,
	}
}

// SubmitContact backs up msg locally and relays it once.
func (p *Pipeline) SubmitContact(ctx context.Context, msg ContactMessage) Result {
	ctx = context.WithoutCancel(ctx)
	now := p.now()
	p.backup(ctx, p.contacts, ContactBackupKey, ContactRecord{
		ContactMessage: msg,
		ID:             p.newID(now),
		Timestamp:      now.UTC().Format(timestampLayout),
	})

	return p.send(ctx, p.outbound(msg.Name, msg.Email, contactSubjectPrefix+msg.Subject, msg.Message))
}

// SubmitInterviewRequest backs up req locally and relays a formatted summary once.
func (p *Pipeline) SubmitInterviewRequest(ctx context.Context, req InterviewRequest) Result {
	ctx = context.WithoutCancel(ctx)
	now := p.now()
	p.backup(ctx, p.interviews, InterviewBackupKey, InterviewRecord{
		InterviewRequest: req,
		ID:               p.newID(now),
		Timestamp:        now.UTC().Format(timestampLayout),
		Kind:             InterviewRecordKind,
	})

	return p.send(ctx, p.outbound(req.Name, req.Email, interviewSubjectPrefix+req.Company, InterviewSummary(req)))
}

func (p *Pipeline) backup(ctx context.Context, backupLog BackupLog, key string, record any) {
	if backupLog == nil {
		return
	}
	if err := backupLog.Append(ctx, record); err != nil {
		perr := &LocalPersistenceError{Key: key, Err: err}
		log.Warnf("submission: %v", perr)
	}
}

func (p *Pipeline) outbound(name, email, subject, message string) []Field {
	return []Field{
		{Name: "name", Value: name},
		{Name: "email", Value: email},
		{Name: "subject", Value: subject},
		{Name: "message", Value: message},
		{Name: "_next", Value: p.cfg.NextURL},
		{Name: "_captcha", Value: "false"},
		{Name: "_template", Value: "table"},
	}
}

func (p *Pipeline) send(ctx context.Context, fields []Field) Result {
	start := p.now()
	if err := p.relay.Send(ctx, fields); err != nil {
		log.WithFields(log.Fields{"error": err, "elapsed": time.Since(start)}).Warn("submission: relay failed")
		return Result{Success: false, Message: p.failureMessage(err)}
	}
	log.WithFields(log.Fields{"elapsed": time.Since(start)}).Info("submission: relayed")
	return Result{Success: true, Message: SuccessMessage}
}

func (p *Pipeline) failureMessage(err error) string {
	return fmt.Sprintf("%s You can also contact me directly at %s", err.Error(), p.cfg.FallbackEmail)
}

// InterviewSummary renders the message body sent for an interview request.
// The Location line only appears for offline interviews with a location and
// the Notes line only when notes were given.
func InterviewSummary(req InterviewRequest) string {
	lines := []string{
		"INTERVIEW REQUEST",
		"",
		"Candidate: " + req.Name,
		"Email: " + req.Email,
		"Company: " + req.Company,
		"Date: " + displayDate(req.Date),
		"Time: " + req.Time,
		"Type: " + req.Type.Label(),
	}
	if req.Type == InterviewOffline && strings.TrimSpace(req.Location) != "" {
		lines = append(lines, "Location: "+req.Location)
	}
	if strings.TrimSpace(req.Message) != "" {
		lines = append(lines, "Notes: "+req.Message)
	}
	return strings.Join(lines, "\n")
}

// displayDate renders a YYYY-MM-DD date as M/D/YYYY; anything else passes through.
func displayDate(s string) string {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return s
	}
	return d.Format("1/2/2006")
}

// recordID is time-ordered; if the UUID source fails it falls back to the
// millisecond timestamp.
func recordID(now time.Time) string {
	id, err := uuid.NewV7()
	if err != nil {
		return strconv.FormatInt(now.UnixMilli(), 10)
	}
	return id.String()
}
