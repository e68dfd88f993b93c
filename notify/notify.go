// Package notify delivers committed report lifecycle events to people: e-mail for
// residents and the moderator feed.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/linesmerrill/lapor-sampah-api/models"
	templates "github.com/linesmerrill/lapor-sampah-api/templates/html"
)

// Publisher receives lifecycle events
type Publisher interface {
	Publish(ctx context.Context, ev models.ReportEvent)
}

// Fanout hands every event to each publisher in order
type Fanout []Publisher

// Publish implements Publisher
func (f Fanout) Publish(ctx context.Context, ev models.ReportEvent) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, ev)
		}
	}
}

// ProfileReader looks up the profile a mail is addressed to
type ProfileReader interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
}

// DeliverFunc sends a prepared message
type DeliverFunc func(ctx context.Context, msg *mail.SGMailV3) error

// SendgridDeliver returns a DeliverFunc posting through the SendGrid API with apiKey
func SendgridDeliver(apiKey string) DeliverFunc {
	client := sendgrid.NewSendClient(apiKey)
	return func(ctx context.Context, msg *mail.SGMailV3) error {
		response, err := client.SendWithContext(ctx, msg)
		if err != nil {
			return err
		}
		if response.StatusCode >= 400 {
			return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
		}
		return nil
	}
}

// Mailer e-mails a resident when one of their reports is verified. Delivery runs in the
// background so moderation never waits on SendGrid.
type Mailer struct {
	profiles ProfileReader
	deliver  DeliverFunc
	from     *mail.Email
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewMailer builds a Mailer sending as fromName <fromAddress>
func NewMailer(profiles ProfileReader, deliver DeliverFunc, fromName, fromAddress string) *Mailer {
	return &Mailer{
		profiles: profiles,
		deliver:  deliver,
		from:     mail.NewEmail(fromName, fromAddress),
		timeout:  30 * time.Second,
	}
}

// Publish implements Publisher. Only report.verified events produce mail.
func (m *Mailer) Publish(ctx context.Context, ev models.ReportEvent) {
	if ev.Type != models.EventReportVerified {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		if err := m.sendVerified(ctx, ev); err != nil {
			zap.S().Warnw("failed to send verification email", "reportId", ev.Report.ID, "error", err)
		}
	}()
}

// Close waits for pending deliveries
func (m *Mailer) Close() {
	m.wg.Wait()
}

var errNoAddress = errors.New("submitter has no e-mail address")

func (m *Mailer) sendVerified(ctx context.Context, ev models.ReportEvent) error {
	p, err := m.profiles.GetProfile(ctx, ev.Report.SubmitterID)
	if err != nil {
		return err
	}
	if p.Email == "" {
		return errNoAddress
	}
	data := templates.ReportVerifiedEmailData{
		Name:     p.FullName,
		Category: string(ev.Report.Category),
		Points:   ev.Points,
		ImageURL: ev.Report.ImageRef,
	}
	to := mail.NewEmail(p.FullName, p.Email)
	msg := mail.NewSingleEmail(m.from, templates.ReportVerifiedSubject, to,
		templates.RenderReportVerifiedText(data),
		templates.RenderReportVerifiedEmail(data))
	if err := m.deliver(ctx, msg); err != nil {
		return err
	}
	zap.S().Infow("sent verification email", "reportId", ev.Report.ID, "userId", p.ID)
	return nil
}
