package notify

import (
	"bytes"
	"context"
	"html/template"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	hferrors "github.com/exordiom/talent-training/pkg/errors"
)

const completionDateLayout = "January 2, 2006, 03:04 PM"

var completionMail = template.Must(template.New("completion").Parse(`<h1>Training Completion Notification</h1>
<p>A user has completed the Exordiom Talent Training program.</p>

<h2>User Details:</h2>
<ul>
  <li><strong>Name:</strong> {{ .Name }}</li>
  <li><strong>Email:</strong> {{ .Email }}</li>
  <li><strong>Attempt Count:</strong> {{ .AttemptCount }}</li>
  <li><strong>Completion Date:</strong> {{ .Date }}</li>
</ul>

<p>The user has successfully passed all required training modules and the assessment quiz.</p>
`))

type Mail struct {
	To      string
	Subject string
	HTML    string
}

// MailLogSink renders the completion email for the admin recipient and hands it to
// send. Without a sender the mail is only logged.
type MailLogSink struct {
	recipient string
	send      func(ctx context.Context, m Mail) error
}

func NewMailLogSink(recipient string, send func(ctx context.Context, m Mail) error) *MailLogSink {
	return &MailLogSink{recipient: recipient, send: send}
}

func (s *MailLogSink) Render(event Event) (Mail, error) {
	if event.Email == "" {
		return Mail{}, hferrors.NewValidation("completion event has no email")
	}
	var buf bytes.Buffer
	err := completionMail.Execute(&buf, struct {
		Event
		Name string
		Date string
	}{
		Event: event,
		Name:  event.Name(),
		Date:  event.CompletionDate.Format(completionDateLayout),
	})
	if err != nil {
		return Mail{}, errors.Wrap(hferrors.NewNotification(err.Error()), "error rendering completion mail")
	}
	return Mail{
		To:      s.recipient,
		Subject: strings.TrimSpace("Training Completion: " + event.Name()),
		HTML:    buf.String(),
	}, nil
}

func (s *MailLogSink) Notify(ctx context.Context, event Event) error {
	m, err := s.Render(event)
	if err != nil {
		return err
	}
	glog.Infof("training completion mail to %s: %s", m.To, m.Subject)
	glog.V(6).Infof("mail body:\n%s", m.HTML)
	if s.send == nil {
		return nil
	}
	if err := s.send(ctx, m); err != nil {
		return errors.Wrap(hferrors.NewNotification(err.Error()), "error sending completion mail")
	}
	return nil
}
