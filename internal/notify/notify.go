// Package notify mails a summary of catch runs.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"eamis-catcher/internal/components/telemetry"
	"eamis-catcher/internal/scrapers/eamis"

	"github.com/jordan-wright/email"
)

const report_notify_send = "notify.send"

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type Config struct {
	Smtp SmtpConfig `json:"smtp"`
	// To is the list of recipients, notifications are disabled when empty.
	To []string `json:"to"`
}

func (c Config) Enabled() bool {
	return len(c.To) > 0 && c.Smtp.Server != ""
}

type sendFunc func(mail *email.Email, addr string, auth smtp.Auth) error

func sendMail(mail *email.Email, addr string, auth smtp.Auth) error {
	return mail.Send(addr, auth)
}

type Notifier struct {
	config Config
	tel    telemetry.API
	send   sendFunc
}

func NewNotifier(config Config, tel telemetry.API) Notifier {
	return Notifier{
		config: config,
		tel:    telemetry.NewScopedAPI("notify", tel),
		send:   sendMail,
	}
}

func (n Notifier) Enabled() bool {
	return n.config.Enabled()
}

func summarize(outcomes []eamis.CatchOutcome) (subject, body string) {
	elected := 0
	var lines strings.Builder
	for _, o := range outcomes {
		status := ""
		switch {
		case o.Err != nil:
			status = "error: " + o.Err.Error()
		case o.Result.Data.Elected:
			elected++
			status = "elected"
		default:
			status = "not elected"
		}
		if o.Result.Msg != nil && *o.Result.Msg != "" {
			status += " (" + *o.Result.Msg + ")"
		}
		fmt.Fprintf(&lines, "[%s] %s: %s\n", o.ProfileId, o.LessonNo, status)
	}

	subject = fmt.Sprintf("eamis: elected %d of %d lesson(s)", elected, len(outcomes))
	body = fmt.Sprintf("Catch run finished.\n\n%s", lines.String())
	return subject, body
}

// CatchSummary mails the outcomes of a catch run to every recipient.
func (n Notifier) CatchSummary(ctx context.Context, outcomes []eamis.CatchOutcome) error {
	if !n.Enabled() {
		return nil
	}
	err := ctx.Err()
	if err != nil {
		return err
	}

	subject, body := summarize(outcomes)
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("EAMIS Catcher <%s>", n.config.Smtp.EmailAddress)
	mail.To = n.config.To
	mail.Subject = subject
	mail.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", n.config.Smtp.Server, n.config.Smtp.Port)
	err = n.send(mail, addr, smtp.PlainAuth("", n.config.Smtp.EmailAddress, n.config.Smtp.Password, n.config.Smtp.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = n.send(mail, addr, nil)
	}
	if err != nil {
		n.tel.ReportBroken(report_notify_send, err, addr)
		return fmt.Errorf("send catch summary: %w", err)
	}
	n.tel.ReportDebug(report_notify_send, subject)
	return nil
}
