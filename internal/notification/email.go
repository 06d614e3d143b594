package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// EmailConfig configures SMTP delivery.
type EmailConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// EmailNotifier sends alerts by SMTP to the alert's user email.
type EmailNotifier struct {
	cfg  EmailConfig
	log  *logrus.Entry
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates an SMTP notifier.
func NewEmailNotifier(cfg EmailConfig, log *logrus.Entry) *EmailNotifier {
	return &EmailNotifier{
		cfg:  cfg,
		log:  log,
		send: smtp.SendMail,
	}
}

func (e *EmailNotifier) Send(ctx context.Context, alert Alert) error {
	if alert.Email == "" {
		return fmt.Errorf("email: alert for user %d has no address", alert.UserID)
	}

	var auth smtp.Auth
	if e.cfg.User != "" {
		auth = smtp.PlainAuth("", e.cfg.User, e.cfg.Pass, e.cfg.Host)
	}

	msg := buildMessage(e.cfg.From, alert)
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)

	if err := e.send(addr, auth, e.cfg.From, []string{alert.Email}, msg); err != nil {
		return fmt.Errorf("email: send to %s: %w", alert.Email, err)
	}

	e.log.WithFields(logrus.Fields{"to": alert.Email, "pair": alert.Pair, "kind": alert.Kind}).
		Debug("email alert delivered")
	return nil
}

func buildMessage(from string, alert Alert) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", alert.Email)
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", alert.Pair, alert.Title)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(alert.Message)
	b.WriteString("\r\n\r\n")
	fmt.Fprintf(&b, "Triggered at %s\r\n", alert.TriggeredAt.UTC().Format(time.RFC1123))
	return []byte(b.String())
}
