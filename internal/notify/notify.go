// Package notify sends result notifications over SMTP, deduplicated so
// retried status checks never cause a second send.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/visara/reading-engine/internal/config"
	"github.com/visara/reading-engine/internal/reading"
)

var readyTemplate = template.Must(template.New("ready").Parse(`<html>
<body>
  <p>Hi {{.Name}},</p>
  <p>Your {{.KindLabel}} is ready. Open the link below to view it:</p>
  <p><a href="{{.Link}}">View your reading</a></p>
  <p>The Visara team</p>
</body>
</html>`))

// dedupeStore is the narrow redis surface the notifier needs.
type dedupeStore interface {
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
}

// Notifier sends reading-ready emails.
type Notifier struct {
	cfg     config.MailConfig
	window  time.Duration
	baseURL string
	dedupe  dedupeStore
	logger  *zap.Logger
}

// New builds a notifier. window is the per-(subject, kind) dedupe window.
func New(cfg config.MailConfig, dedupe dedupeStore, window time.Duration, baseURL string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{cfg: cfg, window: window, baseURL: baseURL, dedupe: dedupe, logger: logger}
}

// ReadingReady sends exactly one email per (subject, kind) within the dedupe
// window. A suppressed duplicate is not an error.
func (n *Notifier) ReadingReady(ctx context.Context, subject *reading.Subject, kind reading.Kind, readingID string) error {
	if !n.cfg.Enable {
		return nil
	}

	if n.dedupe != nil {
		key := fmt.Sprintf("notify:sent:%s:%s", subject.ID, kind)
		fresh, err := n.dedupe.SetNX(ctx, key, readingID, n.window)
		if err != nil {
			n.logger.Warn("notification dedupe check failed, sending anyway", zap.Error(err))
		} else if !fresh {
			n.logger.Info("suppressing duplicate notification",
				zap.String("subject_id", subject.ID.String()), zap.String("kind", string(kind)))
			return nil
		}
	}

	var body bytes.Buffer
	err := readyTemplate.Execute(&body, map[string]string{
		"Name":      subject.Name,
		"KindLabel": kindLabel(kind),
		"Link":      fmt.Sprintf("%s/readings/%s", strings.TrimRight(n.baseURL, "/"), readingID),
	})
	if err != nil {
		return fmt.Errorf("failed to render notification: %w", err)
	}

	return n.send(subject.Email, "Your reading is ready", body.String())
}

// send delivers one email via net/smtp.
func (n *Notifier) send(to, subjectLine, html string) error {
	port := n.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, port)

	from := n.cfg.From
	if from == "" {
		from = n.cfg.User
	}

	var msg bytes.Buffer
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subjectLine))
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(html)

	auth := smtp.PlainAuth("", n.cfg.User, n.cfg.Pass, n.cfg.Host)
	if err := smtp.SendMail(addr, auth, from, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

func kindLabel(kind reading.Kind) string {
	switch kind {
	case reading.KindFull:
		return "full reading"
	case reading.KindTeaser:
		return "free reading preview"
	default:
		return "reading"
	}
}
