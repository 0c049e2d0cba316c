package notify

import (
	"context"
	"fmt"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
)

// emailNotifier sends one plain-text summary mail per run.
type emailNotifier struct {
	host     string
	port     int
	from     string
	to       []string
	username string
	password string
}

func NewEmail(host string, port int, from, to, username, password string) (Notifier, error) {
	host = strings.TrimSpace(host)
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if host == "" {
		return nil, fmt.Errorf("config.smtp_host is required")
	}
	if port <= 0 {
		return nil, fmt.Errorf("config.smtp_port must be > 0")
	}
	if from == "" {
		return nil, fmt.Errorf("config.from is required")
	}
	if to == "" {
		return nil, fmt.Errorf("config.to is required")
	}

	if _, err := mail.ParseAddress(from); err != nil {
		return nil, fmt.Errorf("config.from %q: %w", from, err)
	}

	recipients := splitRecipients(to)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("config.to must include at least one recipient")
	}
	for _, r := range recipients {
		if _, err := mail.ParseAddress(r); err != nil {
			return nil, fmt.Errorf("config.to %q: %w", r, err)
		}
	}

	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if (username == "") != (password == "") {
		return nil, fmt.Errorf("config.username and config.password must be set together")
	}

	return &emailNotifier{
		host:     host,
		port:     port,
		from:     from,
		to:       recipients,
		username: username,
		password: password,
	}, nil
}

func (e *emailNotifier) Notify(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("[deltabackup] %s: %s (%d dumped, %d skipped, %d failed)",
		event.Status, hostLabel(event.Host), len(event.Dumped), len(event.Skipped), len(event.Failed))
	msg := []byte(strings.Join([]string{
		"From: " + e.from,
		"To: " + strings.Join(e.to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		buildEmailBody(event),
	}, "\r\n"))

	addr := e.host + ":" + strconv.Itoa(e.port)
	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	if err := smtp.SendMail(addr, auth, e.from, e.to, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func buildEmailBody(event Event) string {
	lines := []string{
		"Backup run " + event.RunID,
		"",
		"host: " + hostLabel(event.Host),
		"status: " + event.Status,
		"duration: " + event.Duration,
		fmt.Sprintf("bytes: %d", event.Bytes),
		fmt.Sprintf("snapshot saved: %v", event.SnapshotSaved),
		"dumped: " + listOrNone(event.Dumped),
		"skipped: " + listOrNone(event.Skipped),
	}
	for _, f := range event.Failed {
		lines = append(lines, "FAILED "+f.Target+": "+f.Error)
	}
	if event.Error != "" {
		lines = append(lines, "", "error: "+event.Error)
	}
	return strings.Join(lines, "\n")
}

func hostLabel(h string) string {
	if h == "" {
		return "local"
	}
	return h
}

func listOrNone(xs []string) string {
	if len(xs) == 0 {
		return "none"
	}
	return strings.Join(xs, ", ")
}

func splitRecipients(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
