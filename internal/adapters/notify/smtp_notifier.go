package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

const defaultSubject = "Correspondence received"

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier mails the destination company when a correspondence is
// recorded for it.
type SMTPNotifier struct {
	cfg  SMTPConfig
	auth smtp.Auth
	send sendFunc
	now  func() time.Time
}

func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp sender address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Subject == "" {
		cfg.Subject = defaultSubject
	}
	n := &SMTPNotifier{cfg: cfg, send: smtp.SendMail, now: time.Now}
	if cfg.Username != "" {
		n.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return n, nil
}

func (n *SMTPNotifier) NotifyCorrespondence(ctx context.Context, company domain.Company, corr domain.Correspondence) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := strings.TrimSpace(company.Email)
	if to == "" {
		return fmt.Errorf("company %d has no e-mail address", company.ID)
	}

	addr := net.JoinHostPort(n.cfg.Host, fmt.Sprint(n.cfg.Port))
	msg := n.message(to, company, corr)
	if err := n.send(addr, n.auth, n.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send notice to %s: %w", to, err)
	}
	return nil
}

func (n *SMTPNotifier) message(to string, company domain.Company, corr domain.Correspondence) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", n.cfg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", n.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Hello, %s.\r\n\r\n", company.Name)
	fmt.Fprintf(&b, "A correspondence from %s arrived on %s and is waiting for pickup.\r\n",
		corr.Sender, corr.ReceivedAt.UTC().Format("2006-01-02 15:04"))
	if corr.PhotoRef != "" {
		fmt.Fprintf(&b, "Photo reference: %s\r\n", corr.PhotoRef)
	}
	return b.Bytes()
}
