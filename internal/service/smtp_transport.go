package service

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/smtp"
)

// SMTPTransport sends mail over pooled SMTP sessions
type SMTPTransport struct {
	pool         *smtp.Pool
	envelopeFrom string
	now          func() time.Time
}

// NewSMTPTransport creates a transport that uses envelopeFrom for MAIL FROM
func NewSMTPTransport(pool *smtp.Pool, envelopeFrom string) *SMTPTransport {
	return &SMTPTransport{
		pool:         pool,
		envelopeFrom: envelopeFrom,
		now:          time.Now,
	}
}

// Send delivers msg and returns its Message-ID
func (t *SMTPTransport) Send(ctx context.Context, msg *domain.OutboundMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := newMessageID(t.envelopeFrom)
	raw, err := buildMessage(msg, messageID, t.now())
	if err != nil {
		return "", err
	}

	client, err := t.pool.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get SMTP connection: %w", err)
	}
	// unblock a stalled server as soon as the caller gives up
	stop := context.AfterFunc(ctx, func() {
		_ = client.SetDeadline(time.Now())
	})
	defer stop()

	if err := client.Mail(t.envelopeFrom); err != nil {
		t.pool.Discard(client)
		return "", fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		t.pool.Discard(client)
		return "", fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		t.pool.Discard(client)
		return "", fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		t.pool.Discard(client)
		return "", fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		t.pool.Discard(client)
		return "", fmt.Errorf("message rejected: %w", err)
	}

	if !stop() {
		t.pool.Discard(client)
		return messageID, nil
	}
	t.pool.Put(client)
	return messageID, nil
}

func newMessageID(from string) string {
	host := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		host = from[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), host)
}

// buildMessage renders an RFC 5322 HTML message with a quoted-printable body
func buildMessage(msg *domain.OutboundMessage, messageID string, date time.Time) ([]byte, error) {
	var buf bytes.Buffer

	headers := []struct{ key, value string }{
		{"From", msg.From},
		{"To", msg.To},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", date.Format(time.RFC1123Z)},
		{"Message-ID", messageID},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
		{"Content-Transfer-Encoding", "quoted-printable"},
	}
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.key, h.value)
	}
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(msg.HTMLBody)); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}

	return buf.Bytes(), nil
}
