// Package mail delivers outbound email through Resend, SMTP or the log.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/smtp"
	"time"

	"github.com/lankyjo/coast/internal/config"
)

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Result mirrors the email boundary's {success, error?} reply.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Deliver sends msg and folds the outcome into a Result.
func Deliver(ctx context.Context, s Sender, msg Message) Result {
	if err := s.Send(ctx, msg); err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true}
}

// New picks SMTP when enabled, Resend when an API key is set, and the log
// otherwise.
func New(cfg config.EmailConfig, logger *slog.Logger) Sender {
	switch {
	case cfg.SMTPEnabled:
		return &SMTPSender{cfg: cfg}
	case cfg.ResendAPIKey != "":
		return &ResendSender{
			APIKey: cfg.ResendAPIKey,
			From:   cfg.FromEmail,
			URL:    cfg.ResendURL,
			Client: &http.Client{Timeout: 15 * time.Second},
		}
	default:
		return &LogSender{Logger: logger}
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type ResendSender struct {
	APIKey string
	From   string
	URL    string
	Client *http.Client
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	body := resendRequest{
		From:    s.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.URL, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("resend API error: status %d", resp.StatusCode)
	}

	return nil
}

type SMTPSender struct {
	cfg config.EmailConfig
}

func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	addr := s.cfg.SMTPHost + ":" + s.cfg.SMTPPort

	raw := "From: " + s.cfg.FromEmail + "\r\n" +
		"To: " + msg.To + "\r\n" +
		"Subject: " + msg.Subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		msg.HTML

	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.SMTPUser, []string{msg.To}, []byte(raw)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// LogSender writes messages to the log instead of sending them. It is the
// default when no provider is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email not sent, no provider configured", "to", msg.To, "subject", msg.Subject)
	return nil
}
