package mail

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lankyjo/coast/internal/config"
)

func TestResendSender(t *testing.T) {
	var got resendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := &ResendSender{APIKey: "re_123", From: "Coast <coast@example.com>", URL: srv.URL}
	res := Deliver(context.Background(), s, Message{To: "ann@example.com", Subject: "Hi", HTML: "<p>x</p>"})

	assert.True(t, res.Success)
	assert.Equal(t, "Bearer re_123", auth)
	assert.Equal(t, []string{"ann@example.com"}, got.To)
	assert.Equal(t, "Coast <coast@example.com>", got.From)
	assert.Equal(t, "<p>x</p>", got.HTML)
}

func TestResendSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	s := &ResendSender{APIKey: "k", URL: srv.URL}
	res := Deliver(context.Background(), s, Message{To: "a@example.com"})
	assert.False(t, res.Success)
	assert.Equal(t, "resend API error: status 422", res.Error)
}

func TestNew_PicksProvider(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	assert.IsType(t, &LogSender{}, New(config.EmailConfig{}, logger))
	assert.IsType(t, &ResendSender{}, New(config.EmailConfig{ResendAPIKey: "k"}, logger))
	assert.IsType(t, &SMTPSender{}, New(config.EmailConfig{SMTPEnabled: true, ResendAPIKey: "k"}, logger))

	require.NoError(t, New(config.EmailConfig{}, logger).Send(context.Background(), Message{To: "a@example.com"}))
}

func TestMerge(t *testing.T) {
	fields := ProspectFields("Grace Hopper", "Navy", "grace@example.com", "", "", "Ann", "ann@example.com")

	tests := []struct {
		in   string
		want string
	}{
		{"Hi {{first_name}},", "Hi Grace,"},
		{"{{ name }} at {{company}}", "Grace Hopper at Navy"},
		{"{{NAME}}", "Grace Hopper"},
		{"Call {{phone}}.", "Call ."},
		{"{{unknown}}!", "!"},
		{"-- {{sender_name}} <{{sender_email}}>", "-- Ann <ann@example.com>"},
		{"no tags", "no tags"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Merge(tt.in, fields), tt.in)
	}
}

func TestCompose_RendersMarkdownAndEscapesValues(t *testing.T) {
	fields := Fields{"name": "<b>Bob</b>", "company": "A&B"}

	msg, err := Compose("bob@example.com", "Hello {{name}}", "**Hi {{name}}** from {{company}}", fields)
	require.NoError(t, err)

	assert.Equal(t, "Hello <b>Bob</b>", msg.Subject)
	assert.Equal(t, "<p><strong>Hi &lt;b&gt;Bob&lt;/b&gt;</strong> from A&amp;B</p>\n", msg.HTML)
}

func TestMarkdown_KeepsRawHTML(t *testing.T) {
	out, err := Markdown(`<div class="sig">Thanks</div>`)
	require.NoError(t, err)
	assert.Equal(t, `<div class="sig">Thanks</div>`, strings.TrimSpace(out))
}

func TestMagicLink(t *testing.T) {
	msg := MagicLink("a@example.com", "https://coast.test", "tok")
	assert.Equal(t, "Your login link", msg.Subject)
	assert.Contains(t, msg.HTML, `href="https://coast.test/auth/verify?token=tok"`)
	assert.Contains(t, msg.HTML, "15 minutes")
}
