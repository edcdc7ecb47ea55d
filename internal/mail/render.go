package mail

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var md = goldmark.New(goldmark.WithRendererOptions(gmhtml.WithUnsafe()))

// Markdown renders a template body to HTML. Raw HTML in the source is kept,
// so bodies authored as HTML pass through unchanged.
func Markdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

var mergeTag = regexp.MustCompile(`\{\{\s*([a-zA-Z_]+)\s*\}\}`)

// Fields are the values available to {{field}} merge tags.
type Fields map[string]string

// Merge replaces every {{field}} in text. Unknown fields become empty.
func Merge(text string, fields Fields) string {
	return mergeTag.ReplaceAllStringFunc(text, func(tag string) string {
		name := mergeTag.FindStringSubmatch(tag)[1]
		return fields[strings.ToLower(name)]
	})
}

// MergeHTML is Merge with every value HTML-escaped.
func MergeHTML(text string, fields Fields) string {
	escaped := make(Fields, len(fields))
	for k, v := range fields {
		escaped[k] = html.EscapeString(v)
	}
	return Merge(text, escaped)
}

// ProspectFields builds the merge fields for a message to a prospect.
func ProspectFields(name, company, email, phone, website, senderName, senderEmail string) Fields {
	first := name
	if i := strings.IndexByte(strings.TrimSpace(name), ' '); i > 0 {
		first = strings.TrimSpace(name)[:i]
	}
	return Fields{
		"name":         name,
		"first_name":   first,
		"company":      company,
		"email":        email,
		"phone":        phone,
		"website":      website,
		"sender_name":  senderName,
		"sender_email": senderEmail,
	}
}

// Compose merges subject and body and renders the body to HTML.
func Compose(to, subject, body string, fields Fields) (Message, error) {
	rendered, err := Markdown(MergeHTML(body, fields))
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: Merge(subject, fields), HTML: rendered}, nil
}

var systemLayout = template.Must(template.New("system").Parse(
	`<p>{{.Intro}}</p><p><a href="{{.Link}}">{{.Action}}</a></p><p>{{.Footer}}</p>`))

func system(to, subject, intro, link, action, footer string) Message {
	var buf bytes.Buffer
	// Parse succeeded at init and the data is plain strings.
	_ = systemLayout.Execute(&buf, map[string]string{
		"Intro": intro, "Link": link, "Action": action, "Footer": footer,
	})
	return Message{To: to, Subject: subject, HTML: buf.String()}
}

// MagicLink is the sign-in approval email.
func MagicLink(to, baseURL, token string) Message {
	link := fmt.Sprintf("%s/auth/verify?token=%s", baseURL, token)
	return system(to, "Your login link",
		"Click the link below to approve your sign-in:",
		link, "Approve sign-in to Coast", "This link expires in 15 minutes.")
}

// Invitation is the email sent to an invited team member.
func Invitation(to, baseURL, token, inviter string) Message {
	link := fmt.Sprintf("%s/invite/accept?token=%s", baseURL, token)
	return system(to, "You're invited to Coast",
		inviter+" invited you to join the team on Coast.",
		link, "Accept invitation", "This invitation expires in 7 days.")
}
