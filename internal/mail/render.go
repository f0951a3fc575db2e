// Package mail renders notices into HTML email and delivers them over SMTP.
package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/iliyamo/ai-gen-platform/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

type kindDef struct {
	file    string
	heading string
	subject func(n service.Notice) string
}

var kinds = map[string]kindDef{
	service.NoticeNewRequest: {"new_request.html", "New request", func(n service.Notice) string {
		return fmt.Sprintf("New AI Request - %s", n.RequestKind)
	}},
	service.NoticeWelcome: {"welcome.html", "Welcome", func(service.Notice) string {
		return "Welcome to AI Gen Platform"
	}},
	service.NoticeLogin: {"login.html", "New sign-in", func(service.Notice) string {
		return "Login Alert - AI Gen Platform"
	}},
	service.NoticeCompletion: {"completion.html", "Request completed", func(n service.Notice) string {
		return fmt.Sprintf("Your %s Request is Complete - AI Gen Platform", n.RequestKind)
	}},
	service.NoticePasswordReset: {"password_reset.html", "Password reset", func(service.Notice) string {
		return "Password Reset Request - AI Gen Platform"
	}},
	service.NoticePasswordChanged: {"password_changed.html", "Password changed", func(service.Notice) string {
		return "Your Password Was Changed - AI Gen Platform"
	}},
	service.NoticeSupport: {"support.html", "Support request", func(n service.Notice) string {
		return "Support Request from " + n.AccountEmail
	}},
}

// Renderer turns a Notice into a subject line and an HTML body.
type Renderer struct {
	frontendURL string
	tmpl        map[string]*template.Template
}

// NewRenderer parses every embedded template up front so a broken
// template fails at startup instead of on first send.
func NewRenderer(frontendURL string) (*Renderer, error) {
	r := &Renderer{frontendURL: strings.TrimRight(frontendURL, "/"), tmpl: map[string]*template.Template{}}
	for kind, def := range kinds {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+def.file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", def.file, err)
		}
		r.tmpl[kind] = t
	}
	return r, nil
}

type view struct {
	Subject     string
	Heading     string
	FrontendURL string
	N           service.Notice
}

// Render returns the subject and HTML body for n.
func (r *Renderer) Render(n service.Notice) (subject, body string, err error) {
	def, ok := kinds[n.Kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notice kind %q", n.Kind)
	}
	subject = def.subject(n)
	var buf bytes.Buffer
	v := view{Subject: subject, Heading: def.heading, FrontendURL: r.frontendURL, N: n}
	if err := r.tmpl[n.Kind].ExecuteTemplate(&buf, "layout", v); err != nil {
		return "", "", fmt.Errorf("render %s: %w", n.Kind, err)
	}
	return subject, buf.String(), nil
}
