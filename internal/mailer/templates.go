// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

package mailer

import (
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/bantulink/affinity/internal/digest"
)

// templateMeta is the per-template copy: the subject line and the intro
// shared by the HTML and text bodies.
type templateMeta struct {
	Subject string
	Intro   string
}

// templatesByName maps a category's template name
// (models.NotificationCategory.TemplateName) to its copy. Unknown names fall
// back to a generic subject and no intro.
var templatesByName = map[string]templateMeta{
	"connection-updates": {
		Subject: "New activity from your connections",
		Intro:   "Here is what your connections shared recently:",
	},
	"connection-recommendations": {
		Subject: "People you may want to connect with",
		Intro:   "Based on your interests and goals, you might want to meet:",
	},
	"job-opportunities": {
		Subject: "Job opportunities picked for you",
		Intro:   "These recent openings match your profile:",
	},
}

const htmlBody = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #1a7f4b;">Hello {{.Name}},</h2>
  <p>{{.Intro}}</p>
  <table style="width: 100%; border-collapse: collapse;">
    {{range .Items}}
    <tr>
      <td style="padding: 12px 0; border-bottom: 1px solid #eee;">
        <a href="{{.Link}}" style="color: #1a7f4b; font-weight: bold; text-decoration: none;">{{.Title}}</a>
        {{if .Score}}<span style="float: right; color: #888;">{{.Score}}% match</span>{{end}}
        {{if .Author}}<br><span style="color: #555;">{{.Author}}</span>{{end}}
        {{if .Description}}<br><span style="color: #777;">{{.Description}}</span>{{end}}
      </td>
    </tr>
    {{end}}
  </table>
  <p style="color: #999; font-size: 12px; margin-top: 24px;">
    You receive this digest because of your notification settings on Bantulink.
  </p>
</body>
</html>`

const textBody = `Hello {{.Name}},

{{.Intro}}

{{range .Items}}* {{.Title}}{{if .Score}} ({{.Score}}% match){{end}}{{if .Author}} - {{.Author}}{{end}}
  {{.Link}}
{{end}}
You receive this digest because of your notification settings on Bantulink.
`

type templatePayload struct {
	Name  string
	Intro string
	Items []digest.Item
}

type renderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

func newRenderer() (*renderer, error) {
	html, err := htmltemplate.New("digest-html").Parse(htmlBody)
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}
	text, err := texttemplate.New("digest-text").Parse(textBody)
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}
	return &renderer{html: html, text: text}, nil
}

// render produces the subject and both body variants for a digest. The copy
// is selected by the category's template name.
func (r *renderer) render(d *digest.Digest) (subject, html, text string, err error) {
	meta, ok := templatesByName[d.Category.TemplateName()]
	if !ok {
		meta = templateMeta{Subject: "Your Bantulink digest"}
	}
	subject = meta.Subject

	name := d.User.Name
	if name == "" {
		name = "there"
	}
	payload := templatePayload{
		Name:  name,
		Intro: meta.Intro,
		Items: d.Items,
	}

	var htmlBuf, textBuf strings.Builder
	if err := r.html.Execute(&htmlBuf, payload); err != nil {
		return "", "", "", fmt.Errorf("render html for %s: %w", d.Category, err)
	}
	if err := r.text.Execute(&textBuf, payload); err != nil {
		return "", "", "", fmt.Errorf("render text for %s: %w", d.Category, err)
	}
	return subject, htmlBuf.String(), textBuf.String(), nil
}
