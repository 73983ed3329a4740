package renderer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
)

// Branding is the static data shown in the HTML shell
type Branding struct {
	CompanyName  string
	FooterText   string
	PrimaryColor string
}

const shellTemplate = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.CompanyName}}</title>
</head>
<body style="margin:0;padding:0;background-color:#f4f4f4;font-family:Arial,Helvetica,sans-serif;">
<table role="presentation" width="100%" cellspacing="0" cellpadding="0">
<tr><td align="center" style="padding:24px 0;">
<table role="presentation" width="600" cellspacing="0" cellpadding="0" style="background-color:#ffffff;">
<tr><td style="background-color:{{.PrimaryColor}};color:#ffffff;padding:20px;font-size:22px;font-weight:bold;">{{.CompanyName}}</td></tr>
<tr><td style="padding:24px;color:#333333;font-size:15px;line-height:1.6;">{{.Body}}</td></tr>
<tr><td style="padding:16px 24px;color:#888888;font-size:12px;border-top:1px solid #eeeeee;">{{.FooterText}}<br>&copy; {{.CompanyName}}</td></tr>
</table>
</td></tr>
</table>
</body>
</html>`

// Layout wraps rendered bodies in the branded HTML shell
type Layout struct {
	branding Branding
	tmpl     *htmltemplate.Template
}

// NewLayout parses the shell once for the given branding
func NewLayout(branding Branding) (*Layout, error) {
	tmpl, err := htmltemplate.New("shell").Parse(shellTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html shell: %w", err)
	}
	return &Layout{branding: branding, tmpl: tmpl}, nil
}

// Wrap embeds an already rendered HTML body in the shell. The body is trusted
// operator content; branding values are escaped.
func (l *Layout) Wrap(body string) (string, error) {
	var buf bytes.Buffer
	err := l.tmpl.Execute(&buf, struct {
		CompanyName  string
		FooterText   string
		PrimaryColor htmltemplate.CSS
		Body         htmltemplate.HTML
	}{
		CompanyName:  l.branding.CompanyName,
		FooterText:   l.branding.FooterText,
		PrimaryColor: htmltemplate.CSS(l.branding.PrimaryColor),
		Body:         htmltemplate.HTML(body),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render html shell: %w", err)
	}
	return buf.String(), nil
}
