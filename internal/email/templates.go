package email

import (
	"bytes"
	"fmt"
	"html/template"
)

const alertTemplate = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body style="font-family:Arial,sans-serif;color:#1f2933;">
  <h2>{{.Heading}}</h2>
  {{if .Summary}}<p>{{.Summary}}</p>{{end}}
  {{if .Fields}}
  <table cellpadding="6" style="border-collapse:collapse;">
    {{range .Fields}}
    <tr><td style="font-weight:bold;">{{.Label}}</td><td>{{.Value}}</td></tr>
    {{end}}
  </table>
  {{end}}
  <p style="color:#7b8794;font-size:12px;">Sent by the Valdi meeting pipeline.</p>
</body>
</html>`

var alertTmpl = template.Must(template.New("alert").Parse(alertTemplate))

func renderAlert(alert Alert) (string, error) {
	var buf bytes.Buffer
	if err := alertTmpl.Execute(&buf, alert); err != nil {
		return "", fmt.Errorf("render alert email: %w", err)
	}
	return buf.String(), nil
}
