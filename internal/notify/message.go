package notify

import (
	"bytes"
	"errors"
	htmltemplate "html/template"
	"sort"
	"strings"
	"text/template"
	"time"

	"ups_trap_gateway/internal/models"
)

// UnknownLocation is the placeholder location of unregistered devices; it is
// left out of subjects and SMS headers.
const UnknownLocation = "Unknown Location"

// TimestampLayout is used for every human-facing timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

const smsDescriptionLimit = 80

const textBody = `UPS SNMP Trap Alert

UPS Name: {{.DeviceName}}
UPS Location: {{.DeviceLocation}}

Severity: {{.Severity}}
Timestamp: {{.Timestamp}}
Source: {{.Source}}
Trap Name: {{.Name}}
{{- if .Description}}
Description: {{.Description}}{{end}}
Trap OID: {{.Code}}

Trap Variables:
{{- range .Variables}}
  {{.OID}}: {{.Value}}{{end}}

Please check your UPS system if necessary.
`

const htmlBody = `<html>
  <body>
    <h2 style="color: {{.Color}};">UPS SNMP Trap Alert</h2>
    <table border="1" cellpadding="5" style="border-collapse: collapse;">
      <tr><td><b>UPS Name:</b></td><td><b>{{.DeviceName}}</b></td></tr>
      <tr><td><b>UPS Location:</b></td><td><b>{{.DeviceLocation}}</b></td></tr>
      <tr><td><b>Severity:</b></td><td><b style="color: {{.Color}};">{{.Severity}}</b></td></tr>
      <tr><td><b>Timestamp:</b></td><td>{{.Timestamp}}</td></tr>
      <tr><td><b>Source:</b></td><td>{{.Source}}</td></tr>
      <tr><td><b>Trap Name:</b></td><td>{{.Name}}</td></tr>
      {{- if .Description}}
      <tr><td><b>Description:</b></td><td>{{.Description}}</td></tr>{{end}}
      <tr><td><b>Trap OID:</b></td><td>{{.Code}}</td></tr>
    </table>
    <h3>Trap Variables:</h3>
    <table border="1" cellpadding="5" style="border-collapse: collapse;">
      {{- range .Variables}}
      <tr><td>{{.OID}}</td><td>{{.Value}}</td></tr>{{end}}
    </table>
    <p>Please check your UPS system if necessary.</p>
  </body>
</html>
`

var (
	textTemplate = template.Must(template.New("email-text").Parse(textBody))
	htmlTemplate = htmltemplate.Must(htmltemplate.New("email-html").Parse(htmlBody))
)

// Variable is one trap varbind as shown in a message.
type Variable struct {
	OID   string
	Value string
}

// MessageData is what the email templates render.
type MessageData struct {
	DeviceName     string
	DeviceLocation string
	Severity       string
	Color          string
	Timestamp      string
	Source         string
	Name           string
	Description    string
	Code           string
	Variables      []Variable
}

// Email is a rendered email notification.
type Email struct {
	Subject string
	Text    string
	HTML    string
}

func newMessageData(ev models.ClassifiedEvent) MessageData {
	vars := make([]Variable, 0, len(ev.Raw.Payload))
	for oid, val := range ev.Raw.Payload {
		vars = append(vars, Variable{OID: oid, Value: val})
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].OID < vars[j].OID })

	return MessageData{
		DeviceName:     deviceName(ev.Device),
		DeviceLocation: deviceLocation(ev.Device),
		Severity:       ev.Severity.Upper(),
		Color:          severityColor(ev.Severity),
		Timestamp:      timestamp(ev.Raw.ReceivedAt),
		Source:         ev.Source(),
		Name:           ev.Name,
		Description:    ev.Description,
		Code:           ev.Code,
		Variables:      vars,
	}
}

// RenderEmail builds the subject, plain-text and HTML bodies for ev.
func RenderEmail(ev models.ClassifiedEvent) (Email, error) {
	if ev.Name == "" {
		return Email{}, errors.New("render email: event has no name")
	}
	data := newMessageData(ev)

	var text, html bytes.Buffer
	if err := textTemplate.Execute(&text, data); err != nil {
		return Email{}, err
	}
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return Email{}, err
	}

	info := data.DeviceName
	if loc := ev.Device.Location; loc != "" && loc != UnknownLocation {
		info += " (" + loc + ")"
	}
	return Email{
		Subject: "UPS Alert [" + info + "]: " + ev.Name,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// RenderSMS builds the single-line SMS text for ev.
func RenderSMS(ev models.ClassifiedEvent) string {
	info := deviceName(ev.Device)
	if loc := ev.Device.Location; loc != "" && loc != UnknownLocation {
		info += " - " + loc
	}

	var b strings.Builder
	b.WriteString("[" + ev.Severity.Upper() + "] ")
	b.WriteString("[" + info + "] ")
	b.WriteString(ev.Name)
	if ev.Description != "" {
		b.WriteString(" - " + truncate(ev.Description, smsDescriptionLimit))
	}
	b.WriteString(" (" + timestamp(ev.Raw.ReceivedAt) + ")")
	return b.String()
}

func deviceName(d models.Device) string {
	if d.Name == "" {
		return "Unknown"
	}
	return d.Name
}

func deviceLocation(d models.Device) string {
	if d.Location == "" {
		return UnknownLocation
	}
	return d.Location
}

func severityColor(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return "red"
	case models.SeverityWarning:
		return "orange"
	default:
		return "green"
	}
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format(TimestampLayout)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
