package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/power-monitor/internal/logic"
	"github.com/sweeney/power-monitor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": func(s logic.PowerState) string {
		if s == "" {
			return "UNKNOWN"
		}
		return string(s)
	},
	"stateClass": func(s logic.PowerState) string {
		switch s {
		case logic.StateOn:
			return "on"
		case logic.StateOff:
			return "off"
		default:
			return "unknown"
		}
	},
	"ago": func(r logic.Record, now time.Time) string {
		return logic.Since(&r, now).String()
	},
	"stamp": func(t time.Time) string {
		return t.Format(logic.TimestampLayout)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Power Monitor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.warn { color: red; font-weight: bold; }
</style>
</head>
<body>
<h1>Power Monitor</h1>

<h2>State</h2>
<table>
<tr><th>Power</th><td id="power-state" class="{{stateClass .Power}}">{{stateOrUnknown .Power}}</td></tr>
<tr><th>State cell</th><td>{{if .CellCorrupt}}<span class="warn">invalid, persistence suspended</span>{{else}}ok{{end}}</td></tr>
{{if .Pending}}<tr><th>Pending</th><td class="warn">{{.Pending}} since {{stamp .PendingSince}} ({{.Attempts}} attempts)</td></tr>{{end}}
<tr><th>Last poll</th><td>{{if .LastOutcome}}{{.LastOutcome}}{{else}}none yet{{end}}</td></tr>
</table>

<h2>Transitions</h2>
<table>
{{range .History}}<tr><th>{{stamp .Timestamp}}</th><td class="{{stateClass .State}}">{{.State}}</td><td>{{ago . $.Now}} ago</td></tr>
{{else}}<tr><td>none recorded</td></tr>
{{end}}</table>

<h2>Notifications</h2>
<table>
<tr><th>Transport</th><td>{{.Config.Transport}}</td></tr>
{{if .Config.Target}}<tr><th>Target</th><td>{{.Config.Target}}</td></tr>{{end}}
<tr><th>Connection</th><td class="{{if .NotifierConnected}}connected{{else}}disconnected{{end}}">{{if .NotifierConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Delivered</th><td>{{.Counts.Notified}}</td></tr>
<tr><th>Failed attempts</th><td>{{.Counts.NotifyFailed}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Polls</th><td>{{.Counts.Polls}}</td></tr>
<tr><th>Clock skips</th><td>{{.Counts.ClockUnavailable}}</td></tr>
<tr><th>Storage errors</th><td>{{.Counts.StorageErrors}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
