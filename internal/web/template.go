package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/range-controller/internal/logic"
	"github.com/sweeney/range-controller/internal/status"
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
	"addr": func(a uint16) string {
		if a == 0 {
			return "-"
		}
		return fmt.Sprintf("0x%02x", a)
	},
	"mm": func(v logic.Millimeters) string {
		return fmt.Sprintf("%.1f", float64(v))
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Range Controller</title>
<style>
body { font-family: monospace; max-width: 760px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.RANGING { color: green; font-weight: bold; }
.FAILED { color: red; }
.OFF, .POWERING { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.bar { display: inline-block; height: 8px; background: #4a7; vertical-align: middle; }
</style>
</head>
<body>
<h1>Range Controller: <span class="{{.State}}">{{.State}}</span></h1>

<h2>Sensors</h2>
<table>
<tr><th>#</th><th>State</th><th>Addr</th><th>CC</th><th>Raw mm</th><th>Smoothed mm</th><th>Value</th><th>Sent</th></tr>
{{range .Sensors}}<tr>
<td>{{.Index}}</td>
<td class="{{.State}}" title="{{.Error}}">{{.State}}</td>
<td>{{addr .Address}}</td>
<td>{{.Controller}}</td>
<td>{{if .HasDistance}}{{mm .Distance}}{{else}}-{{end}}</td>
<td>{{if .HasValue}}{{mm .Smoothed}}{{else}}-{{end}}</td>
<td>{{if .HasValue}}{{.Value}} <span class="bar" style="width: {{.Value}}px"></span>{{else}}-{{end}}</td>
<td>{{.Emitted}}{{if .SendErrors}} ({{.SendErrors}} failed){{end}}</td>
</tr>{{end}}
</table>

<h2>Transport</h2>
<table>
<tr><th>Kind</th><td>{{.Config.Transport}}</td></tr>
<tr><th>Target</th><td>{{.Config.Target}}</td></tr>
<tr><th>Status</th><td class="{{if .TransportConnected}}connected{{else}}disconnected{{end}}">{{if .TransportConnected}}connected{{else}}disconnected{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Cycles</th><td>{{.Cycles}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Smoothing</th><td>{{.Config.Alpha}}</td></tr>
<tr><th>Window</th><td>{{.Config.MinMM}}-{{.Config.MaxMM}}mm</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
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
