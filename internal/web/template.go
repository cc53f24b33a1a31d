package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/TuDo-Makerspace/Coinbox/internal/status"
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
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Coinbox</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.normal { color: green; font-weight: bold; }
.config { color: #b8860b; font-weight: bold; }
.blocked { color: red; font-weight: bold; }
.idle { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>TuDo Coinbox</h1>

<h2>State</h2>
<table>
<tr><th>Mode</th><td class="{{if eq .Mode "NORMAL"}}normal{{else if eq .Mode "CONFIG"}}config{{else if eq .Mode "RESTART"}}blocked{{else}}idle{{end}}">{{orUnknown .Mode}}</td></tr>
<tr><th>Detector</th><td class="{{if eq (printf "%s" .Detector) "BLOCKING"}}blocked{{else}}idle{{end}}">{{orUnknown (printf "%s" .Detector)}}</td></tr>
<tr><th>Baseline</th><td>{{printf "%.1f" .Baseline}}{{if not .Baselined}} (not settled){{end}}</td></tr>
<tr><th>Playing</th><td>{{if .Playing}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Coins</h2>
<table>
<tr><th>Accepted</th><td>{{.Coins}}</td></tr>
<tr><th>Last coin</th><td>{{if .LastCoin.IsZero}}never{{else}}{{.LastCoin.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>Services</th><td>{{if .NetworkActive}}up{{else}}down{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sample period</th><td>{{.Config.SamplePeriodUs}}&micro;s</td></tr>
<tr><th>Spike threshold</th><td>{{.Config.SpikeThreshold}}</td></tr>
<tr><th>Samples</th><td>{{.Config.Samples}} (main {{.Config.MainProbability}}%)</td></tr>
<tr><th>Data dir</th><td>{{.Config.DataDir}}</td></tr>
</table>

<p><a href="/status">JSON</a> &middot; <a href="/dump">ADC dump</a> &middot; <a href="/log">Log</a></p>
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
