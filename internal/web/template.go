package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/network-status/internal/logic"
	"github.com/sweeney/network-status/internal/status"
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
	"indicatorClass": func(s logic.IndicatorState) string {
		switch {
		case s == "":
			return "unknown"
		case s == logic.SolidRed:
			return "fail"
		case s == logic.Orange:
			return "running"
		case s == logic.Off:
			return "off"
		case strings.HasSuffix(string(s), "GREEN"):
			return "pass"
		default:
			return "unknown"
		}
	},
	"stateOrUnknown": func(s logic.IndicatorState) string {
		if s == "" {
			return "UNKNOWN"
		}
		return string(s)
	},
	"ms": func(d time.Duration) string {
		if d == 0 {
			return ""
		}
		return fmt.Sprintf("%dms", d.Milliseconds())
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Network Status</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.pass, .PASS { color: green; font-weight: bold; }
.fail, .FAIL { color: red; font-weight: bold; }
.running { color: orange; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Network Status</h1>

<h2>Indicator</h2>
<table>
<tr><th>State</th><td id="indicator" class="{{indicatorClass .Indicator}}">{{stateOrUnknown .Indicator}}</td></tr>
<tr><th>Run state</th><td>{{.Run}}</td></tr>
<tr><th>Pending hold</th><td>{{if .Pending}}{{.Pending}}{{else}}none{{end}}</td></tr>
</table>

<h2>Last Cycle</h2>
{{with .LastCycle}}<table>
<tr><th>Kind</th><td>{{.Kind}} ({{.Trigger}})</td></tr>
<tr><th>Finished</th><td>{{.Finished.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{range .Observations}}<tr><th>{{.Check}}</th><td class="{{.Outcome}}">{{.Outcome}} {{ms .Latency}} {{.Detail}}</td></tr>
{{end}}</table>{{else}}<p>No cycle completed yet.</p>{{end}}

<h2>Failures</h2>
<table>
<tr><th>Last hour</th><td>{{.Failures.Hour}}</td></tr>
<tr><th>Last day</th><td>{{.Failures.Day}}</td></tr>
<tr><th>Last week</th><td>{{.Failures.Week}}</td></tr>
<tr><th>Cycles</th><td>{{.Cycles}} ({{.FailedCycles}} failed)</td></tr>
<tr><th>Holds</th><td>{{.Holds.Short}} short, {{.Holds.Long}} long</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Pins</th><td>button {{.Config.PinButton}}, red {{.Config.PinRed}}, green {{.Config.PinGreen}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
