package httpapi

import (
	"html/template"
	"strconv"
	"strings"
	"time"

	"agroforecast/internal/store"
)

// dashboardTmpl renders the published forecast run as a simple card grid.
var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>AgroForecast Dashboard</title>
<style>
  body { font-family: 'Segoe UI', sans-serif; background: #f0f4f8; margin: 0; padding: 20px; }
  .container { max-width: 1100px; margin: 0 auto; }
  .header { background: #1b5e20; color: white; padding: 24px; border-radius: 8px; }
  .header h1 { margin: 0 0 6px 0; }
  .meta { color: #555; padding: 12px 4px; }
  .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(280px, 1fr)); gap: 16px; }
  .card { background: white; border-radius: 8px; padding: 20px; box-shadow: 0 2px 8px rgba(0,0,0,0.08); }
  .card .date { font-size: 1.2em; font-weight: bold; }
  .card .day { color: #777; margin-bottom: 12px; }
  .metric { display: flex; justify-content: space-between; padding: 6px 0; border-bottom: 1px solid #eee; }
  .metric .label { color: #555; }
  .metric .value { font-weight: bold; }
  .irrigation { background: #fff3e0; margin-top: 10px; border-radius: 6px; padding: 8px 10px; }
  .flag { color: #c62828; font-weight: bold; }
  .empty { background: white; border-radius: 8px; padding: 40px; text-align: center; color: #777; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>AgroForecast</h1>
    <p>Daily humidity and soil-wetness forecast with irrigation guidance</p>
  </div>
  <div class="meta">
    {{if .HasRun}}Published {{.PublishedAt}} (base date {{.BaseDate}}){{else}}Waiting for first forecast run{{end}}
  </div>
  {{if .HasRun}}
  <div class="grid">
    {{range .Days}}
    <div class="card">
      <div class="date">{{.Date}}</div>
      <div class="day">{{.DayName}}</div>
      {{range .Metrics}}
      <div class="metric"><span class="label">{{.Label}}</span><span class="value">{{.Value}}</span></div>
      {{end}}
      {{if .HasWater}}
      <div class="irrigation">
        <div class="metric"><span class="label">Depletion of AWC</span><span class="value">{{.Depletion}}</span></div>
        <div class="metric"><span class="label">Net irrigation (mm)</span><span class="value">{{.NetMM}}</span></div>
        <div class="metric"><span class="label">Gross irrigation (mm)</span><span class="value">{{.GrossMM}}</span></div>
        {{if .OutOfRange}}<div class="flag">wetness forecast out of range</div>{{end}}
      </div>
      {{end}}
    </div>
    {{end}}
  </div>
  {{else}}
  <div class="empty">
    <h3>No forecast yet</h3>
    <p>The system is waiting for its first pipeline run. Check back shortly.</p>
  </div>
  {{end}}
</div>
</body>
</html>
`))

type dashboardMetric struct {
	Label string
	Value string
}

type dashboardDay struct {
	Date       string
	DayName    string
	Metrics    []dashboardMetric
	HasWater   bool
	Depletion  string
	NetMM      string
	GrossMM    string
	OutOfRange bool
}

type dashboardData struct {
	HasRun      bool
	PublishedAt string
	BaseDate    string
	Days        []dashboardDay
}

func renderDashboard(run store.Run, hasRun bool) (string, error) {
	data := dashboardData{HasRun: hasRun}
	if hasRun {
		data.PublishedAt = run.PublishedAt.Format(time.RFC3339)
		data.BaseDate = run.BaseDate.Format("2006-01-02")
		for _, rec := range run.Records {
			day := dashboardDay{
				Date:    rec.Date.Format("2006-01-02"),
				DayName: rec.Date.Weekday().String(),
			}
			for i, f := range rec.Features {
				day.Metrics = append(day.Metrics, dashboardMetric{
					Label: f,
					Value: formatValue(rec.Values[i]),
				})
			}
			if rec.Water != nil {
				day.HasWater = true
				day.Depletion = formatValue(rec.Water.DepletionFrac)
				day.NetMM = formatValue(rec.Water.NetMM)
				day.GrossMM = formatValue(rec.Water.GrossMM)
				day.OutOfRange = rec.Water.OutOfRange
			}
			data.Days = append(data.Days, day)
		}
	}

	var b strings.Builder
	if err := dashboardTmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
