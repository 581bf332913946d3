package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/hannlab/autotrader/internal/observ"
	"github.com/hannlab/autotrader/internal/store"
)

const reportTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Autotrader report</title></head>
<body>
<h1>Autotrader report</h1>
<p>Generated {{.Generated}}</p>
<h2>Metrics</h2>
<table border="1" cellpadding="4">
{{range $name, $value := .Metrics}}<tr><td>{{$name}}</td><td>{{printf "%.4f" $value}}</td></tr>
{{end}}</table>
<h2>Trades</h2>
<table border="1" cellpadding="4">
<tr><th>Opened</th><th>Strategy</th><th>Direction</th><th>Lot</th><th>Entry</th><th>PnL</th></tr>
{{range .Trades}}<tr><td>{{.TSOpen.Format "2006-01-02 15:04"}}</td><td>{{.Strategy}}</td><td>{{.Direction}}</td><td>{{printf "%.2f" .Lot}}</td><td>{{printf "%.2f" .Entry}}</td><td>{{printf "%.2f" .PnL}}</td></tr>
{{end}}</table>
</body>
</html>
`

var tmpl = template.Must(template.New("report").Parse(reportTemplate))

// WriteHTML renders the weekly performance report to path.
func WriteHTML(path string, metrics map[string]float64, trades []store.TradeLog) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	data := struct {
		Generated string
		Metrics   map[string]float64
		Trades    []store.TradeLog
	}{
		Generated: time.Now().UTC().Format(time.RFC3339),
		Metrics:   metrics,
		Trades:    trades,
	}
	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	observ.Log("report_written", map[string]any{"path": path, "trades": len(trades)})
	return nil
}
