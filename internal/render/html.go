// ABOUTME: Standalone HTML page for a composite figure.
// ABOUTME: Embeds the plotly JSON and loads plotly.js from its CDN.
package render

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
)

const plotlyCDN = "https://cdn.plot.ly/plotly-2.35.2.min.js"

var pageTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="{{.Script}}"></script>
</head>
<body>
<div id="dashboard" style="width:100%;height:{{.Height}}px;"></div>
<script>
var figure = {{.Figure}};
Plotly.newPlot("dashboard", figure.data, figure.layout, {responsive: true});
</script>
</body>
</html>
`))

// HTML writes a standalone page rendering c.
func HTML(w io.Writer, c Composite) error {
	raw, err := json.Marshal(c.Plotly())
	if err != nil {
		return fmt.Errorf("encode figure: %w", err)
	}
	data := struct {
		Title  string
		Script string
		Height int
		Figure template.JS
	}{
		Title:  c.Title,
		Script: plotlyCDN,
		Height: c.Height,
		Figure: template.JS(raw),
	}
	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}
