// ABOUTME: Multi-panel composite figures laid out on a fixed grid.
// ABOUTME: Converts panels into a go-plotly figure with per-panel and secondary axes.
package render

import (
	"fmt"

	grob "github.com/MetalBlueberry/go-plotly/graph_objects"
)

// DefaultHeight matches the dashboard's standard canvas.
const DefaultHeight = 900

// Composite is a grid of panels. Panel i sits at row i/Columns, column i%Columns.
type Composite struct {
	Title   string  `json:"title"`
	Columns int     `json:"columns"`
	Rows    int     `json:"rows"`
	Height  int     `json:"height"`
	Panels  []Panel `json:"panels"`
}

// Compose arranges panels on a grid with cols columns.
func Compose(title string, cols int, panels []Panel) Composite {
	if cols < 1 {
		cols = 1
	}
	rows := (len(panels) + cols - 1) / cols
	if rows < 1 {
		rows = 1
	}
	return Composite{
		Title:   title,
		Columns: cols,
		Rows:    rows,
		Height:  DefaultHeight,
		Panels:  panels,
	}
}

// Cell returns the grid position of panel i.
func (c Composite) Cell(i int) (row, col int) {
	return i / c.Columns, i % c.Columns
}

// Figure is a plotly figure: typed traces plus a layout keyed by plotly
// attribute name. grob.Layout only carries the first x/y axis pair, so the
// numbered subplot axes (xaxis2, yaxis3, ...) live in the map alongside it.
type Figure struct {
	Data   grob.Traces            `json:"data"`
	Layout map[string]interface{} `json:"layout"`
}

// Annotation is a paper-positioned text label.
type Annotation struct {
	Text      string  `json:"text"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	XRef      string  `json:"xref"`
	YRef      string  `json:"yref"`
	XAnchor   string  `json:"xanchor"`
	YAnchor   string  `json:"yanchor"`
	ShowArrow bool    `json:"showarrow"`
	Font      Font    `json:"font"`
}

type Font struct {
	Size int `json:"size"`
}

// axisRef names the n-th axis in trace form ("x", "x2", ...).
func axisRef(letter string, n int) string {
	if n == 1 {
		return letter
	}
	return fmt.Sprintf("%s%d", letter, n)
}

// axisKey names the n-th axis in layout form ("xaxis", "xaxis2", ...).
func axisKey(letter string, n int) string {
	if n == 1 {
		return letter + "axis"
	}
	return fmt.Sprintf("%saxis%d", letter, n)
}

// domains returns the [start, end] paper fractions for each cell, using
// plotly's default subplot spacing.
func (c Composite) domains(row, col int) (x, y [2]float64) {
	hSpace := 0.2 / float64(c.Columns)
	vSpace := 0.3 / float64(c.Rows)
	if c.Columns == 1 {
		hSpace = 0
	}
	if c.Rows == 1 {
		vSpace = 0
	}
	w := (1 - hSpace*float64(c.Columns-1)) / float64(c.Columns)
	h := (1 - vSpace*float64(c.Rows-1)) / float64(c.Rows)

	x0 := float64(col) * (w + hSpace)
	top := 1 - float64(row)*(h+vSpace)
	return [2]float64{x0, x0 + w}, [2]float64{top - h, top}
}

// plotTrace converts one rendered series into a go-plotly trace on the given axes.
func plotTrace(t TraceData, xaxis, yaxis string) grob.Trace {
	if t.Trace == TraceLine {
		return &grob.Scatter{
			Type:  grob.TraceTypeScatter,
			Mode:  grob.ScatterMode("lines+markers"),
			Name:  t.Name,
			X:     t.X,
			Y:     t.Y,
			Xaxis: xaxis,
			Yaxis: yaxis,
		}
	}
	return &grob.Bar{
		Type:  grob.TraceTypeBar,
		Name:  t.Name,
		X:     t.X,
		Y:     t.Y,
		Xaxis: xaxis,
		Yaxis: yaxis,
	}
}

// Plotly converts the composite into a figure.
func (c Composite) Plotly() Figure {
	fig := Figure{Data: grob.Traces{}, Layout: map[string]interface{}{}}
	annotations := []Annotation{}
	barMode := ""
	yIdx := 0

	for i, p := range c.Panels {
		row, col := c.Cell(i)
		xd, yd := c.domains(row, col)
		xn := i + 1
		yIdx++
		primary := yIdx
		secondary := 0

		fig.Layout[axisKey("x", xn)] = &grob.LayoutXaxis{
			Domain: []float64{xd[0], xd[1]},
			Anchor: grob.LayoutXaxisAnchor(axisRef("y", primary)),
			Title:  &grob.LayoutXaxisTitle{Text: p.Spec.XLabel},
		}
		fig.Layout[axisKey("y", primary)] = &grob.LayoutYaxis{
			Domain: []float64{yd[0], yd[1]},
			Anchor: grob.LayoutYaxisAnchor(axisRef("x", xn)),
			Title:  &grob.LayoutYaxisTitle{Text: p.Spec.YLabel},
		}
		if p.Spec.Secondary {
			yIdx++
			secondary = yIdx
			fig.Layout[axisKey("y", secondary)] = &grob.LayoutYaxis{
				Overlaying: grob.LayoutYaxisOverlaying(axisRef("y", primary)),
				Side:       grob.LayoutYaxisSide("right"),
				Anchor:     grob.LayoutYaxisAnchor(axisRef("x", xn)),
				Title:      &grob.LayoutYaxisTitle{Text: p.Spec.Y2Label},
			}
		}

		annotations = append(annotations, Annotation{
			Text: p.Title, X: (xd[0] + xd[1]) / 2, Y: yd[1],
			XRef: "paper", YRef: "paper", XAnchor: "center", YAnchor: "bottom",
			Font: Font{Size: 16},
		})
		if p.Empty {
			annotations = append(annotations, Annotation{
				Text: p.Placeholder, X: (xd[0] + xd[1]) / 2, Y: (yd[0] + yd[1]) / 2,
				XRef: "paper", YRef: "paper", XAnchor: "center", YAnchor: "middle",
				Font: Font{Size: 20},
			})
			continue
		}

		if p.Spec.BarMode != "" {
			barMode = p.Spec.BarMode
		}
		for _, t := range p.Traces {
			yaxis := axisRef("y", primary)
			if t.Secondary {
				yaxis = axisRef("y", secondary)
			}
			fig.Data = append(fig.Data, plotTrace(t, axisRef("x", xn), yaxis))
		}
	}

	fig.Layout["title"] = &grob.LayoutTitle{Text: c.Title}
	fig.Layout["height"] = c.Height
	fig.Layout["showlegend"] = true
	fig.Layout["annotations"] = annotations
	if barMode != "" {
		fig.Layout["barmode"] = grob.LayoutBarmode(barMode)
	}
	return fig
}
