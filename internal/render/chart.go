package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/okian/contestlens/internal/domain/history"
	"github.com/okian/contestlens/internal/domain/model"
)

// ChartFormat is the output encoding of a trend chart.
type ChartFormat string

// Supported chart formats.
const (
	FormatPNG ChartFormat = "png"
	FormatSVG ChartFormat = "svg"
)

// ParseChartFormat accepts "png" or "svg" in any case.
func ParseChartFormat(s string) (ChartFormat, error) {
	switch f := ChartFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPNG, FormatSVG:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type of the format.
func (f ChartFormat) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

const (
	chartWidth   = 1280
	chartHeight  = 720
	chartPadding = 50.0
	// leadIn places the starting rating a week before the first contest so a
	// single contest still spans a time range.
	leadIn = 7 * 24 * time.Hour
)

// WriteTrendChart draws the rating over time for entries, given most recent
// first. The line starts at the rating held before the first contest.
func WriteTrendChart(w io.Writer, entries []model.EnrichedEntry, format ChartFormat) error {
	if len(entries) == 0 {
		return ErrNoContests
	}

	var provider chart.RendererProvider
	switch format {
	case FormatPNG:
		provider = chart.PNG
	case FormatSVG:
		provider = chart.SVG
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	ordered := history.Chronological(entries)
	x := make([]time.Time, 0, len(ordered)+1)
	y := make([]float64, 0, len(ordered)+1)
	x = append(x, ordered[0].Contest.Start().Add(-leadIn))
	y = append(y, ordered[0].PrevRating)
	for _, e := range ordered {
		x = append(x, e.Contest.Start())
		y = append(y, e.Rating)
	}

	lo, hi := y[0], y[0]
	for _, v := range y {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	ratingFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Title:  "Contest Rating",
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("Jan 2006"),
		},
		YAxis: chart.YAxis{
			Name:           "Rating",
			ValueFormatter: ratingFormatter,
			Range: &chart.ContinuousRange{
				Min: lo - chartPadding,
				Max: hi + chartPadding,
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Rating",
				XValues: x,
				YValues: y,
				Style: chart.Style{
					StrokeWidth: 2,
					DotWidth:    3,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(provider, w)
}
