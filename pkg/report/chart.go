package report

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"sanbot-be/pkg/delta"
	"sanbot-be/pkg/rank"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Artifact is one rendered leaderboard image covering a contiguous rank
// range. Empty marks the degraded placeholder produced for groups go-chart
// refused to draw.
type Artifact struct {
	GroupIndex int
	RankStart  int
	RankEnd    int
	Title      string
	PNG        []byte
	Empty      bool
}

// ChartRenderer draws one horizontal-leaderboard bar chart per group. All
// styling is fixed so identical input produces byte-identical images.
type ChartRenderer struct {
	Width  int
	Height int
}

func NewChartRenderer() *ChartRenderer {
	return &ChartRenderer{Width: 900, Height: 540}
}

var barColor = drawing.Color{R: 0x07, G: 0xC1, B: 0x60, A: 0xFF}

// RenderGroups renders every group of the ranked set. A group that cannot be
// drawn degrades to an empty-but-labeled artifact instead of aborting the
// whole report.
func (r *ChartRenderer) RenderGroups(ranked *rank.Ranked, meta Meta) ([]Artifact, error) {
	artifacts := make([]Artifact, 0, len(ranked.Groups))
	for _, g := range ranked.Groups {
		title := fmt.Sprintf("%s（第%d-%d名）", meta.Title(), g.RankStart, g.RankEnd)
		data, err := r.renderGroup(g, title)
		if err != nil {
			placeholder, perr := placeholderPNG(r.Width, 120)
			if perr != nil {
				return nil, &RenderError{Reason: perr.Error()}
			}
			artifacts = append(artifacts, Artifact{
				GroupIndex: g.Index,
				RankStart:  g.RankStart,
				RankEnd:    g.RankEnd,
				Title:      title,
				PNG:        placeholder,
				Empty:      true,
			})
			continue
		}
		artifacts = append(artifacts, Artifact{
			GroupIndex: g.Index,
			RankStart:  g.RankStart,
			RankEnd:    g.RankEnd,
			Title:      title,
			PNG:        data,
		})
	}
	return artifacts, nil
}

func (r *ChartRenderer) renderGroup(g rank.Group, title string) ([]byte, error) {
	if len(g.Records) == 0 {
		return nil, fmt.Errorf("empty group")
	}
	bars := make([]chart.Value, 0, len(g.Records))
	for i, rec := range g.Records {
		bars = append(bars, chart.Value{
			Label: barLabel(g.RankStart+i, rec),
			Value: barValue(rec),
			Style: chart.Style{FillColor: barColor, StrokeColor: barColor},
		})
	}

	bc := chart.BarChart{
		Title:    title,
		Width:    r.Width,
		Height:   r.Height,
		BarWidth: 28,
		Background: chart.Style{
			Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// barValue is the bar height: absolute delta for compared entities, the
// present side's value for added/removed ones.
func barValue(rec delta.Record) float64 {
	if abs, ok := rec.AbsDelta(); ok {
		return abs.InexactFloat64()
	}
	if rec.Value2 != nil {
		return rec.Value2.Abs().InexactFloat64()
	}
	if rec.Value1 != nil {
		return rec.Value1.Abs().InexactFloat64()
	}
	return 0
}

func barLabel(rankNo int, rec delta.Record) string {
	name := rec.Name
	if name == "" {
		name = rec.Key
	}
	switch rec.Presence {
	case delta.PresenceAdded:
		return fmt.Sprintf("%d %s (新增)", rankNo, name)
	case delta.PresenceRemoved:
		return fmt.Sprintf("%d %s (移除)", rankNo, name)
	default:
		sign := ""
		if rec.Delta.Sign() > 0 {
			sign = "+"
		}
		return fmt.Sprintf("%d %s (%s%s)", rankNo, name, sign, rec.Delta)
	}
}

// placeholderPNG produces a blank labeled-by-filename artifact body for
// groups that could not be drawn.
func placeholderPNG(width, height int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	// Thin border so the image is visibly a deliberate placeholder.
	border := color.RGBA{R: 0xDC, G: 0xDF, B: 0xE6, A: 0xFF}
	for x := 0; x < width; x++ {
		img.Set(x, 0, border)
		img.Set(x, height-1, border)
	}
	for y := 0; y < height; y++ {
		img.Set(0, y, border)
		img.Set(width-1, y, border)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
