// Package render draws pose skeletons and comparison results onto frames.
package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ZDP-Q/PostureCorrection/internal/config"
	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

// jointRadius is the radius of the dot drawn on each limb endpoint.
const jointRadius = 4

// Style holds the colours and sizes used for overlays.
type Style struct {
	LineThickness int
	BoldThickness int
	OverlayAlpha  float64
	OverlayScale  float64
	Matched       color.RGBA
	Mismatched    color.RGBA
	Reference     color.RGBA
	MinVisibility float64
}

// NewStyle converts render settings into a Style.
func NewStyle(s config.RenderSettings, minVisibility float64) Style {
	return Style{
		LineThickness: max(s.LineThickness, 1),
		BoldThickness: max(s.BoldThickness, 1),
		OverlayAlpha:  clamp01(s.OverlayAlpha),
		OverlayScale:  clamp01(s.OverlayScale),
		Matched:       rgba(s.Matched),
		Mismatched:    rgba(s.Mismatched),
		Reference:     rgba(s.Reference),
		MinVisibility: minVisibility,
	}
}

// DefaultStyle returns the style built from the default settings.
func DefaultStyle() Style {
	d := config.Defaults()
	return NewStyle(d.Render, d.Analyzer.MinVisibility)
}

func rgba(c config.Color) color.RGBA {
	return color.RGBA{R: c[0], G: c[1], B: c[2], A: 255}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// toPoint maps a normalized landmark into a w x h pixel box at origin.
func toPoint(lm pose.Landmark, origin image.Point, w, h int) image.Point {
	return image.Pt(origin.X+int(lm.X*float64(w)), origin.Y+int(lm.Y*float64(h)))
}

// Skeleton draws the limbs of p onto img. When result is non-nil each
// judged limb is drawn bold in the matched or mismatched colour; limbs
// without a verdict use the reference colour.
func Skeleton(img *gocv.Mat, p pose.Pose, result *pose.MatchResult, style Style) {
	if img == nil || img.Empty() || p.IsEmpty() {
		return
	}
	drawSkeleton(img, p, result, style, image.Point{}, img.Cols(), img.Rows())
}

func drawSkeleton(img *gocv.Mat, p pose.Pose, result *pose.MatchResult, style Style, origin image.Point, w, h int) {
	for _, limb := range pose.DefaultLimbs {
		from, to := p.At(limb.From), p.At(limb.To)
		if from.Visibility <= style.MinVisibility || to.Visibility <= style.MinVisibility {
			continue
		}

		c, thickness := style.Reference, style.LineThickness
		if result != nil {
			if ok, judged := result.Limbs[limb.Name]; judged {
				thickness = style.BoldThickness
				c = style.Mismatched
				if ok {
					c = style.Matched
				}
			}
		}

		a, b := toPoint(from, origin, w, h), toPoint(to, origin, w, h)
		gocv.Line(img, a, b, c, thickness)
		gocv.Circle(img, a, jointRadius, c, -1)
		gocv.Circle(img, b, jointRadius, c, -1)
	}
}

// ReferenceInset draws the reference skeleton into the top-right corner
// of img over a darkened box.
func ReferenceInset(img *gocv.Mat, ref pose.Pose, style Style) {
	if img == nil || img.Empty() || ref.IsEmpty() || style.OverlayScale <= 0 {
		return
	}

	w := int(float64(img.Cols()) * style.OverlayScale)
	h := int(float64(img.Rows()) * style.OverlayScale)
	if w < 2 || h < 2 {
		return
	}
	box := image.Rect(img.Cols()-w, 0, img.Cols(), h)

	region := img.Region(box)
	defer region.Close()

	shade := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), h, w, region.Type())
	defer shade.Close()
	gocv.AddWeighted(shade, style.OverlayAlpha, region, 1-style.OverlayAlpha, 0, &region)

	drawSkeleton(&region, ref, nil, style, image.Point{}, w, h)
}

// Score writes the match score in the top-left corner.
func Score(img *gocv.Mat, score float64, style Style) {
	if img == nil || img.Empty() {
		return
	}

	c := style.Mismatched
	if score >= 0.8 {
		c = style.Matched
	}
	text := fmt.Sprintf("Score: %.0f%%", score*100)
	gocv.PutText(img, text, image.Pt(10, 30), gocv.FontHersheySimplex, 0.8, c, style.LineThickness)
}

// Status writes a one-line status message under the score.
func Status(img *gocv.Mat, msg string, style Style) {
	if img == nil || img.Empty() || msg == "" {
		return
	}
	gocv.PutText(img, msg, image.Pt(10, 60), gocv.FontHersheySimplex, 0.6, style.Reference, 1)
}

// Annotate draws the full overlay for one compared frame.
func Annotate(img *gocv.Mat, live, ref pose.Pose, result *pose.MatchResult, status string, style Style) {
	Skeleton(img, live, result, style)
	ReferenceInset(img, ref, style)
	if result != nil {
		Score(img, result.Score, style)
	}
	Status(img, status, style)
}

// EncodeJPEG encodes img for streaming.
func EncodeJPEG(img *gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *img)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
