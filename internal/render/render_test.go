package render

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ZDP-Q/PostureCorrection/internal/config"
	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

// armPose has a horizontal left arm across the middle of the frame.
func armPose() pose.Pose {
	lms := make([]pose.Landmark, pose.NumLandmarks)
	lms[pose.LeftShoulder] = pose.Landmark{X: 0.25, Y: 0.5, Visibility: 0.9}
	lms[pose.LeftElbow] = pose.Landmark{X: 0.50, Y: 0.5, Visibility: 0.9}
	lms[pose.LeftWrist] = pose.Landmark{X: 0.75, Y: 0.5, Visibility: 0.9}
	return pose.New(lms)
}

func pixel(m gocv.Mat, p image.Point) color.RGBA {
	v := m.GetVecbAt(p.Y, p.X)
	return color.RGBA{R: v[2], G: v[1], B: v[0], A: 255}
}

func TestNewStyle(t *testing.T) {
	s := NewStyle(config.RenderSettings{
		LineThickness: 0,
		BoldThickness: 5,
		OverlayAlpha:  1.5,
		OverlayScale:  -1,
		Matched:       config.Color{1, 2, 3},
	}, 0.5)

	if s.LineThickness != 1 {
		t.Errorf("LineThickness = %d, want 1", s.LineThickness)
	}
	if s.BoldThickness != 5 {
		t.Errorf("BoldThickness = %d, want 5", s.BoldThickness)
	}
	if s.OverlayAlpha != 1 || s.OverlayScale != 0 {
		t.Errorf("alpha, scale = %v, %v, want 1, 0", s.OverlayAlpha, s.OverlayScale)
	}
	if s.Matched != (color.RGBA{R: 1, G: 2, B: 3, A: 255}) {
		t.Errorf("Matched = %v", s.Matched)
	}
}

func TestSkeleton_LimbColours(t *testing.T) {
	style := DefaultStyle()

	tests := []struct {
		name   string
		result *pose.MatchResult
		want   color.RGBA
	}{
		{
			name:   "no result uses reference colour",
			result: nil,
			want:   style.Reference,
		},
		{
			name:   "matched limb",
			result: &pose.MatchResult{Limbs: map[string]bool{"left_forearm": true}},
			want:   style.Matched,
		},
		{
			name:   "mismatched limb",
			result: &pose.MatchResult{Limbs: map[string]bool{"left_forearm": false}},
			want:   style.Mismatched,
		},
		{
			name:   "limb without verdict",
			result: &pose.MatchResult{Limbs: map[string]bool{"left_upper_arm": false}},
			want:   style.Reference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := gocv.NewMatWithSize(200, 200, gocv.MatTypeCV8UC3)
			defer img.Close()
			img.SetTo(gocv.NewScalar(0, 0, 0, 0))

			Skeleton(&img, armPose(), tt.result, style)

			// Midpoint of the forearm, away from the joint dots.
			if got := pixel(img, image.Pt(125, 100)); got != tt.want {
				t.Errorf("forearm pixel = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSkeleton_SkipsInvisible(t *testing.T) {
	style := DefaultStyle()
	p := armPose()
	lms := p.Landmarks
	lms[pose.LeftWrist].Visibility = style.MinVisibility

	img := gocv.NewMatWithSize(200, 200, gocv.MatTypeCV8UC3)
	defer img.Close()
	img.SetTo(gocv.NewScalar(0, 0, 0, 0))

	Skeleton(&img, pose.New(lms), nil, style)

	if got := pixel(img, image.Pt(125, 100)); got != (color.RGBA{A: 255}) {
		t.Errorf("forearm with hidden wrist was drawn: %v", got)
	}
	if got := pixel(img, image.Pt(75, 100)); got != style.Reference {
		t.Errorf("upper arm pixel = %v, want %v", got, style.Reference)
	}
}

func TestSkeleton_EmptyInputs(t *testing.T) {
	img := gocv.NewMatWithSize(50, 50, gocv.MatTypeCV8UC3)
	defer img.Close()
	img.SetTo(gocv.NewScalar(0, 0, 0, 0))

	Skeleton(&img, pose.Pose{}, nil, DefaultStyle())
	Skeleton(nil, armPose(), nil, DefaultStyle())

	if got := pixel(img, image.Pt(25, 25)); got != (color.RGBA{A: 255}) {
		t.Errorf("empty pose drew on the frame: %v", got)
	}
}

func TestReferenceInset(t *testing.T) {
	style := DefaultStyle()
	style.OverlayScale = 0.5

	img := gocv.NewMatWithSize(200, 200, gocv.MatTypeCV8UC3)
	defer img.Close()
	img.SetTo(gocv.NewScalar(200, 200, 200, 0))

	ReferenceInset(&img, armPose(), style)

	// Inset covers x in [100,200), y in [0,100); the arm runs along y=50.
	if got := pixel(img, image.Pt(162, 50)); got != style.Reference {
		t.Errorf("inset arm pixel = %v, want %v", got, style.Reference)
	}

	shaded := pixel(img, image.Pt(110, 90))
	if shaded.R >= 200 {
		t.Errorf("inset background not darkened: %v", shaded)
	}

	if got := pixel(img, image.Pt(50, 150)); got.R != 200 {
		t.Errorf("pixel outside inset changed: %v", got)
	}
}

func TestEncodeJPEG(t *testing.T) {
	img := gocv.NewMatWithSize(32, 32, gocv.MatTypeCV8UC3)
	defer img.Close()

	Annotate(&img, armPose(), armPose(), &pose.MatchResult{Score: 1}, "Good", DefaultStyle())

	data, err := EncodeJPEG(&img)
	if err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Errorf("EncodeJPEG() did not produce a JPEG header")
	}
}
