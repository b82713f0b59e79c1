package capture

import (
	"image"
	"image/color"
	"testing"
)

func solidPNG(t *testing.T, w, h int, c color.Color) image.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestNetworkImageSourceScalesToConfiguredSize(t *testing.T) {
	s := NewNetworkImageSource("test", ":0", 4, 4, nil)
	img := solidPNG(t, 16, 16, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	frame, dropped := s.process(img)
	if dropped {
		t.Fatal("expected the frame not to be dropped with no threshold set")
	}
	if frame.Width != 4 || frame.Height != 4 {
		t.Fatalf("expected a 4x4 scaled frame, got %dx%d", frame.Width, frame.Height)
	}
	if len(frame.Pix) != 16 {
		t.Fatalf("expected 16 pixels, got %d", len(frame.Pix))
	}
	// A solid-color source should scale down to (approximately) the same
	// solid color across every output pixel.
	for _, px := range frame.Pix {
		if px.R < 190 || px.G < 90 || px.B < 40 {
			t.Fatalf("unexpected scaled color %v", px)
		}
	}
}

func TestNetworkImageSourceDropsBelowSignalThreshold(t *testing.T) {
	s := NewNetworkImageSource("test", ":0", 2, 2, nil)
	s.SetSignalThreshold(0.5)
	img := solidPNG(t, 8, 8, color.RGBA{A: 255}) // black

	_, dropped := s.process(img)
	if !dropped {
		t.Fatal("expected a near-black frame to be dropped below the signal threshold")
	}
}

func TestNetworkImageSourceAppliesCropping(t *testing.T) {
	s := NewNetworkImageSource("test", ":0", 0, 0, nil)
	s.SetCropping(2, 2, 2, 2)
	img := solidPNG(t, 10, 10, color.RGBA{R: 255, A: 255})

	frame, dropped := s.process(img)
	if dropped {
		t.Fatal("expected no drop")
	}
	if frame.Width != 6 || frame.Height != 6 {
		t.Fatalf("expected cropping to 6x6 (10 - 2 - 2 on each axis), got %dx%d", frame.Width, frame.Height)
	}
}

func TestNetworkImageSourceGetInfo(t *testing.T) {
	s := NewNetworkImageSource("uplink", ":0", 1, 1, nil)
	info := s.GetInfo()
	if info.Name != "uplink" || info.Kind != "network" {
		t.Fatalf("unexpected descriptor: %+v", info)
	}
}
