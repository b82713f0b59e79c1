// Package capture also hosts the concrete producer implementations of the
// inbound "Capture source" contract (spec §6): a network image producer
// here, alongside whatever local screen/USB grabbers a deployment wires in
// through the same Source interface.
package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
	"github.com/hyperhdr-core/hyperhdr/internal/reducer"
)

// NetworkImageSource implements capture.Source for the "network image
// producers" named in spec §1: a remote encoder POSTs whole encoded frames
// (PNG/JPEG/GIF, whatever Go's image package recognizes) to an HTTP
// endpoint; frames are decoded, cropped, scaled to the instance's working
// resolution with golang.org/x/image/draw, and published into this
// source's frame channel at the bounded depth every other capture fan-out
// in this package uses (spec §5 "bounded depth = 2 frames").
type NetworkImageSource struct {
	name          string
	outW, outH    int
	log           *slog.Logger
	pool          *Pool

	mu          sync.Mutex
	cropL, cropR, cropT, cropB int
	threshold   float64
	hdrToneMap  bool

	srv    *http.Server
	frames chan reducer.Frame
	state  chan StateEvent
}

// NewNetworkImageSource returns an unstarted source listening on addr
// (e.g. ":9400"), scaling every decoded frame to outW x outH before
// publishing. Scaled-frame pixel buffers are allocated from a shared Pool
// (spec §9 "Frames ... small pool") rather than freshly per frame, since a
// network source decodes and republishes at whatever rate the remote
// encoder pushes.
func NewNetworkImageSource(name, addr string, outW, outH int, log *slog.Logger) *NetworkImageSource {
	if log == nil {
		log = slog.Default()
	}
	s := &NetworkImageSource{
		name: name,
		outW: outW,
		outH: outH,
		log:  log.With("capture", name),
		pool: NewPool(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/frame", s.handleFrame)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// GetInfo implements capture.Source (spec §6 "Capture source").
func (s *NetworkImageSource) GetInfo() Descriptor {
	return Descriptor{Name: s.name, Kind: "network"}
}

// Start implements capture.Source: it launches the HTTP listener and
// returns the frame/state channels a Hub fans out from.
func (s *NetworkImageSource) Start() (<-chan reducer.Frame, <-chan StateEvent, error) {
	s.frames = make(chan reducer.Frame, subscriberDepth)
	s.state = make(chan StateEvent, 4)

	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("capture/network: listen %q: %w", s.srv.Addr, err)
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("network image source server exited", "err", err)
		}
	}()
	s.emitState(true, "started")
	return s.frames, s.state, nil
}

// Stop implements capture.Source: it shuts the HTTP listener down and
// closes the frame/state channels.
func (s *NetworkImageSource) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	s.emitState(false, "stopped")
	close(s.frames)
	close(s.state)
	return err
}

// SetSignalThreshold implements capture.Source (spec §6): frames whose mean
// luminance falls below threshold are treated as "no signal" and dropped
// rather than published, mirroring a blanked/disconnected capture device.
func (s *NetworkImageSource) SetSignalThreshold(threshold float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = threshold
}

// SetCropping implements capture.Source (spec §6): pixels are trimmed from
// each edge, in source-image pixels, before scaling.
func (s *NetworkImageSource) SetCropping(left, right, top, bottom int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cropL, s.cropR, s.cropT, s.cropB = left, right, top, bottom
}

// SetHDRToneMappingEnabled implements capture.Source (spec §6); the
// decision of whether a frame should be tagged HDR is left to the color
// pipeline's AutomaticToneMapping stage, this only tags the frame's origin
// format so that stage can act on it.
func (s *NetworkImageSource) SetHDRToneMappingEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hdrToneMap = enabled
}

func (s *NetworkImageSource) handleFrame(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	img, _, err := image.Decode(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("decode: %v", err), http.StatusBadRequest)
		return
	}

	frame, dropped := s.process(img)
	if dropped {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "dropped: below signal threshold")
		return
	}

	select {
	case s.frames <- frame:
	default:
		// bounded depth-2 mailbox full: evict the oldest frame first
		// (spec §5 "oldest dropped on overflow"), same discipline as Hub.Publish.
		select {
		case <-s.frames:
		default:
		}
		select {
		case s.frames <- frame:
		default:
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

// process crops, scales and format-converts a decoded image into a
// reducer.Frame, reporting whether it was dropped for being under the
// configured signal threshold.
func (s *NetworkImageSource) process(img image.Image) (reducer.Frame, bool) {
	s.mu.Lock()
	cropL, cropR, cropT, cropB := s.cropL, s.cropR, s.cropT, s.cropB
	threshold := s.threshold
	outW, outH := s.outW, s.outH
	format := color.FormatRGB24
	if s.hdrToneMap {
		format = color.FormatYUV420
	}
	s.mu.Unlock()

	b := img.Bounds()
	cropped := image.Rect(b.Min.X+cropL, b.Min.Y+cropT, b.Max.X-cropR, b.Max.Y-cropB)
	if cropped.Dx() <= 0 || cropped.Dy() <= 0 {
		cropped = b
	}

	if outW <= 0 {
		outW = cropped.Dx()
	}
	if outH <= 0 {
		outH = cropped.Dy()
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, cropped, draw.Over, nil)

	pix := s.pool.Get(outW * outH)
	var sum int
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			off := dst.PixOffset(x, y)
			r, g, b := dst.Pix[off], dst.Pix[off+1], dst.Pix[off+2]
			pix[y*outW+x] = color.RGB{R: r, G: g, B: b}
			sum += int(r) + int(g) + int(b)
		}
	}

	if threshold > 0 && len(pix) > 0 {
		mean := float64(sum) / float64(len(pix)*3*255)
		if mean < threshold {
			return reducer.Frame{}, true
		}
	}

	return reducer.Frame{Width: outW, Height: outH, Pix: pix, Format: format}, false
}

func (s *NetworkImageSource) emitState(active bool, reason string) {
	select {
	case s.state <- StateEvent{SourceName: s.name, Active: active, Reason: reason, At: time.Now()}:
	default:
	}
}
