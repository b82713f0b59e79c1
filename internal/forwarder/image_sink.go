package forwarder

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
	"github.com/hyperhdr-core/hyperhdr/internal/reducer"
)

// ImageSink streams raw frames to connected TCP clients as
// [4-byte big-endian length][width uint16][height uint16][RGB pixels],
// standing in for the out-of-scope flatbuffer protocol (spec §1 Non-goals
// name the wire framing itself as out of scope; only this sink interface
// is in scope per SPEC_FULL.md §6).
type ImageSink struct {
	mu      sync.Mutex
	clients map[net.Conn]*bufio.Writer
	log     *slog.Logger
}

// NewImageSink returns an empty image-stream sink.
func NewImageSink(log *slog.Logger) *ImageSink {
	if log == nil {
		log = slog.Default()
	}
	return &ImageSink{clients: make(map[net.Conn]*bufio.Writer), log: log}
}

// Serve accepts connections on ln until it errors or is closed, registering
// each as a frame consumer.
func (s *ImageSink) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.clients[conn] = bufio.NewWriter(conn)
		s.mu.Unlock()
		s.log.Info("image sink client connected", "remote", conn.RemoteAddr())
	}
}

// Broadcast writes frame to every connected client, dropping (and closing)
// any connection whose write fails rather than blocking the pipeline on a
// stalled client.
func (s *ImageSink) Broadcast(frame reducer.Frame) {
	payload := encodeFrame(frame)

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, w := range s.clients {
		if _, err := w.Write(payload); err != nil || w.Flush() != nil {
			s.log.Warn("image sink client write failed, dropping", "remote", conn.RemoteAddr())
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

func encodeFrame(frame reducer.Frame) []byte {
	body := make([]byte, 4+len(frame.Pix)*3)
	binary.BigEndian.PutUint16(body[0:2], uint16(frame.Width))
	binary.BigEndian.PutUint16(body[2:4], uint16(frame.Height))
	for i, px := range frame.Pix {
		off := 4 + i*3
		body[off+0] = px.R
		body[off+1] = px.G
		body[off+2] = px.B
	}
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(body)))
	copy(out[4:], body)
	return out
}

// ClientCount reports how many clients are currently attached.
func (s *ImageSink) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// decodeFrame is the inverse of encodeFrame's body (the part after the
// 4-byte length prefix), used by tests to verify the wire format round-trips.
func decodeFrame(body []byte) (reducer.Frame, error) {
	if len(body) < 4 {
		return reducer.Frame{}, fmt.Errorf("forwarder: short frame header")
	}
	width := int(binary.BigEndian.Uint16(body[0:2]))
	height := int(binary.BigEndian.Uint16(body[2:4]))
	want := 4 + width*height*3
	if len(body) != want {
		return reducer.Frame{}, fmt.Errorf("forwarder: frame body length %d, want %d", len(body), want)
	}
	pix := make([]color.RGB, width*height)
	for i := range pix {
		off := 4 + i*3
		pix[i] = color.RGB{R: body[off], G: body[off+1], B: body[off+2]}
	}
	return reducer.Frame{Width: width, Height: height, Pix: pix}, nil
}
