// Package forwarder implements the two external sink kinds spec §6 carries
// as thin interfaces: a JSON control sink and a raw image-stream sink,
// generalizing the teacher's gin-based /api/layers group (api.go) from
// "manage a named Lua layer" into "register/setColor/clear a named client
// at a priority" and "stream raw frames over TCP" respectively.
package forwarder

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
	"github.com/hyperhdr-core/hyperhdr/internal/muxer"
)

// JSONSink exposes register/setColor/clear over HTTP, the JSON half of spec
// §6's external-client contract (teacher's /api/layers generalized from
// "Lua layer" to "named network client at a priority").
type JSONSink struct {
	mu      sync.Mutex
	mux     *muxer.Muxer
	clients map[string]uint8 // name -> registered priority
}

// NewJSONSink wires a sink onto mux.
func NewJSONSink(mux *muxer.Muxer) *JSONSink {
	return &JSONSink{mux: mux, clients: make(map[string]uint8)}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Priority uint8  `json:"priority"`
}

type colorRequest struct {
	R         uint8 `json:"r"`
	G         uint8 `json:"g"`
	B         uint8 `json:"b"`
	TimeoutMs int64 `json:"timeoutMs"`
}

// Register installs the sink's routes under group (e.g. r.Group("/api/clients")),
// mirroring the teacher's setupRouter(p *PipelineManager) shape.
func (s *JSONSink) Register(group *gin.RouterGroup) {
	group.POST("/", func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.mu.Lock()
		s.clients[req.Name] = req.Priority
		s.mu.Unlock()
		s.mux.RegisterInput(req.Priority, muxer.ComponentNetwork, req.Name, color.Black, 0, req.Name)
		c.JSON(http.StatusCreated, gin.H{"status": "registered", "name": req.Name})
	})

	group.POST("/:name/color", func(c *gin.Context) {
		name := c.Param("name")
		priority, ok := s.priorityOf(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown client %q", name)})
			return
		}
		var req colorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.mux.SetInput(priority, color.RGB{R: req.R, G: req.G, B: req.B}, req.TimeoutMs)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	group.DELETE("/:name", func(c *gin.Context) {
		name := c.Param("name")
		priority, ok := s.priorityOf(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown client %q", name)})
			return
		}
		s.mux.ClearInput(priority)
		s.mu.Lock()
		delete(s.clients, name)
		s.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"status": "cleared", "name": name})
	})
}

func (s *JSONSink) priorityOf(name string) (uint8, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.clients[name]
	return p, ok
}
