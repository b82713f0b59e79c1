// Package api implements the admin HTTP control surface that sits in front
// of the instance Manager: instance CRUD, component state, settings
// updates and muxer introspection (spec §1 lists the full HTTP/WebSocket/
// JSON admin API as an external collaborator "through thin interfaces";
// this is that thin interface's handler set), directly generalizing the
// teacher's setupRouter(p *PipelineManager) (api.go) from "manage a named
// Lua layer" to "manage a named instance".
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
	"github.com/hyperhdr-core/hyperhdr/internal/driver"
	"github.com/hyperhdr-core/hyperhdr/internal/instance"
	"github.com/hyperhdr-core/hyperhdr/internal/reducer"
	"github.com/hyperhdr-core/hyperhdr/internal/settings"
)

// Server wires a gin.Engine to a Manager, mirroring the teacher's
// single-router/single-pipeline shape but addressing N instances by index.
type Server struct {
	mgr *instance.Manager
}

// New returns a Server bound to mgr.
func New(mgr *instance.Manager) *Server {
	return &Server{mgr: mgr}
}

// Router builds the gin.Engine, matching the teacher's setupRouter
// structure: one route group per resource, JSON in/out throughout.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	instances := r.Group("/api/instances")
	{
		instances.GET("/", s.listInstances)
		instances.POST("/", s.createInstance)
		instances.POST("/:index/start", s.startInstance)
		instances.POST("/:index/stop", s.stopInstance)
		instances.DELETE("/:index", s.deleteInstance)
	}

	r.POST("/api/instances/:index/components/:kind", s.setComponent)
	r.GET("/api/instances/:index/components", s.getComponents)
	r.POST("/api/instances/:index/settings/:kind", s.postSettings)
	r.GET("/api/instances/:index/muxer", s.getMuxer)
	r.POST("/api/manager/pause", s.pauseAll)
	r.POST("/api/manager/hibernate", s.hibernate)

	return r
}

func instanceIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid instance index"})
		return 0, false
	}
	return idx, true
}

// listInstances reports every registered instance's index and name.
func (s *Server) listInstances(c *gin.Context) {
	out := make([]gin.H, 0)
	for _, i := range s.mgr.Indices() {
		in, ok := s.mgr.Get(i)
		if !ok {
			continue
		}
		out = append(out, gin.H{"index": in.Index, "name": in.Name})
	}
	c.JSON(http.StatusOK, out)
}

type createInstanceRequest struct {
	Index    int    `json:"index"`
	Name     string `json:"name" binding:"required"`
	LedCount int    `json:"ledCount"`
}

// createInstance implements spec §4.6 "createInstance(name)": it builds a
// NullDriver-backed instance over a default even horizontal-strip layout,
// mirroring cmd/hyperhdr-core/main.go's own default-instance construction
// (evenStrip). Layout and driver are fixed at creation: the instance consumes
// only COLOR and SMOOTHING settings updates, not LEDS or DEVICE.
func (s *Server) createInstance(c *gin.Context) {
	var req createInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.LedCount <= 0 {
		req.LedCount = 1
	}

	cfg := instance.Config{
		Index:          req.Index,
		Name:           req.Name,
		Layout:         evenStrip(req.LedCount),
		Mapping:        reducer.MappingMean,
		LUT:            color.NewLUT(color.FormatRGB24),
		Calibration:    color.DefaultCalibration(),
		SmoothingCfg:   color.SmoothingConfig{SettlingMs: 200, UpdateMs: 25, Type: color.RgbInterpolator, Factor: 0.2},
		Drv:            driver.NewNullDriver(),
		DriverCfg:      driver.Config{Type: "null", LedCount: req.LedCount},
		UpdateInterval: 25 * time.Millisecond,
	}

	if _, err := s.mgr.CreateInstance(cfg); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created", "index": cfg.Index, "name": cfg.Name})
}

// evenStrip lays out n LEDs along a single horizontal row of narrow vertical
// slices, the same minimal default layout cmd/hyperhdr-core/main.go seeds
// instance 0 with.
func evenStrip(n int) reducer.Layout {
	leds := make([]reducer.Led, n)
	for i := range leds {
		x1 := float64(i) / float64(n)
		x2 := float64(i+1) / float64(n)
		leds[i] = reducer.Led{X1: x1, X2: x2, Y1: 0, Y2: 1}
	}
	return reducer.Layout{Leds: leds}
}

type startRequest struct {
	DisableOnStartup bool `json:"disableOnStartup"`
}

// startInstance implements spec §4.6 "startInstance(i, disableOnStartup)".
func (s *Server) startInstance(c *gin.Context) {
	idx, ok := instanceIndex(c)
	if !ok {
		return
	}
	var req startRequest
	_ = c.ShouldBindJSON(&req)
	if err := s.mgr.StartInstance(idx, req.DisableOnStartup); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started", "index": idx})
}

// stopInstance implements spec §4.6 "stopInstance(i)".
func (s *Server) stopInstance(c *gin.Context) {
	idx, ok := instanceIndex(c)
	if !ok {
		return
	}
	if err := s.mgr.StopInstance(idx); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped", "index": idx})
}

// deleteInstance implements spec §4.6 "deleteInstance(i)".
func (s *Server) deleteInstance(c *gin.Context) {
	idx, ok := instanceIndex(c)
	if !ok {
		return
	}
	if err := s.mgr.DeleteInstance(idx); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "index": idx})
}

type componentRequest struct {
	Enable bool `json:"enable"`
}

// setComponent implements spec §6 "componentStateChangeRequest(kind, enable)".
func (s *Server) setComponent(c *gin.Context) {
	idx, ok := instanceIndex(c)
	if !ok {
		return
	}
	in, ok := s.mgr.Get(idx)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such instance"})
		return
	}
	kind, ok := parseComponentKind(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown component kind"})
		return
	}
	var req componentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.Components().SetEnabled(kind, req.Enable)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "kind": kind.String(), "enabled": req.Enable})
}

// getComponents reports every component's current enable state (spec §6
// "Component state").
func (s *Server) getComponents(c *gin.Context) {
	idx, ok := instanceIndex(c)
	if !ok {
		return
	}
	in, ok := s.mgr.Get(idx)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such instance"})
		return
	}
	states := in.Components().States()
	out := make(map[string]gin.H, len(states))
	for k, v := range states {
		entry := gin.H{"enabled": v}
		if cerr := in.Components().LastError(k); cerr != nil {
			entry["error"] = cerr.Error()
		}
		out[k.String()] = entry
	}
	c.JSON(http.StatusOK, out)
}

// postSettings implements spec §6 "Settings updates": a typed (type, json)
// pair is published onto the instance's settings bus; the owning component
// re-reads only its own slice.
func (s *Server) postSettings(c *gin.Context) {
	idx, ok := instanceIndex(c)
	if !ok {
		return
	}
	in, ok := s.mgr.Get(idx)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such instance"})
		return
	}
	kind, ok := parseSettingsKind(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown settings kind"})
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.Settings().Publish(settings.Update{Type: kind, JSON: body})
	c.JSON(http.StatusOK, gin.H{"status": "published", "kind": kind.String()})
}

// getMuxer reports the visible priority and every registered input, the
// introspection half of spec §4.1.
func (s *Server) getMuxer(c *gin.Context) {
	idx, ok := instanceIndex(c)
	if !ok {
		return
	}
	in, ok := s.mgr.Get(idx)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such instance"})
		return
	}
	mux := in.Muxer()
	priorities := mux.Priorities()
	inputs := make([]gin.H, 0, len(priorities))
	for _, p := range priorities {
		info, ok := mux.GetInputInfo(p)
		if !ok {
			continue
		}
		inputs = append(inputs, gin.H{
			"priority":  info.Priority,
			"component": int(info.Component),
			"origin":    info.Origin,
			"owner":     info.Owner,
			"active":    info.Active,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"currentPriority": mux.GetCurrentPriority(),
		"inputs":          inputs,
	})
}

type pauseRequest struct {
	Pause bool `json:"pause"`
}

// pauseAll implements spec §4.6 "toggleStateAllInstances(pause)".
func (s *Server) pauseAll(c *gin.Context) {
	var req pauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.mgr.ToggleStateAllInstances(req.Pause)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "paused": req.Pause})
}

type hibernateRequest struct {
	WakeUp bool   `json:"wakeUp"`
	Source string `json:"source"`
}

// hibernate implements spec §4.6 "hibernate(wakeUp, source)".
func (s *Server) hibernate(c *gin.Context) {
	var req hibernateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.mgr.Hibernate(req.WakeUp, req.Source)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
