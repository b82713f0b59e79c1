// Package instance implements the per-pipeline Instance and the
// multi-instance Manager (spec §4.6), generalizing the teacher's
// PipelineManager (pipeline.go): its sync.Map of named layers becomes the
// Manager's mutex-guarded map of *Instance keyed by integer index, and its single
// global 60Hz time.Ticker becomes each Instance's own steady-tick loop.
package instance

import (
	"fmt"
	"sync"
)

// ComponentKind is the full control-surface set named in spec §6
// ("Component state").
type ComponentKind int

const (
	ALL ComponentKind = iota
	HDR
	SMOOTHING
	BLACKBORDER
	FORWARDER
	VIDEOGRABBER
	SYSTEMGRABBER
	COLOR
	IMAGE
	EFFECT
	LEDDEVICE
	FLATBUFSERVER
	RAWUDPSERVER
	CEC
	PROTOSERVER
)

var componentNames = map[ComponentKind]string{
	ALL:           "ALL",
	HDR:           "HDR",
	SMOOTHING:     "SMOOTHING",
	BLACKBORDER:   "BLACKBORDER",
	FORWARDER:     "FORWARDER",
	VIDEOGRABBER:  "VIDEOGRABBER",
	SYSTEMGRABBER: "SYSTEMGRABBER",
	COLOR:         "COLOR",
	IMAGE:         "IMAGE",
	EFFECT:        "EFFECT",
	LEDDEVICE:     "LEDDEVICE",
	FLATBUFSERVER: "FLATBUFSERVER",
	RAWUDPSERVER:  "RAWUDPSERVER",
	CEC:           "CEC",
	PROTOSERVER:   "PROTOSERVER",
}

func (k ComponentKind) String() string {
	if n, ok := componentNames[k]; ok {
		return n
	}
	return "UNKNOWN"
}

// allComponents lists every real component kind, excluding the ALL
// aggregate pseudo-kind (grounded on
// original_source/include/base/ComponentController.h's component table).
var allComponents = []ComponentKind{
	HDR, SMOOTHING, BLACKBORDER, FORWARDER, VIDEOGRABBER, SYSTEMGRABBER,
	COLOR, IMAGE, EFFECT, LEDDEVICE, FLATBUFSERVER, RAWUDPSERVER, CEC, PROTOSERVER,
}

// ComponentError explains why a component was auto-disabled rather than
// turned off by an explicit componentStateChangeRequest (spec §7
// "Component-state flips to 'disabled with reason'").
type ComponentError struct {
	Kind   ComponentKind
	Reason string
	Cause  error
}

func (e *ComponentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *ComponentError) Unwrap() error { return e.Cause }

// ComponentController tracks per-component enable state, with ALL=off
// saving every component's prior state and ALL=on restoring it (spec §6
// "Component state").
type ComponentController struct {
	mu      sync.Mutex
	enabled map[ComponentKind]bool
	saved   map[ComponentKind]bool
	lastErr map[ComponentKind]*ComponentError
	allOff  bool
}

// NewComponentController returns a controller with every real component
// enabled.
func NewComponentController() *ComponentController {
	c := &ComponentController{
		enabled: make(map[ComponentKind]bool),
		saved:   make(map[ComponentKind]bool),
		lastErr: make(map[ComponentKind]*ComponentError),
	}
	for _, k := range allComponents {
		c.enabled[k] = true
	}
	return c
}

// Disable turns kind off and records why, distinguishing an auto-disable
// (driver failures, signal loss) from a user's explicit
// componentStateChangeRequest(kind, false).
func (c *ComponentController) Disable(kind ComponentKind, cause *ComponentError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled[kind] = false
	c.lastErr[kind] = cause
}

// LastError reports the reason kind was last auto-disabled, or nil if it
// was never auto-disabled or has since been explicitly re-enabled.
func (c *ComponentController) LastError(kind ComponentKind) *ComponentError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr[kind]
}

// SetEnabled applies a componentStateChangeRequest(kind, enable) (spec §6).
// ALL=false snapshots every component's current state then disables all of
// them; ALL=true restores the snapshot.
func (c *ComponentController) SetEnabled(kind ComponentKind, enable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if kind == ALL {
		if !enable {
			for _, k := range allComponents {
				c.saved[k] = c.enabled[k]
				c.enabled[k] = false
			}
			c.allOff = true
		} else {
			for _, k := range allComponents {
				c.enabled[k] = c.saved[k]
			}
			c.allOff = false
		}
		return
	}

	c.enabled[kind] = enable
	if enable {
		// An explicit per-component enable while ALL is off also clears the
		// aggregate off state for that component's saved snapshot, so a
		// subsequent ALL=on does not stomp it back to disabled.
		c.saved[kind] = true
		delete(c.lastErr, kind)
	}
}

// Enabled reports a component's current state. ALL reports whether every
// real component is currently enabled.
func (c *ComponentController) Enabled(kind ComponentKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if kind == ALL {
		for _, k := range allComponents {
			if !c.enabled[k] {
				return false
			}
		}
		return true
	}
	return c.enabled[kind]
}

// States returns a snapshot of every real component's enable state.
func (c *ComponentController) States() map[ComponentKind]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[ComponentKind]bool, len(c.enabled))
	for k, v := range c.enabled {
		out[k] = v
	}
	return out
}
