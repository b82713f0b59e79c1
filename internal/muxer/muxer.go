// Package muxer implements the preemptive priority scheduler selecting which
// source is currently visible within an instance (spec §4.1).
package muxer

import (
	"sync"
	"time"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
	"github.com/hyperhdr-core/hyperhdr/internal/reducer"
)

// ComponentKind names the kind of Muxer input (spec §3 "Input").
type ComponentKind int

const (
	ComponentInvalid ComponentKind = iota
	ComponentCapture
	ComponentEffect
	ComponentColor
	ComponentImage
	ComponentNetwork
)

// Sentinel priority constants, taken from
// original_source/include/base/Muxer.h (LOWEST_PRIORITY) and
// SPEC_FULL.md §3 (effect priority band).
const (
	LowestPriority       = 255
	HighestEffectPriority = 128
	LowestEffectPriority  = 253
	BackgroundEffectPriority = 254
)

// InputInfo mirrors original_source/include/base/Muxer.h's InputInfo struct
// (spec §3 "Input").
type InputInfo struct {
	Priority     uint8
	Component    ComponentKind
	Origin       string
	Owner        string
	SmoothingCfg uint
	StaticColor  color.RGB
	Image        *reducer.Frame
	Deadline     time.Time
	Active       bool
	generation   uint64
}

// Muxer selects, at each tick, the single visible source among registered
// inputs (spec §4.1).
type Muxer struct {
	mu sync.Mutex

	inputs      map[uint8]*InputInfo
	current     uint8
	previous    uint8
	manualSel   uint8
	autoSelect  bool

	VisiblePriorityChanged  chan uint8
	VisibleComponentChanged chan ComponentKind
	prevComponent           ComponentKind
}

// New returns a Muxer with the permanent black sentinel registered at
// LowestPriority (spec §3 "the lowest priority (255) is a permanent
// sentinel holding black").
func New() *Muxer {
	m := &Muxer{
		inputs:                  make(map[uint8]*InputInfo),
		current:                 LowestPriority,
		previous:                LowestPriority,
		autoSelect:              true,
		VisiblePriorityChanged:  make(chan uint8, 8),
		VisibleComponentChanged: make(chan ComponentKind, 8),
	}
	m.inputs[LowestPriority] = &InputInfo{
		Priority:    LowestPriority,
		Component:   ComponentColor,
		Origin:      "System",
		StaticColor: color.Black,
		Active:      true,
	}
	return m
}

// RegisterInput registers (or overwrites) an input at priority. Idempotent
// on priority: re-registering the same priority overwrites origin/owner
// without affecting current visibility unless this becomes the new highest
// priority (spec §4.1 "registerInput").
func (m *Muxer) RegisterInput(priority uint8, component ComponentKind, origin string, staticColor color.RGB, smoothingCfg uint, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if priority == LowestPriority {
		return // sentinel is never removed/overwritten via registration
	}
	if in, ok := m.inputs[priority]; ok {
		in.Component = component
		in.Origin = origin
		in.Owner = owner
		in.SmoothingCfg = smoothingCfg
		m.recompute(time.Now())
		return
	}
	m.inputs[priority] = &InputInfo{
		Priority:     priority,
		Component:    component,
		Origin:       origin,
		Owner:        owner,
		SmoothingCfg: smoothingCfg,
		StaticColor:  staticColor,
		Active:       false,
	}
	m.recompute(time.Now())
}

// SetInput marks the input active with a static color and refreshes its
// deadline (spec §4.1 "setInput"). timeout_ms <= 0 means infinite.
func (m *Muxer) SetInput(priority uint8, colors color.RGB, timeoutMs int64) bool {
	return m.setInputCommon(priority, timeoutMs, func(in *InputInfo) {
		in.StaticColor = colors
		in.Image = nil
	})
}

// SetInputImage is SetInput carrying an image handle for image-bearing
// components (spec §4.1 "setInputImage").
func (m *Muxer) SetInputImage(priority uint8, image *reducer.Frame, timeoutMs int64) bool {
	return m.setInputCommon(priority, timeoutMs, func(in *InputInfo) {
		in.Image = image
	})
}

func (m *Muxer) setInputCommon(priority uint8, timeoutMs int64, apply func(*InputInfo)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.inputs[priority]
	if !ok {
		// spec §4.1 "Failure semantics": setInput on an unregistered
		// priority is a no-op (with a warning, left to the caller's logger).
		return false
	}
	apply(in)
	in.Active = true
	in.generation++
	if timeoutMs <= 0 {
		in.Deadline = time.Time{}
	} else {
		in.Deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	}
	m.recompute(time.Now())
	return true
}

// SetInputInactive marks an input inactive without removing its registration
// (spec §4.1 "setInputInactive").
func (m *Muxer) SetInputInactive(priority uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in, ok := m.inputs[priority]; ok {
		in.Active = false
	}
	m.recompute(time.Now())
}

// ClearInput removes a registration entirely. The sentinel is never removed
// (spec §4.1 "clearInput").
func (m *Muxer) ClearInput(priority uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if priority == LowestPriority {
		return
	}
	delete(m.inputs, priority)
	m.recompute(time.Now())
}

// SetSourceAutoSelectEnabled toggles whether visibility follows the lowest
// active priority (true) or stays pinned to the manually selected priority
// even if expired (false) (spec §4.1 "setSourceAutoSelectEnabled").
func (m *Muxer) SetSourceAutoSelectEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoSelect = enabled
	m.recompute(time.Now())
}

// SetPriority pins the manually selected priority used when auto-select is
// disabled.
func (m *Muxer) SetPriority(priority uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inputs[priority]; !ok && priority != LowestPriority {
		return false
	}
	m.manualSel = priority
	m.recompute(time.Now())
	return true
}

// Tick expires timed-out inputs and recomputes visibility (spec §4.1
// "Scheduling rule"). Call on a steady ~100ms timer and on every setInput*.
func (m *Muxer) Tick(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recompute(now)
}

// recompute drops expired inputs (marks inactive, does not remove) then
// selects visible = min(priority : active) union sentinel (spec §4.1).
// Callers must hold m.mu.
func (m *Muxer) recompute(now time.Time) {
	for _, in := range m.inputs {
		if in.Priority == LowestPriority {
			continue
		}
		if in.Active && !in.Deadline.IsZero() && now.After(in.Deadline) {
			in.Active = false
		}
	}

	var visible uint8 = LowestPriority
	if !m.autoSelect {
		// The manually pinned priority wins even if it has expired (spec
		// §4.1 "setSourceAutoSelectEnabled"): expiry above may have flipped
		// Active to false, but visibility selection ignores that here.
		if _, ok := m.inputs[m.manualSel]; ok {
			visible = m.manualSel
		}
	} else {
		for p, in := range m.inputs {
			if in.Active && p < visible {
				visible = p
			}
		}
	}

	if visible != m.current {
		m.previous = m.current
		m.current = visible
		select {
		case m.VisiblePriorityChanged <- visible:
		default:
		}
	}

	comp := m.inputs[visible].Component
	if comp != m.prevComponent {
		m.prevComponent = comp
		select {
		case m.VisibleComponentChanged <- comp:
		default:
		}
	}
}

// GetCurrentPriority returns the currently visible priority (spec §4.1
// "getCurrentPriority").
func (m *Muxer) GetCurrentPriority() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// GetPreviousPriority returns the priority visible before the last change.
func (m *Muxer) GetPreviousPriority() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}

// HasPriority reports whether a priority is currently registered.
func (m *Muxer) HasPriority(priority uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inputs[priority]
	return ok
}

// CurrentColor returns the static color of the visible input.
func (m *Muxer) CurrentColor() color.RGB {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs[m.current].StaticColor
}

// GetInputInfo returns a copy of the registration at priority and whether it exists.
func (m *Muxer) GetInputInfo(priority uint8) (InputInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.inputs[priority]
	if !ok {
		return InputInfo{}, false
	}
	return *in, true
}

// Priorities returns all registered priorities, ascending.
func (m *Muxer) Priorities() []uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint8, 0, len(m.inputs))
	for p := range m.inputs {
		out = append(out, p)
	}
	// simple insertion sort; input counts per instance are small (<=256)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
