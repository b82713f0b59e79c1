package effect

import (
	"log/slog"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/hyperhdr-core/hyperhdr/internal/color"
)

// luaAnimation runs a Lua script once per tick, generalizing the teacher's
// RenderLayer.execute: a fresh *lua.LState per tick (the teacher's own
// choice, cheap relative to a frame budget measured in milliseconds), with
// get_time/get_layer_elapsed_time/get_pixel/set_pixel bound over the
// instance's actual LED count instead of a package-level constant.
type luaAnimation struct {
	script  string
	started time.Time
	log     *slog.Logger
}

func newLuaAnimation(script string) *luaAnimation {
	return &luaAnimation{script: script, log: slog.Default()}
}

// bindAPI exposes the Lua surface used by effect scripts (spec §4.4):
// get_time(), get_layer_elapsed_time(), get_pixel(index), set_pixel(index,r,g,b),
// and led_count(), generalizing the teacher's package-level LEDCount global
// into a per-call closure over buf.
func bindAPI(L *lua.LState, buf []color.RGB, pipelineTime, layerElapsed float64) {
	ledCount := len(buf)

	L.SetGlobal("led_count", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(ledCount))
		return 1
	}))

	L.SetGlobal("get_time", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(pipelineTime))
		return 1
	}))

	L.SetGlobal("get_layer_elapsed_time", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(layerElapsed))
		return 1
	}))

	L.SetGlobal("get_pixel", L.NewFunction(func(L *lua.LState) int {
		index := int(L.CheckNumber(1))
		if index >= 0 && index < ledCount {
			c := buf[index]
			L.Push(lua.LNumber(float64(c.R) / 255.0))
			L.Push(lua.LNumber(float64(c.G) / 255.0))
			L.Push(lua.LNumber(float64(c.B) / 255.0))
			return 3
		}
		L.Push(lua.LNumber(0))
		L.Push(lua.LNumber(0))
		L.Push(lua.LNumber(0))
		return 3
	}))

	L.SetGlobal("set_pixel", L.NewFunction(func(L *lua.LState) int {
		index := int(L.CheckNumber(1))
		r := clampUnit(float64(L.CheckNumber(2)))
		g := clampUnit(float64(L.CheckNumber(3)))
		b := clampUnit(float64(L.CheckNumber(4)))
		if index >= 0 && index < ledCount {
			buf[index] = color.RGB{
				R: uint8(r * 255),
				G: uint8(g * 255),
				B: uint8(b * 255),
			}
		}
		return 0
	}))
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (a *luaAnimation) Step(buf []color.RGB, elapsed time.Duration) bool {
	if a.started.IsZero() {
		a.started = time.Now()
	}
	L := lua.NewState()
	defer L.Close()

	bindAPI(L, buf, elapsed.Seconds(), time.Since(a.started).Seconds())

	if err := L.DoString(a.script); err != nil {
		// A misbehaving script does not terminate the effect; it simply
		// leaves buf untouched for this tick (spec §4.4 does not define
		// script-error semantics).
		a.log.Warn("effect script failed", "err", err)
	}
	return false
}

// NewLuaAnimation builds an Animation that runs script once per tick.
func NewLuaAnimation(script string) Animation {
	return newLuaAnimation(script)
}
