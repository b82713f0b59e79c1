package api

import (
	"strings"

	"github.com/hyperhdr-core/hyperhdr/internal/instance"
	"github.com/hyperhdr-core/hyperhdr/internal/settings"
)

// parseComponentKind maps the URL segment used in
// POST /api/instances/:index/components/:kind to a ComponentKind, the HTTP
// half of spec §6's componentStateChangeRequest(kind, enable).
func parseComponentKind(s string) (instance.ComponentKind, bool) {
	switch strings.ToUpper(s) {
	case "ALL":
		return instance.ALL, true
	case "HDR":
		return instance.HDR, true
	case "SMOOTHING":
		return instance.SMOOTHING, true
	case "BLACKBORDER":
		return instance.BLACKBORDER, true
	case "FORWARDER":
		return instance.FORWARDER, true
	case "VIDEOGRABBER":
		return instance.VIDEOGRABBER, true
	case "SYSTEMGRABBER":
		return instance.SYSTEMGRABBER, true
	case "COLOR":
		return instance.COLOR, true
	case "IMAGE":
		return instance.IMAGE, true
	case "EFFECT":
		return instance.EFFECT, true
	case "LEDDEVICE":
		return instance.LEDDEVICE, true
	case "FLATBUFSERVER":
		return instance.FLATBUFSERVER, true
	case "RAWUDPSERVER":
		return instance.RAWUDPSERVER, true
	case "CEC":
		return instance.CEC, true
	case "PROTOSERVER":
		return instance.PROTOSERVER, true
	default:
		return 0, false
	}
}

// parseSettingsKind maps the URL segment used in
// POST /api/instances/:index/settings/:kind to a settings.Kind (spec §6
// "Settings updates").
func parseSettingsKind(s string) (settings.Kind, bool) {
	switch strings.ToUpper(s) {
	case "INSTCAPTURE":
		return settings.INSTCAPTURE, true
	case "COLOR":
		return settings.COLOR, true
	case "SMOOTHING":
		return settings.SMOOTHING, true
	case "DEVICE":
		return settings.DEVICE, true
	case "LEDS":
		return settings.LEDS, true
	case "BGEFFECT":
		return settings.BGEFFECT, true
	case "FGEFFECT":
		return settings.FGEFFECT, true
	default:
		return 0, false
	}
}
