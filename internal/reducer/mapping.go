package reducer

import "strings"

// Mapping selects the reduction algorithm applied per LED (spec §4.2
// "Reduction modes"). The advanced/weighted-mean mode is named mean-adv
// after original_source/include/base/ImageToLedsMap.h's getMeanAdvLedColor.
type Mapping int

const (
	MappingUnicolor Mapping = iota
	MappingMean
	MappingAdvanced
)

func (m Mapping) String() string {
	switch m {
	case MappingUnicolor:
		return "unicolor"
	case MappingAdvanced:
		return "mean-adv"
	default:
		return "mean"
	}
}

// ParseMapping round-trips Mapping.String(), mirroring
// ImageToLedManager::mappingTypeToInt/mappingTypeToStr.
func ParseMapping(s string) (Mapping, error) {
	switch strings.ToLower(s) {
	case "unicolor":
		return MappingUnicolor, nil
	case "mean-adv", "advanced", "weighted-mean":
		return MappingAdvanced, nil
	case "mean", "":
		return MappingMean, nil
	default:
		return MappingMean, errUnknownMapping(s)
	}
}

type errUnknownMapping string

func (e errUnknownMapping) Error() string { return "reducer: unknown mapping type " + string(e) }
