package core

import "sort"

// Environment holds the per-scenario constants selected at session start.
type Environment struct {
	Key              string  `json:"key"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	HazardType       string  `json:"hazardType"`
	DamageMultiplier float64 `json:"damageMultiplier"`

	// Reference site the arena origin is pinned to when geo-referencing output.
	OriginLongitude float64 `json:"originLongitude"`
	OriginLatitude  float64 `json:"originLatitude"`

	// Palette used by the software frame source, 0xRRGGBB.
	SkyColor    uint32 `json:"-"`
	GroundColor uint32 `json:"-"`
	RubbleColor uint32 `json:"-"`
	HazardColor uint32 `json:"-"`
}

// Environments are the scenarios a session can be started in, keyed by Environment.Key.
var Environments = map[string]Environment{
	"earthquake": {
		Key:              "earthquake",
		Name:             "Earthquake Zone",
		Description:      "Unstable ground. Buildings collapsed.",
		HazardType:       "unstable",
		DamageMultiplier: 1.5,
		OriginLongitude:  36.9371,
		OriginLatitude:   37.5858,
		SkyColor:         0x8B7355,
		GroundColor:      0x8B4513,
		RubbleColor:      0x654321,
		HazardColor:      0xA0522D,
	},
	"tsunami": {
		Key:              "tsunami",
		Name:             "Tsunami Zone",
		Description:      "Flooded areas. Water hazards.",
		HazardType:       "water",
		DamageMultiplier: 1.2,
		OriginLongitude:  95.3238,
		OriginLatitude:   5.5483,
		SkyColor:         0x4682B4,
		GroundColor:      0x4682B4,
		RubbleColor:      0x708090,
		HazardColor:      0x1E90FF,
	},
	"wildfire": {
		Key:              "wildfire",
		Name:             "Wildfire Zone",
		Description:      "Spreading flames. High heat.",
		HazardType:       "fire",
		DamageMultiplier: 2.0,
		OriginLongitude:  -121.6219,
		OriginLatitude:   39.7596,
		SkyColor:         0xFF4500,
		GroundColor:      0x8B0000,
		RubbleColor:      0x2F1F1F,
		HazardColor:      0xFF0000,
	},
}

// LookupEnvironment returns the environment registered under key.
func LookupEnvironment(key string) (Environment, bool) {
	env, ok := Environments[key]
	return env, ok
}

// EnvironmentKeys returns the registered keys in sorted order.
func EnvironmentKeys() []string {
	keys := make([]string, 0, len(Environments))
	for k := range Environments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
