package homeassistant

import (
	"strings"
)

// guessDeviceClass picks a binary_sensor device class from an input name.
// English and Italian terms are matched.
func guessDeviceClass(name string) string {
	name = strings.ToLower(name)

	switch {
	case containsAny(name, "pir", "motion", "movimento", "volumetric", "radar"):
		return "motion"
	case containsAny(name, "door", "porta", "portone", "ingresso", "entry"):
		return "door"
	case containsAny(name, "window", "finestra", "balcone"):
		return "window"
	case containsAny(name, "garage", "basculante"):
		return "garage_door"
	case containsAny(name, "smoke", "fumo", "fire", "incendio"):
		return "smoke"
	case containsAny(name, "gas"):
		return "gas"
	case containsAny(name, "water", "flood", "acqua", "allagamento"):
		return "moisture"
	case containsAny(name, "tamper", "sabotaggio"):
		return "tamper"
	case containsAny(name, "vibration", "shock", "vibrazione"):
		return "vibration"
	}

	return "motion"
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
