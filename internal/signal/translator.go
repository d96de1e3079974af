// Package signal translates a raw world-state sample into a normalised
// homeostasis signal vector. It is a pure function package: no state, no
// I/O, no imputation. A signal whose inputs are absent is omitted from the
// output rather than defaulted.
package signal

import (
	"math"

	"github.com/conscious-bot/reflexcore/internal/worldstate"
)

// Vector is the normalised 0-1 homeostasis view of a sample. Every field is
// a pointer: nil means "could not be computed from the sample provided".
type Vector struct {
	Health             *float64 // satisfaction: 1 = good
	Hunger             *float64 // deficit: 1 = urgent
	Energy             *float64 // satisfaction
	Safety             *float64 // satisfaction
	DefensiveReadiness *float64 // satisfaction
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ptr(v float64) *float64 {
	return &v
}

// Translate maps a world sample to a partial signal vector, per §4.2.
func Translate(s *worldstate.Sample) Vector {
	var out Vector
	if s == nil {
		return out
	}

	var healthSignal, hungerSignal *float64

	if s.Health != nil {
		v := round2(clamp(*s.Health/20.0, 0, 1))
		healthSignal = &v
		out.Health = ptr(v)
	}

	if s.Food != nil {
		v := round2(clamp(1-float64(*s.Food)/20.0, 0, 1))
		hungerSignal = &v
		out.Hunger = ptr(v)
	}

	if healthSignal != nil && hungerSignal != nil {
		energy := round2(clamp((*healthSignal+(1-*hungerSignal))/2.0, 0, 1))
		out.Energy = ptr(energy)
	}

	if s.NearbyHostiles != nil && s.TimeOfDay != nil {
		nightPenalty := 0.0
		if worldstate.IsNight(*s.TimeOfDay) {
			nightPenalty = 0.1
		}
		safety := round2(clamp(0.9-0.15*float64(*s.NearbyHostiles)-nightPenalty, 0, 1))
		out.Safety = ptr(safety)
	}

	if s.NearbyHostiles != nil {
		readiness := round2(clamp(1-math.Min(float64(*s.NearbyHostiles)/5.0, 1), 0, 1))
		out.DefensiveReadiness = ptr(readiness)
	}

	return out
}
