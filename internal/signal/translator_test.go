package signal

import (
	"testing"

	"github.com/conscious-bot/reflexcore/internal/worldstate"
)

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }

func TestTranslateFullSample(t *testing.T) {
	s := &worldstate.Sample{
		Health:         f(20),
		Food:           i(10),
		TimeOfDay:      i(0),
		NearbyHostiles: i(2),
	}
	v := Translate(s)

	if v.Health == nil || *v.Health != 1.0 {
		t.Fatalf("expected health=1.0, got %v", v.Health)
	}
	if v.Hunger == nil || *v.Hunger != 0.5 {
		t.Fatalf("expected hunger=0.5, got %v", v.Hunger)
	}
	if v.Energy == nil || *v.Energy != 0.75 {
		t.Fatalf("expected energy=0.75, got %v", v.Energy)
	}
	if v.Safety == nil || *v.Safety != 0.6 {
		t.Fatalf("expected safety=0.6, got %v", v.Safety)
	}
	if v.DefensiveReadiness == nil || *v.DefensiveReadiness != 0.6 {
		t.Fatalf("expected defensiveReadiness=0.6, got %v", v.DefensiveReadiness)
	}
}

func TestTranslateNightPenalty(t *testing.T) {
	s := &worldstate.Sample{
		NearbyHostiles: i(0),
		TimeOfDay:      i(13000),
	}
	v := Translate(s)
	if v.Safety == nil || *v.Safety != 0.8 {
		t.Fatalf("expected safety=0.8 at night with no hostiles, got %v", v.Safety)
	}
}

func TestTranslateMissingFieldsAreOmittedNotImputed(t *testing.T) {
	v := Translate(&worldstate.Sample{})
	if v.Health != nil || v.Hunger != nil || v.Energy != nil || v.Safety != nil || v.DefensiveReadiness != nil {
		t.Fatalf("expected all-nil vector for empty sample, got %+v", v)
	}
}

func TestTranslateNilSample(t *testing.T) {
	v := Translate(nil)
	if v.Health != nil {
		t.Fatalf("expected zero value vector for nil sample")
	}
}

func TestTranslateSafetyRequiresTimeOfDay(t *testing.T) {
	s := &worldstate.Sample{NearbyHostiles: i(1)}
	v := Translate(s)
	if v.Safety != nil {
		t.Fatalf("expected safety to be omitted without timeOfDay, got %v", v.Safety)
	}
	if v.DefensiveReadiness == nil {
		t.Fatalf("expected defensiveReadiness computed from nearbyHostiles alone")
	}
}
