package core

import (
	"math/rand"
	"strings"
	"testing"
	"time"
)

func loadScenarioString(t *testing.T, doc string) (*Scenario, error) {
	t.Helper()
	return LoadScenario(strings.NewReader(doc), rand.New(rand.NewSource(1)))
}

func TestLoadScenarioAppliesDefaults(t *testing.T) {
	sc, err := loadScenarioString(t, `{
		"nodes": [
			{"id": 0, "name": "alpha"},
			{"id": 1, "name": "bravo", "x": 100, "blackhole": true}
		],
		"run": {"queries": [{"source": 0, "dest": 1}]}
	}`)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}

	if len(sc.Nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(sc.Nodes))
	}
	if !sc.Nodes[1].Blackhole || sc.Nodes[0].Blackhole {
		t.Fatalf("blackhole flags wrong: %+v", sc.Nodes)
	}
	if _, ok := sc.Nodes[0].Motion.(StaticMotion); !ok {
		t.Fatalf("default motion = %T, want StaticMotion", sc.Nodes[0].Motion)
	}

	if sc.Radio != DefaultRadioModel() {
		t.Fatalf("radio = %+v, want defaults", sc.Radio)
	}
	if sc.Run.MaxRangeM != DefaultRadioModel().MaxRangeM {
		t.Fatalf("MaxRangeM = %v, want radio default", sc.Run.MaxRangeM)
	}
	if sc.Run.Alpha != DefaultAlpha || sc.Run.Beta != DefaultBeta {
		t.Fatalf("alpha/beta = %v/%v, want defaults", sc.Run.Alpha, sc.Run.Beta)
	}
	if sc.Run.PacketsPerTick != 50 {
		t.Fatalf("PacketsPerTick = %d, want 50", sc.Run.PacketsPerTick)
	}
	if sc.Run.LossEventMaxAge != 60*time.Second {
		t.Fatalf("LossEventMaxAge = %v, want 60s", sc.Run.LossEventMaxAge)
	}
	if sc.Run.FieldX != 500 || sc.Run.FieldY != 500 {
		t.Fatalf("field = %vx%v, want 500x500", sc.Run.FieldX, sc.Run.FieldY)
	}
}

func TestLoadScenarioExplicitValuesWin(t *testing.T) {
	sc, err := loadScenarioString(t, `{
		"nodes": [{"id": 0}],
		"radio": {"frequency_ghz": 5.8, "tx_power_dbm": 17, "max_range_m": 80},
		"run": {"max_range_m": 60, "alpha": 2, "beta": 500, "packets_per_tick": 10,
		        "loss_event_max_age_s": 5, "grid_mode": true}
	}`)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}

	if sc.Radio.FrequencyGHz != 5.8 || sc.Radio.TxPowerDBm != 17 {
		t.Fatalf("radio = %+v", sc.Radio)
	}
	if sc.Run.MaxRangeM != 60 {
		t.Fatalf("MaxRangeM = %v, want 60 (run overrides radio)", sc.Run.MaxRangeM)
	}
	if sc.Run.Alpha != 2 || sc.Run.Beta != 500 {
		t.Fatalf("alpha/beta = %v/%v", sc.Run.Alpha, sc.Run.Beta)
	}
	if sc.Run.PacketsPerTick != 10 {
		t.Fatalf("PacketsPerTick = %d", sc.Run.PacketsPerTick)
	}
	if sc.Run.LossEventMaxAge != 5*time.Second {
		t.Fatalf("LossEventMaxAge = %v", sc.Run.LossEventMaxAge)
	}
	if !sc.Run.GridMode {
		t.Fatalf("GridMode = false, want true")
	}
}

func TestLoadScenarioMotionKinds(t *testing.T) {
	sc, err := loadScenarioString(t, `{
		"nodes": [
			{"id": 0, "motion": "static"},
			{"id": 1, "motion": "waypoint"},
			{"id": 2, "motion": "waypoint", "speed_mps": 4},
			{"id": 3, "motion": "orbital",
			 "tle1": "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990",
			 "tle2": "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"}
		]
	}`)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}

	if _, ok := sc.Nodes[0].Motion.(StaticMotion); !ok {
		t.Fatalf("node 0 motion = %T", sc.Nodes[0].Motion)
	}
	w1, ok := sc.Nodes[1].Motion.(*RandomWaypointMotion)
	if !ok {
		t.Fatalf("node 1 motion = %T", sc.Nodes[1].Motion)
	}
	if w1.SpeedMps != 1.5 {
		t.Fatalf("default waypoint speed = %v, want 1.5", w1.SpeedMps)
	}
	w2 := sc.Nodes[2].Motion.(*RandomWaypointMotion)
	if w2.SpeedMps != 4 {
		t.Fatalf("explicit waypoint speed = %v, want 4", w2.SpeedMps)
	}
	if _, ok := sc.Nodes[3].Motion.(*OrbitalRelayMotion); !ok {
		t.Fatalf("node 3 motion = %T", sc.Nodes[3].Motion)
	}
}

func TestLoadScenarioRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"not json", `{"nodes": [`},
		{"no nodes", `{"nodes": []}`},
		{"duplicate id", `{"nodes": [{"id": 1}, {"id": 1}]}`},
		{"unknown motion", `{"nodes": [{"id": 0, "motion": "teleport"}]}`},
		{"orbital without tle", `{"nodes": [{"id": 0, "motion": "orbital"}]}`},
		{"query unknown node", `{"nodes": [{"id": 0}], "run": {"queries": [{"source": 0, "dest": 9}]}}`},
	}
	for _, tc := range cases {
		if _, err := loadScenarioString(t, tc.doc); err == nil {
			t.Fatalf("%s: LoadScenario accepted malformed input", tc.name)
		}
	}
}
