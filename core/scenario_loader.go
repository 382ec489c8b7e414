package core

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"
)

// QueryPair names a (source, destination) routing query the simulator
// answers every tick.
type QueryPair struct {
	Source int `json:"source"`
	Dest   int `json:"dest"`
}

// RunConfig carries the per-run tunables of a scenario.
type RunConfig struct {
	GridMode        bool
	MaxRangeM       float64
	Alpha           float64
	Beta            float64
	PacketsPerTick  int
	SNRJitterDB     float64
	LossEventMaxAge time.Duration
	MaxSNRSamples   int
	FieldX          float64
	FieldY          float64
	OriginLatDeg    float64
	OriginLonDeg    float64
	Queries         []QueryPair
}

// Scenario is a fully resolved simulation setup: stations with mobility
// attached, the shared radio model, and run tunables with defaults applied.
type Scenario struct {
	Nodes []*Node
	Radio RadioModel
	Run   RunConfig
}

// Internal JSON shapes, kept unexported so the on-disk format can evolve
// independently of the core types.
type scenarioJSON struct {
	Nodes []nodeJSON  `json:"nodes"`
	Radio *RadioModel `json:"radio"`
	Run   runJSON     `json:"run"`
}

type nodeJSON struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Blackhole bool    `json:"blackhole"`

	// Motion is "static" (default), "waypoint", or "orbital".
	Motion   string  `json:"motion"`
	SpeedMps float64 `json:"speed_mps"`
	TLE1     string  `json:"tle1"`
	TLE2     string  `json:"tle2"`
}

type runJSON struct {
	GridMode         bool        `json:"grid_mode"`
	MaxRangeM        float64     `json:"max_range_m"`
	Alpha            float64     `json:"alpha"`
	Beta             float64     `json:"beta"`
	PacketsPerTick   int         `json:"packets_per_tick"`
	SNRJitterDB      float64     `json:"snr_jitter_db"`
	LossEventMaxAgeS float64     `json:"loss_event_max_age_s"`
	MaxSNRSamples    int         `json:"max_snr_samples"`
	FieldXM          float64     `json:"field_x_m"`
	FieldYM          float64     `json:"field_y_m"`
	OriginLatDeg     float64     `json:"origin_lat_deg"`
	OriginLonDeg     float64     `json:"origin_lon_deg"`
	Queries          []QueryPair `json:"queries"`
}

// LoadScenario reads a JSON scenario from r and resolves it into nodes,
// radio parameters, and run tunables. Mobility models that need randomness
// share the provided source so runs are reproducible from a seed.
//
// It fails on structural problems (duplicate or missing node IDs, unknown
// motion kinds, orbital nodes without a TLE) and fills unset numeric fields
// with the documented defaults.
func LoadScenario(r io.Reader, rng *rand.Rand) (*Scenario, error) {
	var payload scenarioJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}
	if len(payload.Nodes) == 0 {
		return nil, fmt.Errorf("LoadScenario: scenario has no nodes")
	}

	radio := DefaultRadioModel()
	if payload.Radio != nil {
		radio = *payload.Radio
	}

	run := RunConfig{
		GridMode:        payload.Run.GridMode,
		MaxRangeM:       payload.Run.MaxRangeM,
		Alpha:           payload.Run.Alpha,
		Beta:            payload.Run.Beta,
		PacketsPerTick:  payload.Run.PacketsPerTick,
		SNRJitterDB:     payload.Run.SNRJitterDB,
		LossEventMaxAge: time.Duration(payload.Run.LossEventMaxAgeS * float64(time.Second)),
		MaxSNRSamples:   payload.Run.MaxSNRSamples,
		FieldX:          payload.Run.FieldXM,
		FieldY:          payload.Run.FieldYM,
		OriginLatDeg:    payload.Run.OriginLatDeg,
		OriginLonDeg:    payload.Run.OriginLonDeg,
		Queries:         payload.Run.Queries,
	}
	if run.MaxRangeM <= 0 {
		run.MaxRangeM = radio.MaxRangeM
	}
	if run.Alpha == 0 {
		run.Alpha = DefaultAlpha
	}
	if run.Beta == 0 {
		run.Beta = DefaultBeta
	}
	if run.PacketsPerTick <= 0 {
		run.PacketsPerTick = 50
	}
	if run.LossEventMaxAge <= 0 {
		run.LossEventMaxAge = 60 * time.Second
	}
	if run.FieldX <= 0 {
		run.FieldX = 500
	}
	if run.FieldY <= 0 {
		run.FieldY = 500
	}

	seen := make(map[int]bool, len(payload.Nodes))
	nodes := make([]*Node, 0, len(payload.Nodes))
	for _, js := range payload.Nodes {
		if seen[js.ID] {
			return nil, fmt.Errorf("LoadScenario: duplicate node id %d", js.ID)
		}
		seen[js.ID] = true

		node := &Node{
			ID:        js.ID,
			Name:      js.Name,
			Position:  Vec3{X: js.X, Y: js.Y, Z: js.Z},
			Blackhole: js.Blackhole,
		}

		motion, err := motionFromSpec(js, run, rng)
		if err != nil {
			return nil, err
		}
		node.Motion = motion
		nodes = append(nodes, node)
	}

	for _, q := range run.Queries {
		if !seen[q.Source] || !seen[q.Dest] {
			return nil, fmt.Errorf("LoadScenario: query %d -> %d references unknown node", q.Source, q.Dest)
		}
	}

	return &Scenario{Nodes: nodes, Radio: radio, Run: run}, nil
}

// motionFromSpec maps the JSON motion kind to a MotionModel. Unknown kinds
// are an error rather than a silent default: a typo in a mobility spec
// would otherwise quietly freeze a node.
func motionFromSpec(js nodeJSON, run RunConfig, rng *rand.Rand) (MotionModel, error) {
	switch strings.ToLower(strings.TrimSpace(js.Motion)) {
	case "", "static":
		return StaticMotion{}, nil
	case "waypoint":
		speed := js.SpeedMps
		if speed <= 0 {
			speed = 1.5 // walking pace
		}
		return NewRandomWaypointMotion(run.FieldX, run.FieldY, speed, rng), nil
	case "orbital":
		if js.TLE1 == "" || js.TLE2 == "" {
			return nil, fmt.Errorf("LoadScenario: orbital node %d requires tle1 and tle2", js.ID)
		}
		return NewOrbitalRelayMotion(js.TLE1, js.TLE2, run.OriginLatDeg, run.OriginLonDeg), nil
	default:
		return nil, fmt.Errorf("LoadScenario: node %d has unknown motion kind %q", js.ID, js.Motion)
	}
}
