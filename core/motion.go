package core

import (
	"math"
	"math/rand"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// MotionModel updates a node's position for a given simulation time.
type MotionModel interface {
	UpdatePosition(simTime time.Time, n *Node)
}

// StaticMotion leaves the node where the scenario placed it.
type StaticMotion struct{}

// UpdatePosition for static motion does nothing.
func (StaticMotion) UpdatePosition(time.Time, *Node) {}

// RandomWaypointMotion implements the classic random-waypoint mobility
// model: pick a waypoint uniformly inside the field, walk toward it at a
// fixed speed, pick a new one on arrival. All randomness comes from the
// injected source so runs are reproducible.
type RandomWaypointMotion struct {
	FieldX   float64 // field extent along x, metres
	FieldY   float64 // field extent along y, metres
	SpeedMps float64

	rng         *rand.Rand
	waypoint    Vec3
	hasWaypoint bool
	lastTime    time.Time
}

// NewRandomWaypointMotion constructs a waypoint walker over a FieldX×FieldY
// field.
func NewRandomWaypointMotion(fieldX, fieldY, speedMps float64, rng *rand.Rand) *RandomWaypointMotion {
	return &RandomWaypointMotion{
		FieldX:   fieldX,
		FieldY:   fieldY,
		SpeedMps: speedMps,
		rng:      rng,
	}
}

// UpdatePosition advances the node toward the current waypoint by
// speed × elapsed-sim-time. The first call only records the time base.
func (m *RandomWaypointMotion) UpdatePosition(simTime time.Time, n *Node) {
	if m.lastTime.IsZero() {
		m.lastTime = simTime
		return
	}
	dt := simTime.Sub(m.lastTime).Seconds()
	m.lastTime = simTime
	if dt <= 0 {
		return
	}

	if !m.hasWaypoint {
		m.pickWaypoint()
	}

	to := m.waypoint.Sub(n.Position)
	dist := to.Norm()
	step := m.SpeedMps * dt
	if dist <= step {
		n.Position = m.waypoint
		m.pickWaypoint()
		return
	}
	n.Position = Vec3{
		X: n.Position.X + to.X/dist*step,
		Y: n.Position.Y + to.Y/dist*step,
		Z: n.Position.Z + to.Z/dist*step,
	}
}

func (m *RandomWaypointMotion) pickWaypoint() {
	m.waypoint = Vec3{
		X: m.rng.Float64() * m.FieldX,
		Y: m.rng.Float64() * m.FieldY,
	}
	m.hasWaypoint = true
}

// OrbitalRelayMotion models a high-altitude relay (e.g. a LEO transponder
// backhauling a ground mesh) by propagating a TLE with SGP4 and projecting
// the ECEF position into the east-north-up frame anchored at the field
// origin. Positions come out in metres like every other node, so the relay
// participates in range-based topology like any station.
type OrbitalRelayMotion struct {
	sat          satellite.Satellite
	originLatRad float64
	originLonRad float64
}

// NewOrbitalRelayMotion constructs the relay model from two TLE lines and
// the geodetic coordinates of the field origin in degrees.
func NewOrbitalRelayMotion(tle1, tle2 string, originLatDeg, originLonDeg float64) *OrbitalRelayMotion {
	return &OrbitalRelayMotion{
		sat:          satellite.TLEToSat(tle1, tle2, satellite.GravityWGS72),
		originLatRad: originLatDeg * math.Pi / 180,
		originLonRad: originLonDeg * math.Pi / 180,
	}
}

// UpdatePosition propagates the relay to simTime and stores its ENU
// position on the node.
func (m *OrbitalRelayMotion) UpdatePosition(simTime time.Time, n *Node) {
	year, month, day := simTime.Date()
	hour, min, sec := simTime.Clock()

	posECI, _ := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	n.Position = m.toENU(posECEF)
}

// toENU converts an ECEF position in kilometres to the local east-north-up
// frame of the field origin, in metres. A spherical Earth is sufficient at
// the fidelity of this simulator.
func (m *OrbitalRelayMotion) toENU(ecefKm satellite.Vector3) Vec3 {
	const earthRadiusKm = 6371.0

	sinLat, cosLat := math.Sincos(m.originLatRad)
	sinLon, cosLon := math.Sincos(m.originLonRad)

	origin := satellite.Vector3{
		X: earthRadiusKm * cosLat * cosLon,
		Y: earthRadiusKm * cosLat * sinLon,
		Z: earthRadiusKm * sinLat,
	}
	dx := ecefKm.X - origin.X
	dy := ecefKm.Y - origin.Y
	dz := ecefKm.Z - origin.Z

	east := -sinLon*dx + cosLon*dy
	north := -sinLat*cosLon*dx - sinLat*sinLon*dy + cosLat*dz
	up := cosLat*cosLon*dx + cosLat*sinLon*dy + sinLat*dz

	const kmToM = 1000.0
	return Vec3{X: east * kmToM, Y: north * kmToM, Z: up * kmToM}
}
