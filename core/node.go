package core

// Node is a simulated station in the ad-hoc network.
type Node struct {
	ID   int
	Name string

	// Position is the node's current location in the field-local frame,
	// in metres. Mobility models mutate it in place every tick.
	Position Vec3

	// Blackhole marks a node declared, out of band, to intentionally drop
	// traffic. The trust ledger pins such nodes low rather than learning
	// their behaviour.
	Blackhole bool

	// Motion advances Position over simulation time. Nil means static.
	Motion MotionModel
}
