// Package pmtu implements the Path MTU Discovery core of a QUIC-based
// obfuscating transport.
//
// # Design Principles
//
// 1. Single writer: every mutating entry point serializes on the Manager's
//    mutex. The workload is event-driven and low-rate, so one lock is
//    sufficient — see Manager for the full ordering discussion.
// 2. Fail-operational: every recoverable fault degrades the MTU but never
//    drops the transport below min_mtu. A blackhole reverts to
//    last_successful_mtu; an adaptive decrease may go below it.
// 3. Narrow collaborators: the core never talks to the network or a clock
//    source directly. It reaches them only through the ConnectionAdapter
//    and Clock interfaces it declares, so it stays testable without a real
//    transport; logging goes to an injected *slog.Logger.
package pmtu

import "fmt"

// Direction identifies which side of the path an MTU decision belongs to.
type Direction int

const (
	// Outgoing is the sender-to-receiver direction, owned locally.
	Outgoing Direction = iota
	// Incoming is the receiver-to-sender direction, discovered on behalf
	// of the peer.
	Incoming
)

// String implements fmt.Stringer for logging.
func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// MtuStatus is the coarse lifecycle state of a PathState.
type MtuStatus string

const (
	// StatusInitial means discovery has not yet run for this direction.
	StatusInitial MtuStatus = "initial"
	// StatusSearching means the Discovery Engine currently owns this
	// direction's state.
	StatusSearching MtuStatus = "searching"
	// StatusValidated means discovery converged and current_mtu is in use.
	StatusValidated MtuStatus = "validated"
	// StatusBlackhole means persistent silent drops were detected and the
	// MTU was reverted to the last known-good size.
	StatusBlackhole MtuStatus = "blackhole"
	// StatusDegraded is reserved for a future, explicitly-requested
	// degraded mode; nothing in this package currently assigns it, but it
	// is part of the state vocabulary named by the data model.
	StatusDegraded MtuStatus = "degraded"
)

// PathState holds the per-direction probing configuration, history, and
// status described by the data model. One instance exists for Outgoing and
// one for Incoming; both are owned exclusively by the Manager and mutated
// only under its lock.
type PathState struct {
	// CurrentMTU is the currently active MTU for this direction.
	CurrentMTU uint16
	// MinMTU is the floor below which the Manager never drops.
	MinMTU uint16
	// MaxMTU is the ceiling for probing.
	MaxMTU uint16
	// StepSize is the initial increment for upward exploration.
	StepSize uint16
	// CurrentProbeMTU is the size of the probe most recently emitted.
	CurrentProbeMTU uint16
	// LastSuccessfulMTU is the highest size known to have been acknowledged.
	LastSuccessfulMTU uint16
	// ConsecutiveFailures counts unacknowledged probes since the last
	// success.
	ConsecutiveFailures uint32
	// MTUValidated is true once discovery has converged for this direction.
	MTUValidated bool
	// InSearchPhase is true while the Discovery Engine owns this state.
	InSearchPhase bool
	// Status is the coarse lifecycle state.
	Status MtuStatus
}

// newPathState builds the initial PathState for a direction from Config.
func newPathState(cfg Config) *PathState {
	return &PathState{
		CurrentMTU:        cfg.MinMTU,
		MinMTU:            cfg.MinMTU,
		MaxMTU:            cfg.MaxMTU,
		StepSize:          cfg.StepSize,
		LastSuccessfulMTU: cfg.MinMTU,
		Status:            StatusInitial,
	}
}

// snapshot returns a value copy, safe to hand to callers outside the lock.
func (p *PathState) snapshot() PathState {
	return *p
}

// probeRecord is the (probe_id, probed_size) tuple tracked per in-flight
// probe. A probe's origin (discovery bisection vs. an adaptive
// exploration) is not tracked on the record itself: the Response Handler
// distinguishes the two purely by whether the direction is currently in
// search phase when the response arrives, matching the source this
// package is grounded on (see DESIGN.md Open Questions).
type probeRecord struct {
	size uint16
}
