// Response Handler, implementing spec.md §4.4. Grounded on
// original_source/core/quic_path_mtu_manager_part2.cpp's
// handle_probe_response and, for the lookup-then-dispatch shape,
// control-plane/internal/service/state_machine.go's ProcessProbeResult.
package pmtu

// OnProbeResponse consumes an asynchronous probe ack/nack. If probeID
// matches no registered probe it is a stale or duplicate response: logged
// and discarded, never fatal (spec.md §7, error kind 3). Otherwise the
// record is removed and the outcome is applied to whichever controller
// currently owns the direction — the Discovery Engine while InSearchPhase
// is true, or the Adaptive Controller's completion path otherwise.
func (m *Manager) OnProbeResponse(probeID uint32, success bool, isIncoming bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	direction := directionFromFlag(isIncoming)
	p := m.path(direction)
	rec, ok := m.registry(direction).take(probeID)
	if !ok {
		m.logger.Info("received response for unknown probe id",
			"trace_id", m.traceID,
			"probe_id", probeID,
			"direction", direction)
		m.metrics.recordUnknownProbe(direction)
		return
	}

	if success {
		m.applyProbeSuccess(direction, p, rec.size)
	} else {
		m.applyProbeFailure(direction, p, rec.size)
	}
}

// applyProbeSuccess runs the bookkeeping spec.md §4.1 requires on every
// successful probe, then hands off to the Discovery Engine's continuation
// only if the direction is actively searching. An adaptive probe's success
// is fully handled by the bookkeeping alone: the commit above already
// raised current_mtu, so there is nothing left to do.
func (m *Manager) applyProbeSuccess(direction Direction, p *PathState, size uint16) {
	if size > p.LastSuccessfulMTU {
		p.LastSuccessfulMTU = size
	}
	if direction == Outgoing {
		p.CurrentMTU = size
		m.publishMTU(direction, p)
	}
	p.ConsecutiveFailures = 0
	m.metrics.recordProbeAcked(direction)

	if !p.InSearchPhase {
		return
	}
	m.continueAfterSuccess(direction, p, size)
}

// applyProbeFailure runs the bookkeeping spec.md §4.1 requires on every
// failed probe. The blackhole predicate is evaluated unconditionally, as
// in the source this package is grounded on: a run of adaptive-probe
// failures can assert a blackhole just as a run of bisection failures can.
// Bisection continuation, however, only applies while actively searching.
func (m *Manager) applyProbeFailure(direction Direction, p *PathState, size uint16) {
	p.ConsecutiveFailures++
	m.metrics.recordProbeNacked(direction)

	if m.isBlackhole(p) {
		m.enterBlackhole(direction, p)
		return
	}
	if !p.InSearchPhase {
		return
	}
	m.continueAfterFailure(direction, p, size)
}

// OnProbeNackOrTimeout is the entry point the timeout engine calls when a
// probe receives no response within ProbeTimeout: it is treated identically
// to an explicit nack (spec.md §4.1, §5 "Cancellation & timeouts").
func (m *Manager) OnProbeNackOrTimeout(probeID uint32, isIncoming bool) {
	m.OnProbeResponse(probeID, false, isIncoming)
}

func directionFromFlag(isIncoming bool) Direction {
	if isIncoming {
		return Incoming
	}
	return Outgoing
}
