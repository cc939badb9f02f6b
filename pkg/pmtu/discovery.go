// Discovery Engine: binary-search convergence per direction, implementing
// spec.md §4.1. The continuation logic here — planning the next probe or
// finalizing — is invoked from response.go, which also owns the
// unconditional bookkeeping (last_successful_mtu, consecutive_failures)
// that spec.md §4.1 runs whether or not a direction is actively searching.
package pmtu

// beginSearch implements Discovery Engine start(direction). Callers must
// hold m.mu and must have already checked p.InSearchPhase is false.
func (m *Manager) beginSearch(direction Direction, p *PathState) {
	p.Status = StatusSearching
	p.InSearchPhase = true

	if p.CurrentMTU >= p.MaxMTU {
		// Degenerate configuration (min_mtu == max_mtu, or a direction
		// already at the ceiling): validate immediately without probing,
		// per spec.md §9's Open Question on min_mtu == max_mtu.
		m.finalizeSearch(direction, p)
		return
	}

	probe := minU16(p.CurrentMTU+p.StepSize, p.MaxMTU)
	m.emitProbe(direction, p, probe)
}

// continueAfterSuccess plans the next bisection step, or finalizes, after a
// successful probe — called only while p.InSearchPhase is true.
func (m *Manager) continueAfterSuccess(direction Direction, p *PathState, size uint16) {
	if size < p.MaxMTU {
		next := minU16(size+p.StepSize, p.MaxMTU)
		m.emitProbe(direction, p, next)
		return
	}
	m.finalizeSearch(direction, p)
}

// continueAfterFailure plans the next bisection step, or finalizes, after a
// failed probe that was not classified as a blackhole — called only while
// p.InSearchPhase is true.
//
// In a search that starts at last_successful_mtu, the first failure arrives
// step_size above last_successful_mtu (the ascent overshoots by one full
// step), or less when that probe was capped at max_mtu, so range is at most
// step_size at that point. The boundary must not finalize at range ==
// step_size —
// halving still yields a strictly finer probe than the ascent step, and
// spec.md §8 scenario 2 bisects once before terminating — so only a range
// strictly below step_size is treated as converged.
func (m *Manager) continueAfterFailure(direction Direction, p *PathState, size uint16) {
	rng := size - p.LastSuccessfulMTU
	if rng < p.StepSize {
		// Converged below s: no viable size exists between the last
		// success and s closer than one step.
		m.finalizeSearch(direction, p)
		return
	}
	next := p.LastSuccessfulMTU + rng/2
	m.emitProbe(direction, p, next)
}

// finalizeSearch commits the converged MTU, marks the direction Validated,
// and — for Outgoing, when bidirectional discovery is enabled and Incoming
// isn't already searching — starts Incoming discovery. It is reached both
// when discovery converges at max_mtu (success path, where the commit
// already happened) and when bisection narrows the viable range to nothing
// (failure path, where it must commit p.LastSuccessfulMTU itself).
func (m *Manager) finalizeSearch(direction Direction, p *PathState) {
	p.MTUValidated = true
	p.Status = StatusValidated
	p.InSearchPhase = false
	p.CurrentProbeMTU = 0

	if direction == Outgoing && p.CurrentMTU != p.LastSuccessfulMTU {
		p.CurrentMTU = p.LastSuccessfulMTU
		m.publishMTU(direction, p)
	} else {
		m.metrics.observe(direction, p.snapshot())
	}

	m.logger.Info("mtu discovery validated",
		"trace_id", m.traceID,
		"direction", direction,
		"current_mtu", p.CurrentMTU,
		"last_successful_mtu", p.LastSuccessfulMTU)

	if direction == Outgoing && m.cfg.BidirectionalEnabled && !m.incoming.InSearchPhase {
		m.logger.Info("starting incoming path mtu discovery", "trace_id", m.traceID)
		m.beginSearch(Incoming, m.incoming)
	}
}

// emitProbe sends a probe through the ConnectionAdapter and records it in
// the direction's registry.
func (m *Manager) emitProbe(direction Direction, p *PathState, size uint16) {
	p.CurrentProbeMTU = size
	id := m.adapter.SendProbe(size, direction)
	m.registry(direction).add(id, size)
	m.metrics.recordProbeSent(direction)
	m.logger.Debug("emitted mtu probe",
		"trace_id", m.traceID,
		"direction", direction,
		"probe_id", id,
		"size", size)
}

func minU16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}
