// Blackhole Detector & status machine, implementing spec.md §4.3.
package pmtu

// isBlackhole implements the blackhole predicate: asserted when
// consecutive_failures reaches the configured threshold and the most
// recently probed size exceeds the last known-good size.
func (m *Manager) isBlackhole(p *PathState) bool {
	return p.ConsecutiveFailures >= m.cfg.BlackholeThreshold && p.CurrentProbeMTU > p.LastSuccessfulMTU
}

// enterBlackhole transitions a direction to Blackhole and, for Outgoing,
// reverts the active MTU to the last known-good size.
func (m *Manager) enterBlackhole(direction Direction, p *PathState) {
	p.Status = StatusBlackhole
	p.InSearchPhase = false
	p.CurrentProbeMTU = 0

	if direction == Outgoing {
		p.CurrentMTU = p.LastSuccessfulMTU
		m.publishMTU(direction, p)
	} else {
		m.metrics.observe(direction, p.snapshot())
	}

	m.metrics.recordBlackhole(direction)
	m.logger.Warn("mtu blackhole detected, reverting",
		"trace_id", m.traceID,
		"direction", direction,
		"reverted_to", p.CurrentMTU,
		"consecutive_failures", p.ConsecutiveFailures)
}
