// Adaptive Controller: consumes periodic loss/RTT samples and may trigger
// out-of-search MTU changes, implementing spec.md §4.2. Grounded on
// original_source/core/quic_path_mtu_manager_part2.cpp's
// adapt_mtu_dynamically.
package pmtu

// Adapt feeds a loss/RTT sample into the Adaptive Controller. It is a
// no-op if less than AdaptiveCheckInterval has elapsed since the previous
// invocation, if the Outgoing path is not validated, or if Outgoing is
// currently in search phase — the Adaptive Controller stays quiescent
// during active discovery to avoid conflicting writers (spec.md §3,
// invariant 5).
func (m *Manager) Adapt(lossRate float32, rttMs uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	now := m.clock.Now()
	if m.haveAdaptiveCheck && now.Sub(m.lastAdaptiveCheck) < m.cfg.AdaptiveCheckInterval {
		return
	}
	m.lastAdaptiveCheck = now
	m.haveAdaptiveCheck = true

	p := m.outgoing
	if !p.MTUValidated || p.InSearchPhase {
		return
	}

	switch {
	case lossRate > m.cfg.HighLossThreshold:
		m.adaptiveDecrease(p)
	case lossRate < m.cfg.LowLossThreshold && rttMs < m.cfg.GoodRTTThresholdMs:
		m.adaptiveProbe(p)
	}
}

// adaptiveDecrease is the safety action: it takes effect immediately since
// it only ever makes the path more conservative.
func (m *Manager) adaptiveDecrease(p *PathState) {
	newMTU := maxU16(subU16(p.CurrentMTU, p.StepSize), p.MinMTU)
	if newMTU == p.CurrentMTU {
		return
	}
	m.logger.Info("adaptive mtu decrease",
		"trace_id", m.traceID,
		"from", p.CurrentMTU,
		"to", newMTU)
	p.CurrentMTU = newMTU
	m.publishMTU(Outgoing, p)
}

// adaptiveProbe is the exploratory action: a single probe is emitted
// through the Discovery Engine's probe channel without entering search
// phase. response.go commits on success. A failure leaves current_mtu
// unchanged and starts no bisection, but it still counts toward
// consecutive_failures, so it can assert a blackhole (see applyProbeFailure).
func (m *Manager) adaptiveProbe(p *PathState) {
	if p.CurrentMTU >= p.MaxMTU {
		return
	}
	probe := minU16(p.CurrentMTU+p.StepSize, p.MaxMTU)
	m.logger.Info("adaptive mtu probe", "trace_id", m.traceID, "size", probe)
	m.emitProbe(Outgoing, p, probe)
}

func maxU16(a, b uint16) uint16 {
	if a > b {
		return a
	}
	return b
}

// subU16 saturates at zero instead of wrapping, since CurrentMTU-StepSize
// could otherwise underflow for an aggressive StepSize.
func subU16(a, b uint16) uint16 {
	if b >= a {
		return 0
	}
	return a - b
}
