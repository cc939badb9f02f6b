// Incoming-Probe Handler, implementing spec.md §4.5. Grounded on
// original_source/core/quic_path_mtu_manager_part2.cpp's
// handle_incoming_probe. Unlike OnProbeResponse, this handles a probe the
// peer sent to us, testing what it can deliver over this path; we reply
// with a verdict rather than consuming one of our own in-flight records.
package pmtu

// OnIncomingProbe handles a probe frame received from the peer. It is
// idempotent under duplicate (probeID, size) delivery: both applications
// compute the same success verdict and commit, at worst, the same value
// twice, so a repeat never regresses incoming.CurrentMTU.
func (m *Manager) OnIncomingProbe(probeID uint32, size uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	p := m.incoming
	success := size <= p.MaxMTU

	if success && size > p.CurrentMTU {
		p.CurrentMTU = size
		m.metrics.observe(Incoming, p.snapshot())
		m.logger.Info("updating incoming mtu",
			"trace_id", m.traceID,
			"size", size)
	}

	m.logger.Debug("responding to incoming mtu probe",
		"trace_id", m.traceID,
		"probe_id", probeID,
		"size", size,
		"success", success)
	m.adapter.SendProbeResponse(probeID, success)
}
