package pmtu

import (
	"sync"
	"testing"
	"time"
)

// fakeAdapter is a hand-rolled ConnectionAdapter test double, in the same
// style as the teacher's MockExecutor (agent/internal/executor/executor_test.go):
// an exported record of calls plus optional override funcs for the rare
// test that needs to intercept behavior instead of just observing it.
type fakeAdapter struct {
	mu sync.Mutex

	nextID    uint32
	sent      []sentProbe
	responses []sentResponse
	mtuSize   uint16
}

type sentProbe struct {
	id        uint32
	size      uint16
	direction Direction
}

type sentResponse struct {
	probeID uint32
	success bool
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{}
}

func (f *fakeAdapter) SendProbe(size uint16, direction Direction) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.sent = append(f.sent, sentProbe{id: id, size: size, direction: direction})
	return id
}

func (f *fakeAdapter) SendProbeResponse(probeID uint32, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, sentResponse{probeID: probeID, success: success})
}

func (f *fakeAdapter) SetMTUSize(size uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mtuSize = size
}

func (f *fakeAdapter) lastProbe() sentProbe {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentProbe{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeAdapter) sizes() []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint16, len(f.sent))
	for i, p := range f.sent {
		out[i] = p.size
	}
	return out
}

func (f *fakeAdapter) currentMTU() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mtuSize
}

// fakeClock is a controllable Clock, advanced explicitly by tests driving
// the Adaptive Controller's interval gate.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// seedConfig matches spec.md §8's seed scenario configuration.
func seedConfig() Config {
	cfg := DefaultConfig()
	cfg.MinMTU = 1200
	cfg.MaxMTU = 1500
	cfg.StepSize = 50
	cfg.BidirectionalEnabled = false
	return cfg
}

func newTestManager(t *testing.T, cfg Config) (*Manager, *fakeAdapter, *fakeClock) {
	t.Helper()
	adapter := newFakeAdapter()
	clock := newFakeClock()
	m := newManager(adapter, cfg, clock, nil)
	return m, adapter, clock
}

// TestCleanAscent covers spec.md §8 scenario 1: every probe succeeds, and
// discovery climbs in step_size increments to max_mtu.
func TestCleanAscent(t *testing.T) {
	m, adapter, _ := newTestManager(t, seedConfig())

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	wantSizes := []uint16{1250, 1300, 1350, 1400, 1450, 1500}
	for _, want := range wantSizes {
		probe := adapter.lastProbe()
		if probe.size != want {
			t.Fatalf("expected probe at %d, got %d", want, probe.size)
		}
		m.OnProbeResponse(probe.id, true, false)
	}

	if got := adapter.sizes(); !equalU16(got, wantSizes) {
		t.Fatalf("probe sequence = %v, want %v", got, wantSizes)
	}
	if got := m.CurrentMTU(Outgoing); got != 1500 {
		t.Fatalf("CurrentMTU = %d, want 1500", got)
	}
	if got := m.Status(Outgoing); got != StatusValidated {
		t.Fatalf("Status = %q, want %q", got, StatusValidated)
	}
	if got := adapter.currentMTU(); got != 1500 {
		t.Fatalf("adapter observed SetMTUSize(%d), want 1500", got)
	}
}

// TestBisectionOnFailure covers spec.md §8 scenario 2: a single failure
// triggers bisection, and the range narrows below step_size to terminate.
func TestBisectionOnFailure(t *testing.T) {
	m, adapter, _ := newTestManager(t, seedConfig())
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	first := adapter.lastProbe()
	if first.size != 1250 {
		t.Fatalf("first probe = %d, want 1250", first.size)
	}
	m.OnProbeResponse(first.id, true, false)

	second := adapter.lastProbe()
	if second.size != 1300 {
		t.Fatalf("second probe = %d, want 1300", second.size)
	}
	m.OnProbeResponse(second.id, false, false)

	third := adapter.lastProbe()
	if third.size != 1275 {
		t.Fatalf("bisection probe = %d, want 1275", third.size)
	}
	m.OnProbeResponse(third.id, false, false)

	if got := m.CurrentMTU(Outgoing); got != 1250 {
		t.Fatalf("CurrentMTU = %d, want 1250", got)
	}
	if got := m.Status(Outgoing); got != StatusValidated {
		t.Fatalf("Status = %q, want %q", got, StatusValidated)
	}
}

// TestBlackholeDetection covers spec.md §8 scenario 3: persistent failures
// assert a blackhole and revert to last_successful_mtu.
//
// A single monotonic bisection chain can only ever produce two consecutive
// failures before converging: the first failure's range is at most
// step_size (the ascent overshoots by one step, less if capped at max_mtu)
// and halving it
// immediately drops the range below step_size, forcing
// continueAfterFailure to finalize on the very next failure (see
// discovery.go). So reaching the default blackhole_threshold of 3 within
// one search is not reachable by construction; this test instead
// configures a threshold of 2 to exercise the predicate against exactly
// the two failures bisection can produce. Scenario 3's default-threshold
// case is covered by TestBlackholeDuringAdaptiveProbing below, which
// reaches 3 the way spec.md's own predicate is actually checked —
// unconditionally on every failure, not just within search phase.
func TestBlackholeDetection(t *testing.T) {
	cfg := seedConfig()
	cfg.BlackholeThreshold = 2
	m, adapter, _ := newTestManager(t, cfg)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	first := adapter.lastProbe() // 1250
	m.OnProbeResponse(first.id, false, false)

	second := adapter.lastProbe() // bisection: 1200 + (1250-1200)/2 = 1225
	m.OnProbeResponse(second.id, false, false)

	if got := m.Status(Outgoing); got != StatusBlackhole {
		t.Fatalf("Status = %q, want %q", got, StatusBlackhole)
	}
	if got := m.CurrentMTU(Outgoing); got != 1200 {
		t.Fatalf("CurrentMTU = %d, want 1200 (min_mtu, no prior success)", got)
	}
	snap, ok := m.PathSnapshot(Outgoing)
	if !ok {
		t.Fatal("PathSnapshot(Outgoing) missing")
	}
	if snap.InSearchPhase {
		t.Fatal("InSearchPhase should be false after blackhole")
	}
}

// TestBlackholeDuringAdaptiveProbing covers the default blackhole_threshold
// of 3 and the Open Question #4 decision recorded in DESIGN.md: the
// blackhole predicate is evaluated unconditionally on every failure, even
// outside search phase. validateAt(1400) ends its search with two failures
// (1450, then 1425), so the first failed adaptive probe raises
// consecutive_failures to 3 and asserts the blackhole; the two that follow
// keep the direction in Blackhole at 1400.
func TestBlackholeDuringAdaptiveProbing(t *testing.T) {
	cfg := seedConfig()
	m, adapter, clock := newTestManager(t, cfg)
	validateAt(t, m, adapter, 1400)

	for i := 0; i < 3; i++ {
		clock.advance(cfg.AdaptiveCheckInterval)
		m.Adapt(0.005, 50)
		probe := adapter.lastProbe()
		if probe.size != 1450 {
			t.Fatalf("adaptive probe %d size = %d, want 1450", i, probe.size)
		}
		m.OnProbeResponse(probe.id, false, false)
	}

	if got := m.Status(Outgoing); got != StatusBlackhole {
		t.Fatalf("Status = %q, want %q", got, StatusBlackhole)
	}
	if got := m.CurrentMTU(Outgoing); got != 1400 {
		t.Fatalf("CurrentMTU = %d, want 1400 (last_successful_mtu)", got)
	}
}

// TestAdaptiveDecrease covers spec.md §8 scenario 4: high loss triggers an
// immediate, unconditional decrease.
func TestAdaptiveDecrease(t *testing.T) {
	cfg := seedConfig()
	m, adapter, clock := newTestManager(t, cfg)
	validateAt(t, m, adapter, 1400)

	clock.advance(cfg.AdaptiveCheckInterval)
	m.Adapt(0.10, 200)

	if got := m.CurrentMTU(Outgoing); got != 1350 {
		t.Fatalf("CurrentMTU = %d, want 1350", got)
	}
	if got := adapter.currentMTU(); got != 1350 {
		t.Fatalf("adapter observed SetMTUSize(%d), want 1350", got)
	}
}

// TestAdaptiveProbeGoodConditions covers spec.md §8 scenario 5: a single
// exploratory probe is emitted without entering search phase.
func TestAdaptiveProbeGoodConditions(t *testing.T) {
	cfg := seedConfig()
	m, adapter, clock := newTestManager(t, cfg)
	validateAt(t, m, adapter, 1400)

	clock.advance(cfg.AdaptiveCheckInterval)
	m.Adapt(0.005, 50)

	probe := adapter.lastProbe()
	if probe.size != 1450 {
		t.Fatalf("adaptive probe size = %d, want 1450", probe.size)
	}
	if snap, _ := m.PathSnapshot(Outgoing); snap.InSearchPhase {
		t.Fatal("adaptive probe must not enter search phase")
	}

	m.OnProbeResponse(probe.id, true, false)
	if got := m.CurrentMTU(Outgoing); got != 1450 {
		t.Fatalf("CurrentMTU after successful adaptive probe = %d, want 1450", got)
	}
}

// TestAdaptiveProbeFailureIsNoOp ensures a failed adaptive probe leaves
// current_mtu untouched and does not enter bisection.
func TestAdaptiveProbeFailureIsNoOp(t *testing.T) {
	cfg := seedConfig()
	m, adapter, clock := newTestManager(t, cfg)
	validateAt(t, m, adapter, 1400)

	clock.advance(cfg.AdaptiveCheckInterval)
	m.Adapt(0.005, 50)
	probe := adapter.lastProbe()

	m.OnProbeResponse(probe.id, false, false)

	if got := m.CurrentMTU(Outgoing); got != 1400 {
		t.Fatalf("CurrentMTU = %d, want unchanged 1400", got)
	}
	if snap, _ := m.PathSnapshot(Outgoing); snap.InSearchPhase {
		t.Fatal("failed adaptive probe must not enter search phase")
	}
}

// TestBidirectionalHandoff covers spec.md §8 scenario 6: Outgoing
// validation at max_mtu starts Incoming discovery.
func TestBidirectionalHandoff(t *testing.T) {
	cfg := seedConfig()
	cfg.BidirectionalEnabled = true
	m, adapter, _ := newTestManager(t, cfg)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 6; i++ {
		probe := adapter.lastProbe()
		if probe.direction != Outgoing {
			t.Fatalf("probe %d went to %s, want outgoing", i, probe.direction)
		}
		m.OnProbeResponse(probe.id, true, false)
	}

	if got := m.Status(Outgoing); got != StatusValidated {
		t.Fatalf("Outgoing status = %q, want %q", got, StatusValidated)
	}
	snap, ok := m.PathSnapshot(Incoming)
	if !ok {
		t.Fatal("PathSnapshot(Incoming) missing")
	}
	if !snap.InSearchPhase {
		t.Fatal("Incoming discovery should have started after Outgoing validated")
	}
	incomingProbe := adapter.lastProbe()
	if incomingProbe.direction != Incoming {
		t.Fatalf("last probe direction = %s, want incoming", incomingProbe.direction)
	}
	if incomingProbe.size != 1250 {
		t.Fatalf("incoming discovery probe size = %d, want min(current+step, max) = 1250", incomingProbe.size)
	}
}

// TestDuplicateResponseIdempotent covers spec.md §8 scenario 7: a repeated
// probe_id is discarded with no further state change.
func TestDuplicateResponseIdempotent(t *testing.T) {
	m, adapter, _ := newTestManager(t, seedConfig())
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	first := adapter.lastProbe()
	m.OnProbeResponse(first.id, true, false)
	probeCountAfterFirst := len(adapter.sent)
	mtuAfterFirst := m.CurrentMTU(Outgoing)

	m.OnProbeResponse(first.id, true, false)

	if got := m.CurrentMTU(Outgoing); got != mtuAfterFirst {
		t.Fatalf("duplicate response changed CurrentMTU to %d, want unchanged %d", got, mtuAfterFirst)
	}
	if len(adapter.sent) != probeCountAfterFirst {
		t.Fatalf("duplicate response emitted a new probe: count = %d, want %d", len(adapter.sent), probeCountAfterFirst)
	}
}

// TestUnknownProbeIDDiscarded exercises the §7 "unknown probe id" error
// class: never fatal, always a no-op on state.
func TestUnknownProbeIDDiscarded(t *testing.T) {
	m, _, _ := newTestManager(t, seedConfig())
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	before, _ := m.PathSnapshot(Outgoing)

	m.OnProbeResponse(999999, true, false)

	after, _ := m.PathSnapshot(Outgoing)
	if before != after {
		t.Fatalf("unknown probe id response mutated state: before=%+v after=%+v", before, after)
	}
}

// TestInvariantBounds checks spec.md §3 invariant 1 holds after a mixed
// success/failure run, not just at the terminal state.
func TestInvariantBounds(t *testing.T) {
	m, adapter, _ := newTestManager(t, seedConfig())
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	outcomes := []bool{true, false, true, false, true}
	for _, ok := range outcomes {
		probe := adapter.lastProbe()
		m.OnProbeResponse(probe.id, ok, false)
		snap, _ := m.PathSnapshot(Outgoing)
		if !(snap.MinMTU <= snap.LastSuccessfulMTU &&
			snap.LastSuccessfulMTU <= snap.CurrentMTU &&
			snap.CurrentMTU <= snap.MaxMTU) {
			t.Fatalf("invariant violated: %+v", snap)
		}
		if snap.Status == StatusBlackhole || snap.Status == StatusValidated {
			break
		}
	}
}

// TestStartRejectsConcurrentSearch covers the start() precondition: a
// second Start while already searching must fail, not restart the probe.
func TestStartRejectsConcurrentSearch(t *testing.T) {
	m, _, _ := newTestManager(t, seedConfig())
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(); err == nil {
		t.Fatal("expected ErrSearchInProgress on second Start, got nil")
	}
}

// TestRestartAfterBlackhole covers the only legal transition out of
// Blackhole named in spec.md §4.3. Uses a lowered blackhole_threshold (see
// TestBlackholeDetection) since that's the number of consecutive failures a
// single bisection chain can actually produce; the mechanism by which
// Blackhole is reached isn't this test's concern.
func TestRestartAfterBlackhole(t *testing.T) {
	cfg := seedConfig()
	cfg.BlackholeThreshold = 2
	m, adapter, _ := newTestManager(t, cfg)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 2; i++ {
		probe := adapter.lastProbe()
		m.OnProbeResponse(probe.id, false, false)
	}
	if got := m.Status(Outgoing); got != StatusBlackhole {
		t.Fatalf("Status = %q, want %q", got, StatusBlackhole)
	}

	if err := m.Restart(Outgoing); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if got := m.Status(Outgoing); got != StatusSearching {
		t.Fatalf("Status after Restart = %q, want %q", got, StatusSearching)
	}
}

// TestMinEqualsMaxFinalizesWithoutProbe covers the degenerate configuration
// decided in DESIGN.md's Open Questions: min_mtu == max_mtu validates
// immediately.
func TestMinEqualsMaxFinalizesWithoutProbe(t *testing.T) {
	cfg := seedConfig()
	cfg.MinMTU = 1350
	cfg.MaxMTU = 1350
	m, adapter, _ := newTestManager(t, cfg)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := len(adapter.sent); got != 0 {
		t.Fatalf("expected no probes for degenerate config, got %d", got)
	}
	if got := m.Status(Outgoing); got != StatusValidated {
		t.Fatalf("Status = %q, want %q", got, StatusValidated)
	}
	if got := m.CurrentMTU(Outgoing); got != 1350 {
		t.Fatalf("CurrentMTU = %d, want 1350", got)
	}
}

// TestIncomingProbeIdempotent covers spec.md §4.5's idempotency guarantee.
func TestIncomingProbeIdempotent(t *testing.T) {
	m, adapter, _ := newTestManager(t, seedConfig())

	m.OnIncomingProbe(1, 1300)
	m.OnIncomingProbe(1, 1300)

	if got := m.CurrentMTU(Incoming); got != 1300 {
		t.Fatalf("CurrentMTU(Incoming) = %d, want 1300", got)
	}
	if len(adapter.responses) != 2 {
		t.Fatalf("expected 2 responses sent, got %d", len(adapter.responses))
	}
	for _, r := range adapter.responses {
		if !r.success {
			t.Fatalf("expected success=true for size within max_mtu, got %+v", r)
		}
	}
}

// TestIncomingProbeRejectsOversize covers the failure branch of §4.5.
func TestIncomingProbeRejectsOversize(t *testing.T) {
	cfg := seedConfig()
	m, adapter, _ := newTestManager(t, cfg)

	m.OnIncomingProbe(1, cfg.MaxMTU+1)

	if got := m.CurrentMTU(Incoming); got != cfg.MinMTU {
		t.Fatalf("CurrentMTU(Incoming) = %d, want unchanged %d", got, cfg.MinMTU)
	}
	if len(adapter.responses) != 1 || adapter.responses[0].success {
		t.Fatalf("expected a single failed response, got %+v", adapter.responses)
	}
}

// TestStopDrainsRegistriesAndSilencesCallbacks covers the Stop contract:
// no further state mutation may occur afterward.
func TestStopDrainsRegistriesAndSilencesCallbacks(t *testing.T) {
	m, adapter, _ := newTestManager(t, seedConfig())
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	probe := adapter.lastProbe()

	m.Stop()

	if got := m.outgoingProbes.len(); got != 0 {
		t.Fatalf("outgoingProbes.len() after Stop = %d, want 0", got)
	}

	before, _ := m.PathSnapshot(Outgoing)
	m.OnProbeResponse(probe.id, true, false)
	after, _ := m.PathSnapshot(Outgoing)
	if before != after {
		t.Fatal("OnProbeResponse mutated state after Stop")
	}
}

// TestConfigValidateRejectsBadRange covers the only fatal error class
// (spec.md §7.4).
func TestConfigValidateRejectsBadRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMTU = cfg.MinMTU - 1

	if _, err := NewManager(newFakeAdapter(), cfg, nil); err == nil {
		t.Fatal("expected ConfigError for max_mtu < min_mtu, got nil")
	}
}

// validateAt drives Start and a clean ascent until Outgoing validates with
// current_mtu == target, then returns with the manager idle and Validated.
// target must be reachable by whole step_size increments from min_mtu.
func validateAt(t *testing.T, m *Manager, adapter *fakeAdapter, target uint16) {
	t.Helper()
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for {
		if m.Status(Outgoing) == StatusValidated {
			break
		}
		probe := adapter.lastProbe()
		m.OnProbeResponse(probe.id, probe.size <= target, false)
	}
	if got := m.CurrentMTU(Outgoing); got != target {
		t.Fatalf("validateAt(%d): CurrentMTU = %d", target, got)
	}
}

func equalU16(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
