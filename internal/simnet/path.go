// Package simnet is a demo/test harness: a simulated lossy network path
// implementing pkg/pmtu.ConnectionAdapter over an in-process goroutine
// instead of a real QUIC connection. Grounded on the teacher's scheduler
// (agent/internal/scheduler/scheduler.go before its deletion — see
// DESIGN.md): the path owns its own mutex-guarded state, and each probe's
// response is delivered by its own goroutine rather than by a ticker loop.
package simnet

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pilot-net/obfsquic-pmtud/internal/collab"
	"github.com/pilot-net/obfsquic-pmtud/pkg/pmtu"
)

// Path simulates a network path with a configurable blackhole ceiling
// (sizes above it are always dropped), a background loss rate applied
// below the ceiling, and a per-probe response delay. It implements
// pmtu.ConnectionAdapter so a pmtu.Manager can run against it directly.
type Path struct {
	mu sync.Mutex

	rng *rand.Rand

	// ceiling is the largest packet size this path ever delivers; sizes
	// above it are dropped unconditionally, modeling a network blackhole
	// or an intermediate link's hard MTU.
	ceiling uint16

	// backgroundLoss is the probability, in [0,1), that an otherwise
	// deliverable probe (size <= ceiling) is dropped anyway.
	backgroundLoss float64

	responseDelay time.Duration
	limiter       *rate.Limiter

	// sealer is non-nil when the path is configured to model the AEAD
	// overhead a real QUIC record layer would add before a probe leaves
	// the host; decide() compares the sealed length against ceiling
	// instead of the raw probe size, so obfuscation overhead can itself
	// trip the simulated blackhole.
	sealer collab.Sealer

	manager *pmtu.Manager
	logger  *slog.Logger

	nextProbeID uint32
	mtuSize     uint16
}

// Config configures a simulated Path.
type Config struct {
	Ceiling        uint16
	BackgroundLoss float64
	ResponseDelay  time.Duration
	// ProbesPerSecond bounds how fast probe responses are delivered, so a
	// misbehaving caller can't starve the simulated link; zero disables
	// the limit.
	ProbesPerSecond float64
	Seed            int64

	// SealKey, when non-empty, is a chacha20poly1305 key used to model the
	// AEAD overhead (nonce + tag) an obfuscated QUIC record adds to every
	// probe before it hits the wire. Nil disables the simulation and
	// probes are sized exactly as requested.
	SealKey []byte

	// Browser and OS select the outer-shell fingerprint this path reports
	// at construction time, standing in for the client identity a real
	// obfuscated connection would present alongside its probes.
	Browser collab.BrowserKind
	OS      collab.OSKind

	// RealHostname and CoverHostname, when both set, are logged as the
	// server_name extension this path would present on the wire in place
	// of the true destination.
	RealHostname  string
	CoverHostname string
}

// NewPath builds a simulated Path. The returned Path does not yet drive a
// Manager; call Attach before use.
func NewPath(cfg Config, logger *slog.Logger) *Path {
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if cfg.ProbesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ProbesPerSecond), 1)
	}

	var sealer collab.Sealer
	if len(cfg.SealKey) > 0 {
		s, err := collab.NewSealer(cfg.SealKey)
		if err != nil {
			logger.Warn("simnet: seal key rejected, probes will be sized unsealed", "error", err)
		} else {
			sealer = s
		}
	}

	fp := collab.Fingerprint{Browser: cfg.Browser, OS: cfg.OS}
	logger.Info("simnet: path fingerprint",
		"browser", fp.Browser, "os", fp.OS,
		"http_headers", len(fp.HTTPHeaders()),
		"tls_extensions", len(fp.TLSExtensionOrder()))

	if cfg.RealHostname != "" && cfg.CoverHostname != "" {
		hider := collab.NewSNIHider()
		ext, err := hider.ServerNameExtension(cfg.CoverHostname)
		if err != nil {
			logger.Warn("simnet: cover hostname rejected", "cover_hostname", cfg.CoverHostname, "error", err)
		} else {
			logger.Info("simnet: sni hidden",
				"real_hostname", cfg.RealHostname,
				"cover_hostname", cfg.CoverHostname,
				"extension_bytes", len(ext))
		}
	}

	return &Path{
		rng:            rand.New(rand.NewSource(cfg.Seed)),
		ceiling:        cfg.Ceiling,
		backgroundLoss: cfg.BackgroundLoss,
		responseDelay:  cfg.ResponseDelay,
		limiter:        limiter,
		sealer:         sealer,
		logger:         logger,
	}
}

// Attach binds this Path to the Manager whose probes it will carry. Must
// be called exactly once before the Manager's Start.
func (p *Path) Attach(m *pmtu.Manager) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.manager = m
}

// SendProbe implements pmtu.ConnectionAdapter. It decides deliverability
// in-line and hands the response to a background goroutine rather than
// calling back into the Manager in-line, matching the adapter contract's "non-blocking, non-reentrant"
// requirement (pkg/pmtu/adapter.go).
func (p *Path) SendProbe(size uint16, direction pmtu.Direction) uint32 {
	p.mu.Lock()
	p.nextProbeID++
	id := p.nextProbeID
	mgr := p.manager
	limiter := p.limiter
	delay := p.responseDelay
	deliverable := p.decide(size)
	p.mu.Unlock()

	go func() {
		if limiter != nil {
			_ = limiter.Wait(context.Background())
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		isIncoming := direction == pmtu.Incoming
		mgr.OnProbeResponse(id, deliverable, isIncoming)
	}()

	return id
}

// SendProbeResponse implements pmtu.ConnectionAdapter for probes the
// simulated peer sent to us; this harness has no real peer to notify, so
// it only logs the verdict for test observability.
func (p *Path) SendProbeResponse(probeID uint32, success bool) {
	p.logger.Debug("simnet: responded to incoming probe", "probe_id", probeID, "success", success)
}

// SetMTUSize implements pmtu.ConnectionAdapter, recording the outgoing MTU
// the Manager has committed to.
func (p *Path) SetMTUSize(size uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mtuSize = size
}

// MTUSize returns the last size committed via SetMTUSize, for assertions.
func (p *Path) MTUSize() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mtuSize
}

// decide resolves whether a probe of the given size would be delivered.
// Callers must hold p.mu.
func (p *Path) decide(size uint16) bool {
	if p.onWireSize(size) > p.ceiling {
		return false
	}
	if p.backgroundLoss > 0 && p.rng.Float64() < p.backgroundLoss {
		return false
	}
	return true
}

// onWireSize returns the size a probe actually occupies on the simulated
// wire: with a sealer configured, that's the sealed payload (nonce + tag
// overhead included), since an obfuscated QUIC record can't send the
// probe size unsealed. Without a sealer it's the probe size itself.
func (p *Path) onWireSize(size uint16) uint16 {
	if p.sealer == nil {
		return size
	}
	sealed, err := p.sealer.Seal(make([]byte, size), nil)
	if err != nil {
		return size
	}
	if len(sealed) > 0xFFFF {
		return 0xFFFF
	}
	return uint16(len(sealed))
}

// InjectIncomingProbe simulates the peer testing this path in the reverse
// direction, driving Manager.OnIncomingProbe the way a real receive path
// would upon parsing a probe frame.
func (p *Path) InjectIncomingProbe(size uint16) {
	p.mu.Lock()
	p.nextProbeID++
	id := p.nextProbeID
	mgr := p.manager
	p.mu.Unlock()
	mgr.OnIncomingProbe(id, size)
}

// SetCeiling adjusts the simulated blackhole ceiling at runtime, for tests
// exercising a path whose true limit changes mid-run.
func (p *Path) SetCeiling(ceiling uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ceiling = ceiling
}

// SetBackgroundLoss adjusts the simulated loss rate at runtime, for tests
// driving Manager.Adapt against a changing link.
func (p *Path) SetBackgroundLoss(loss float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backgroundLoss = loss
}
