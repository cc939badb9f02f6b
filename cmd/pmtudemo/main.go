// Command pmtudemo drives a Manager against a simulated lossy network path
// and serves its metrics over HTTP, restructuring the teacher's
// agent/cmd/agent/main.go (flag parsing, logger setup, signal handling)
// onto Cobra/Viper per the dependency wiring in DESIGN.md.
//
// # Usage
//
//	pmtudemo --ceiling 1400 --loss 0.02 --config pmtu.yaml
//
// Demo settings come from flags or PMTUDEMO_* environment variables; a flag
// given on the command line wins over the environment. The pmtu core
// configuration starts from its defaults, is replaced by the --config YAML
// file when one is given, and PMTU_* environment variables override both.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pilot-net/obfsquic-pmtud/internal/collab"
	"github.com/pilot-net/obfsquic-pmtud/internal/simnet"
	"github.com/pilot-net/obfsquic-pmtud/pkg/pmtu"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "pmtudemo",
		Short:   "Run Path MTU Discovery against a simulated lossy network path",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "path to a pmtu config YAML file")
	flags.Uint16("ceiling", 1500, "largest packet size the simulated path ever delivers")
	flags.Float64("loss", 0.0, "background loss probability in [0,1) for deliverable probes")
	flags.Duration("response-delay", 20*time.Millisecond, "simulated probe response latency")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("listen", ":9110", "address to serve Prometheus metrics on")
	flags.Int64("seed", 1, "deterministic seed for the simulated path's loss generator")
	flags.Float64("probes-per-second", 0, "rate-limit simulated probe responses; 0 disables the limit")
	flags.String("seal-key-hex", "", "hex-encoded chacha20poly1305 key; when set, probes are sized as the obfuscated record they'd become on the wire")
	flags.String("browser", "chrome", "client fingerprint to report: chrome, firefox, safari, or edge")
	flags.String("os", "windows", "host OS for the reported fingerprint: windows, macos, or linux")
	flags.String("real-hostname", "", "real destination hostname, for SNI hiding (requires --cover-hostname)")
	flags.String("cover-hostname", "", "cover hostname advertised in place of --real-hostname")

	_ = v.BindPFlag("ceiling", flags.Lookup("ceiling"))
	_ = v.BindPFlag("loss", flags.Lookup("loss"))
	_ = v.BindPFlag("response_delay", flags.Lookup("response-delay"))
	_ = v.BindPFlag("debug", flags.Lookup("debug"))
	_ = v.BindPFlag("listen", flags.Lookup("listen"))
	_ = v.BindPFlag("seed", flags.Lookup("seed"))
	_ = v.BindPFlag("config", flags.Lookup("config"))
	_ = v.BindPFlag("probes_per_second", flags.Lookup("probes-per-second"))
	_ = v.BindPFlag("seal_key_hex", flags.Lookup("seal-key-hex"))
	_ = v.BindPFlag("browser", flags.Lookup("browser"))
	_ = v.BindPFlag("os", flags.Lookup("os"))
	_ = v.BindPFlag("real_hostname", flags.Lookup("real-hostname"))
	_ = v.BindPFlag("cover_hostname", flags.Lookup("cover-hostname"))
	v.SetEnvPrefix("PMTUDEMO")
	v.AutomaticEnv()

	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	logLevel := slog.LevelInfo
	if v.GetBool("debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg := pmtu.DefaultConfig()
	if configFile := v.GetString("config"); configFile != "" {
		fileCfg, err := pmtu.LoadConfigFromFile(configFile)
		if err != nil {
			return fmt.Errorf("loading pmtu config: %w", err)
		}
		cfg = fileCfg
	}
	cfg.ApplyEnvOverrides()

	var sealKey []byte
	if keyHex := v.GetString("seal_key_hex"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return fmt.Errorf("decoding --seal-key-hex: %w", err)
		}
		sealKey = key
	}

	path := simnet.NewPath(simnet.Config{
		Ceiling:         uint16(v.GetUint32("ceiling")),
		BackgroundLoss:  v.GetFloat64("loss"),
		ResponseDelay:   v.GetDuration("response_delay"),
		Seed:            v.GetInt64("seed"),
		ProbesPerSecond: v.GetFloat64("probes_per_second"),
		SealKey:         sealKey,
		Browser:         parseBrowser(v.GetString("browser")),
		OS:              parseOS(v.GetString("os")),
		RealHostname:    v.GetString("real_hostname"),
		CoverHostname:   v.GetString("cover_hostname"),
	}, logger)

	manager, err := pmtu.NewManager(path, cfg, logger)
	if err != nil {
		return fmt.Errorf("constructing pmtu manager: %w", err)
	}
	path.Attach(manager)

	listenAddr := v.GetString("listen")
	server := &http.Server{Addr: listenAddr, Handler: manager.MetricsHandler()}
	go func() {
		logger.Info("serving pmtu metrics", "addr", listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server exited", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := manager.Start(); err != nil {
		return fmt.Errorf("starting outgoing mtu discovery: %w", err)
	}

	ticker := time.NewTicker(cfg.AdaptiveCheckInterval)
	defer ticker.Stop()

	logger.Info("pmtudemo running", "version", Version)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			manager.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			manager.Adapt(0, 0)
		}
	}
}

// parseBrowser maps a --browser flag value to its BrowserKind, defaulting
// to Chrome for an unrecognized value so a typo doesn't abort the run.
func parseBrowser(s string) collab.BrowserKind {
	switch strings.ToLower(s) {
	case "firefox":
		return collab.BrowserFirefox
	case "safari":
		return collab.BrowserSafari
	case "edge":
		return collab.BrowserEdge
	default:
		return collab.BrowserChrome
	}
}

// parseOS maps a --os flag value to its OSKind, defaulting to Windows for
// an unrecognized value.
func parseOS(s string) collab.OSKind {
	switch strings.ToLower(s) {
	case "macos":
		return collab.OSMacOS
	case "linux":
		return collab.OSLinux
	default:
		return collab.OSWindows
	}
}
