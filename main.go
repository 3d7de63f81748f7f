// GoChallengeSolver recovers the instruction set of an obfuscated
// browser-challenge virtual machine by static analysis of its JavaScript
// interpreter.
//
// It runs in two modes:
//
//   - Offline: one or more interpreter scripts (or challenge pages) are
//     given as positional arguments and analysed concurrently.  This is the
//     mode used to validate the recovery heuristics against captured builds.
//   - Online: with no positional arguments and a target_url in the config,
//     the solver fetches the challenge page, extracts the embedded options,
//     downloads the matching interpreter by ray ID, and disassembles it.
//
// Either way the output is a recovered instruction bundle: per-slot opcode
// kinds, operand layouts, the payload decryption key and offset, and the
// bytecode payload strings, ready for an external decoder.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/firasghr/GoChallengeSolver/client"
	"github.com/firasghr/GoChallengeSolver/config"
	"github.com/firasghr/GoChallengeSolver/disasm"
	"github.com/firasghr/GoChallengeSolver/fingerprint"
	"github.com/firasghr/GoChallengeSolver/logger"
	"github.com/firasghr/GoChallengeSolver/metrics"
	"github.com/firasghr/GoChallengeSolver/proxy"
	"github.com/firasghr/GoChallengeSolver/script"
	"github.com/firasghr/GoChallengeSolver/worker"
)

func main() {
	configFile := flag.String("config", "", "Path to JSON config file (optional; uses defaults if omitted)")
	verbose := flag.Bool("v", false, "Enable debug logging, including the full diagnostic trace")
	flag.Parse()

	level := logger.LevelInfo
	if *verbose {
		level = logger.LevelDebug
	}
	log := logger.New(level)
	log.Info("GoChallengeSolver starting up")

	var cfg *config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			log.Errorf("failed to load config: %v", err)
			os.Exit(1)
		}
		log.Infof("configuration loaded from %q", *configFile)
	} else {
		cfg = config.Default()
		log.Info("using default configuration")
	}

	pm := &proxy.ProxyManager{}
	if cfg.ProxyFile != "" {
		if err := pm.LoadProxies(cfg.ProxyFile); err != nil {
			log.Errorf("failed to load proxies from %q: %v", cfg.ProxyFile, err)
			os.Exit(1)
		}
		log.Infof("loaded %d proxies from %q", pm.Count(), cfg.ProxyFile)
	}

	m := metrics.NewMetrics()
	h := cfg.EngineHeuristics()

	inputs := flag.Args()
	switch {
	case len(inputs) > 0:
		if !runOffline(log, m, h, cfg, inputs) {
			os.Exit(1)
		}
	case cfg.TargetURL != "":
		if err := runOnline(log, m, h, cfg, pm); err != nil {
			log.Errorf("online solve failed: %v", err)
			os.Exit(1)
		}
	default:
		log.Error("nothing to do: pass script files as arguments or set target_url in the config")
		os.Exit(2)
	}

	fetched, disassemblies, failures, slots := m.Snapshot()
	log.Infof("done – fetched: %d | disassembled: %d | failed: %d | slots resolved: %d",
		fetched, disassemblies, failures, slots)
}

// runOffline analyses local files concurrently through the worker pool and
// reports whether every input succeeded.
func runOffline(log *logger.Logger, m *metrics.Metrics, h disasm.Heuristics, cfg *config.Config, paths []string) bool {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	wp := worker.NewWorkerPool(workers)
	wp.Start()

	var failed uint32
	for _, p := range paths {
		path := p
		wp.Submit(func() {
			if err := analyzeFile(log, m, h, path); err != nil {
				log.Errorf("%s: %v", path, err)
				atomic.AddUint32(&failed, 1)
			}
		})
	}
	wp.Stop()
	return atomic.LoadUint32(&failed) == 0
}

// analyzeFile disassembles one local input.  A file containing a challenge
// page (recognised by the embedded options object) only has its options
// reported; the interpreter itself ships in a separate resource.
func analyzeFile(log *logger.Logger, m *metrics.Metrics, h disasm.Heuristics, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 – operator-supplied input path
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	src := string(data)
	m.IncrementFetched()

	if strings.Contains(src, "window._cf_chl_opt") {
		opts, err := script.OptionsFromHTML(src)
		if err != nil {
			return fmt.Errorf("parse challenge page: %w", err)
		}
		log.Infof("%s: challenge page – ray %s, type %s, zone %s", path, opts.CRay, opts.CType, opts.Zone)
		return nil
	}

	bundle, err := disassemble(log, m, h, src)
	if err != nil {
		return err
	}
	reportBundle(log, path, bundle)
	return nil
}

// runOnline performs one fetch-and-disassemble round against the configured
// target.
func runOnline(log *logger.Logger, m *metrics.Metrics, h disasm.Heuristics, cfg *config.Config, pm *proxy.ProxyManager) error {
	cc, err := client.NewChallengeClient(pm.GetNextProxy(), time.Duration(cfg.RequestTimeout))
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Duration(cfg.RequestTimeout))
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Infof("retrying (%d/%d)", attempt, cfg.MaxRetries)
		}
		if lastErr = solveOnce(ctx, log, m, h, cfg, cc); lastErr == nil {
			return nil
		}
		log.Debugf("attempt %d: %v", attempt+1, lastErr)
	}
	return lastErr
}

func solveOnce(ctx context.Context, log *logger.Logger, m *metrics.Metrics, h disasm.Heuristics, cfg *config.Config, cc *client.ChallengeClient) error {
	page, status, err := cc.FetchPage(ctx, cfg.TargetURL)
	if err != nil {
		return fmt.Errorf("fetch page: %w", err)
	}
	log.Debugf("challenge page fetched (status %d, %d bytes)", status, len(page))

	opts, err := script.OptionsFromHTML(page)
	if err != nil {
		return fmt.Errorf("extract challenge options: %w", err)
	}
	log.Infof("challenge ray %s, type %s, zone %s", opts.CRay, opts.CType, opts.Zone)

	interp, err := cc.FetchInterpreter(ctx, cfg.TargetURL, opts.CRay)
	if err != nil {
		return fmt.Errorf("fetch interpreter: %w", err)
	}
	m.IncrementFetched()
	log.Debugf("interpreter fetched (%d bytes)", len(interp))

	bundle, err := disassemble(log, m, h, interp)
	if err != nil {
		return err
	}
	reportBundle(log, opts.CRay, bundle)

	// The bytecode executor consuming the bundle runs out of process; here
	// we only confirm a coherent telemetry identity can be assembled for
	// the eventual submission.
	tel := fingerprint.GenerateTelemetry(nil)
	log.Debugf("telemetry prepared: %dx%d screen, %d mouse events, gpu %q",
		tel.Screen.Width, tel.Screen.Height, len(tel.MouseMovements), tel.WebGL.UnmaskedRenderer)
	return nil
}

// disassemble parses interpreter source and runs the recovery engine over
// it, keeping the counters and diagnostic log current.
func disassemble(log *logger.Logger, m *metrics.Metrics, h disasm.Heuristics, src string) (*disasm.Bundle, error) {
	program, err := script.Parse(src)
	if err != nil {
		m.IncrementDisassemblyFailures()
		return nil, fmt.Errorf("parse interpreter: %w", err)
	}

	bundle, err := disasm.DisassembleWithHeuristics(program, src, h)
	if err != nil {
		m.IncrementDisassemblyFailures()
		return nil, fmt.Errorf("disassemble: %w", err)
	}

	aliases := 0
	for _, d := range bundle.Diagnostics {
		switch d.Level {
		case disasm.DiagInfo:
			aliases++
			log.Debugf("trace %s", d)
		case disasm.DiagSkip:
			log.Debugf("trace %s", d)
		case disasm.DiagMiss:
			log.Infof("trace %s", d)
		}
	}
	m.IncrementDisassemblies()
	m.AddSlotsResolved(len(bundle.Opcodes))
	m.AddFallbackAliases(aliases)
	return bundle, nil
}

func reportBundle(log *logger.Logger, name string, b *disasm.Bundle) {
	log.Infof("%s: %d opcode slots, %d handlers mapped, key byte 0x%02x, offset %d, key expr %q",
		name, len(b.Opcodes), len(b.FunctionToOpcodeIndex), b.KeyByte, b.Offset, b.KeyExprSource)
	log.Infof("%s: payloads – initial %d bytes, main %d bytes, charset %d chars, init argument %d bytes",
		name, len(b.InitialVMPayload), len(b.MainVMPayload), len(b.CompressorCharset), len(b.InitArgument))
	if b.CreateFunctionIdent != "" {
		log.Debugf("%s: function constructor helper %q", name, b.CreateFunctionIdent)
	}
	for slot, op := range b.Opcodes {
		log.Debugf("%s: slot %d = %s %v", name, slot, op.Kind, op.Bits)
	}
}
