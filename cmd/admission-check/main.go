// admission-check runs one admission decision from the command line. It
// is the operator's probe: point it at the shared Redis store, describe
// the request, and it prints the decision JSON the dispatcher would see.
//
//	admission-check check -principal alice -roles tenant.admin \
//	    -tenant acme -engine ocr -action finance.write_invoice -risk high
//	admission-check status ocr
//	admission-check reset ocr
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aibos-platform/action-kernel/pkg/access"
	"github.com/aibos-platform/action-kernel/pkg/admission"
	"github.com/aibos-platform/action-kernel/pkg/audit"
	"github.com/aibos-platform/action-kernel/pkg/config"
	"github.com/aibos-platform/action-kernel/pkg/policy"
	"github.com/aibos-platform/action-kernel/pkg/quota"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "check":
		return runCheck(args[2:], stdout, stderr)
	case "status":
		return runStatus(args[2:], stdout, stderr)
	case "reset":
		return runReset(args[2:], stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: admission-check <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  check    Run one admission decision and print it as JSON")
	fmt.Fprintln(w, "  status   Print an engine's circuit breaker state")
	fmt.Fprintln(w, "  reset    Clear an engine's circuit cooldown")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Exit codes: 0 admitted, 1 rejected, 2 error.")
}

func runCheck(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		principalID = fs.String("principal", "", "principal identifier (required)")
		roles       = fs.String("roles", "", "comma-separated role names")
		scopes      = fs.String("scopes", "", "comma-separated OAuth-style scopes")
		tenant      = fs.String("tenant", "", "tenant identifier (required)")
		engine      = fs.String("engine", "", "target engine (required)")
		action      = fs.String("action", "", "action name, e.g. finance.write_invoice (required)")
		risk        = fs.String("risk", "low", "risk band: low|medium|high|critical")
		profile     = fs.String("profile", "", "profile YAML path (overrides PROFILE_PATH)")
		memStore    = fs.Bool("memory", false, "use an in-process store instead of Redis")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *principalID == "" || *tenant == "" || *engine == "" || *action == "" {
		fmt.Fprintln(stderr, "check: -principal, -tenant, -engine, and -action are required")
		return 2
	}

	kernel, cleanup, err := buildKernel(*profile, *memStore)
	if err != nil {
		fmt.Fprintf(stderr, "check: %v\n", err)
		return 2
	}
	defer cleanup()

	principal := &access.Principal{
		ID:       *principalID,
		TenantID: *tenant,
		Roles:    splitList(*roles),
		Scopes:   splitList(*scopes),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := kernel.CheckAdmission(ctx, principal, admission.Request{
		TenantID: *tenant,
		Engine:   *engine,
		Action:   *action,
		RiskBand: policy.RiskBand(*risk),
	})
	if err != nil {
		fmt.Fprintf(stderr, "check: %v\n", err)
		return 2
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(stderr, "check: %v\n", err)
		return 2
	}
	if !result.Admitted {
		return 1
	}
	return 0
}

func runStatus(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: admission-check status <engine>")
		return 2
	}
	kernel, cleanup, err := buildKernel("", false)
	if err != nil {
		fmt.Fprintf(stderr, "status: %v\n", err)
		return 2
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := kernel.CircuitStatus(ctx, args[0])
	if err != nil {
		fmt.Fprintf(stderr, "status: %v\n", err)
		return 2
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		fmt.Fprintf(stderr, "status: %v\n", err)
		return 2
	}
	return 0
}

func runReset(args []string, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: admission-check reset <engine>")
		return 2
	}
	kernel, cleanup, err := buildKernel("", false)
	if err != nil {
		fmt.Fprintf(stderr, "reset: %v\n", err)
		return 2
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := kernel.ResetCircuit(ctx, args[0]); err != nil {
		fmt.Fprintf(stderr, "reset: %v\n", err)
		return 2
	}
	return 0
}

// buildKernel wires config, profile, store, and optional audit sink into
// a ready kernel. The returned cleanup closes whatever was opened.
func buildKernel(profilePath string, memStore bool) (*admission.Kernel, func(), error) {
	cfg := config.Load()
	if profilePath == "" {
		profilePath = cfg.ProfilePath
	}

	prof, err := config.LoadProfile(profilePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, nil, err
		}
		prof = config.DefaultProfile()
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))

	cleanup := func() {}

	var store quota.Store
	if memStore {
		store = quota.NewMemoryStore()
	} else {
		rs := quota.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("redis at %s: %w", cfg.RedisAddr, err)
		}
		store = rs
		cleanup = func() { _ = rs.Close() }
	}

	var sink audit.Sink = audit.NewSlogSink(logger)
	if cfg.DatabaseURL != "" {
		pg, err := audit.OpenPostgresSink(cfg.DatabaseURL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pg.Init(ctx); err != nil {
			_ = pg.Close()
			cleanup()
			return nil, nil, err
		}
		sink = audit.MultiSink{sink, pg}
		prev := cleanup
		cleanup = func() { _ = pg.Close(); prev() }
	}

	kernel, err := admission.NewFromProfile(cfg, prof, store, sink, nil, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return kernel, cleanup, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
