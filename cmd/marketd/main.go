// Command marketd runs a weather-indexed insurance marketplace demo
// against a SQL-backed record store. It seeds the deployment profile,
// then drives the full transaction flow: investment, underwriting,
// policy issuance, claim submission and settlement.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/stormsure/marketplace/pkg/config"
	"github.com/stormsure/marketplace/pkg/events"
	"github.com/stormsure/marketplace/pkg/identity"
	"github.com/stormsure/marketplace/pkg/model"
	"github.com/stormsure/marketplace/pkg/observability"
	"github.com/stormsure/marketplace/pkg/registry"
	"github.com/stormsure/marketplace/pkg/rules"
	"github.com/stormsure/marketplace/pkg/schema"
	"github.com/stormsure/marketplace/pkg/txn"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)

	var kind schema.Kind
	if len(os.Args) > 1 {
		if os.Args[1] != "submit" || len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: marketd [submit <request-kind> < request.json]")
			os.Exit(2)
		}
		kind = schema.Kind(os.Args[2])
	}

	if err := run(ctx, cfg, logger, kind); err != nil {
		logger.Error("marketd failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// run executes either one submitted request (kind non-empty, body on
// stdin) or the built-in scenario.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, kind schema.Kind) error {
	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return err
	}
	logger.Info("profile loaded", "name", profile.Name, "broker", profile.BrokerID, "oracle", profile.RainOracleID)

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	store := registry.NewSQLStore(db)
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init record store: %w", err)
	}

	regs := txn.NewRegistries(store)
	if err := seedProfile(ctx, regs, profile, logger); err != nil {
		return err
	}

	trail := events.NewAuditTrail()
	recorder := events.NewMemory()
	notifier := events.Multi{trail, recorder}
	if cfg.RedisAddr != "" {
		rn := events.NewRedisNotifier(cfg.RedisAddr, "", 0)
		defer func() { _ = rn.Close() }()
		notifier = append(notifier, rn)
		logger.Info("publishing events to redis", "addr", cfg.RedisAddr)
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.Enabled = cfg.TracingEnabled
	if cfg.OTLPEndpoint != "" {
		obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	}
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(sctx)
	}()

	evaluator, err := rules.NewEvaluator()
	if err != nil {
		return fmt.Errorf("init claim rule evaluator: %w", err)
	}

	guard := identity.NewGuard(identity.WellKnown{
		BrokerID:     profile.BrokerID,
		RainOracleID: profile.RainOracleID,
	})
	engine := txn.NewEngine(store, identity.ContextProvider{}, guard, notifier,
		txn.WithLogger(logger),
		txn.WithRules(evaluator),
		txn.WithObservability(obs),
	)

	validator, err := schema.NewValidator()
	if err != nil {
		return fmt.Errorf("compile request schemas: %w", err)
	}

	var verifier *identity.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier = identity.NewTokenVerifier([]byte(cfg.JWTSecret))
		logger.Info("actor tokens enabled")
	}

	d := &demo{
		engine:    engine,
		regs:      regs,
		validator: validator,
		verifier:  verifier,
		limiter:   oracleLimiter(cfg),
		logger:    logger,
	}
	if kind != "" {
		err = d.submitFromReader(ctx, kind, os.Stdin)
	} else {
		err = d.runScenario(ctx, profile)
	}
	if err != nil {
		return err
	}

	if perr := printEvents(os.Stdout, recorder.Events()); perr != nil {
		return perr
	}

	ok, head := trail.Verify()
	if !ok {
		return fmt.Errorf("audit trail verification failed at head %s", head)
	}
	logger.Info("audit trail verified", "entries", trail.Length(), "head", head)
	return nil
}

// printEvents writes published events to w as JSON lines.
func printEvents(w io.Writer, evs []events.Event) error {
	enc := json.NewEncoder(w)
	for _, ev := range evs {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
	}
	return nil
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	driver := cfg.StoreDriver
	if driver == "sqlite" {
		// modernc.org/sqlite registers under "sqlite".
		db, err := sql.Open("sqlite", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %q: %w", cfg.DatabaseURL, err)
		}
		return db, nil
	}
	if driver == "postgres" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}

func oracleLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.OracleRatePerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.OracleRatePerMinute)), cfg.OracleBurst)
}

// seedProfile loads the profile's records into an empty store. Records
// already present are left untouched so marketd restarts cleanly.
func seedProfile(ctx context.Context, regs txn.Registries, p *config.Profile, logger *slog.Logger) error {
	seeded := 0
	add := func(err error) error {
		if err == nil {
			seeded++
			return nil
		}
		if errors.Is(err, registry.ErrConflict) {
			return nil
		}
		return err
	}

	for _, u := range p.Users {
		if err := add(regs.Users.Add(ctx, model.PlatformUser{
			ID:          u.ID,
			Role:        model.Role(u.Role),
			BalanceBLCK: u.BalanceBLCK,
		})); err != nil {
			return fmt.Errorf("seed user %q: %w", u.ID, err)
		}
	}
	for _, s := range p.Syndicates {
		if err := add(regs.Syndicates.Add(ctx, model.Syndicate{
			ID:               s.ID,
			Manager:          s.Manager,
			BalanceBLCK:      s.BalanceBLCK,
			DebtsToInvestors: []string{},
		})); err != nil {
			return fmt.Errorf("seed syndicate %q: %w", s.ID, err)
		}
	}
	for _, a := range p.Agencies {
		if err := add(regs.Agencies.Add(ctx, model.InsuranceAgency{
			ID:                       a.ID,
			Broker:                   a.Broker,
			AutoSettleClaims:         a.AutoSettleClaims,
			PolicyClaimRainThreshold: a.PolicyClaimRainThreshold,
			ClaimRule:                a.ClaimRule,
		})); err != nil {
			return fmt.Errorf("seed agency %q: %w", a.ID, err)
		}
	}
	for _, pr := range p.Products {
		if err := add(regs.Products.Add(ctx, model.Product{ID: pr.ID, Terms: pr.Terms})); err != nil {
			return fmt.Errorf("seed product %q: %w", pr.ID, err)
		}
	}

	logger.Info("profile seeded", "new_records", seeded)
	return nil
}
