package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/executor"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/server"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/server/handler"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/service"
)

// services holds the application services shared by every mode.
type services struct {
	prices    *service.PriceService
	positions *service.PositionService
	trades    *service.TradeService
	portfolio *service.PortfolioService
}

// buildServices assembles the executor and the service layer on top of deps.
func (a *App) buildServices(deps *Dependencies) *services {
	cfg := a.cfg

	var notifier service.Notifier
	if deps.Notifier != nil {
		notifier = deps.Notifier
	}
	events := service.NewEvents(deps.EventBus, notifier, a.logger)

	prices := service.NewPriceService(deps.Prices, deps.QuoteCache, service.PriceConfig{
		NativeMint:     cfg.Solana.NativeMint,
		TTL:            cfg.Pricing.CacheTTL.Duration,
		FetchTimeout:   cfg.Pricing.FetchTimeout.Duration,
		MaxConcurrency: cfg.Pricing.MaxConcurrency,
		Source:         "dexscreener",
	}, a.logger)
	prices.SetMetrics(deps.Metrics)

	positions := service.NewPositionService(deps.PositionStore, deps.Locks, cfg.Ladder(), a.logger)
	positions.SetEvents(events)
	positions.SetMetrics(deps.Metrics)

	execCfg := executor.DefaultConfig(cfg.Solana.NativeMint)
	execCfg.SlippageBps = cfg.Executor.SlippageBps
	execCfg.MaxAttempts = cfg.Executor.MaxAttempts
	execCfg.FeeReserveLamports = cfg.Executor.FeeReserveLamports
	execCfg.BaseFeeLamports = cfg.Executor.BaseFeeLamports
	execCfg.QuoteTimeout = cfg.Executor.QuoteTimeout.Duration
	execCfg.SubmitTimeout = cfg.Executor.SubmitTimeout.Duration
	execCfg.ConfirmTimeout = cfg.Executor.ConfirmTimeout.Duration
	execCfg.RecheckTimeout = cfg.Executor.RecheckTimeout.Duration

	exec := executor.New(deps.Swaps, deps.Chain, execCfg,
		executor.EscalatingFees{
			InitialLamports: cfg.Executor.InitialPriorityFee,
			Multiplier:      cfg.Executor.PriorityFeeMultiplier,
			CeilingLamports: cfg.Executor.MaxPriorityFee,
		},
		executor.ExponentialBackoff(cfg.Executor.BackoffInitial.Duration, cfg.Executor.BackoffMax.Duration),
	)
	exec.SetMetrics(deps.Metrics)
	execLog := a.logger.With(slog.String("component", "executor"))
	exec.SetAttemptHook(func(r executor.AttemptReport) {
		attrs := []slog.Attr{
			slog.String("side", string(r.Side)),
			slog.String("token_mint", r.TokenMint),
			slog.Int("attempt", r.Attempt),
			slog.Uint64("priority_fee", r.PriorityFee),
			slog.String("signature", r.Signature),
		}
		if r.Err != nil {
			attrs = append(attrs, slog.Any("kind", r.Kind), slog.String("error", r.Err.Error()))
		}
		execLog.LogAttrs(context.Background(), slog.LevelDebug, "swap attempt", attrs...)
	})

	trades := service.NewTradeService(exec, deps.Keyring, positions, deps.TradeStore, deps.AuditStore, deps.Locks, a.logger)
	trades.SetRisk(service.NewRiskService(deps.PositionStore, service.RiskConfig{
		MaxBuyNative:     cfg.MaxBuyNative(),
		MaxOpenPositions: cfg.Risk.MaxOpenPositions,
	}, a.logger))
	trades.SetDeduper(deps.Deduper, cfg.Executor.DedupTTL.Duration)
	trades.SetEvents(events)

	return &services{
		prices:    prices,
		positions: positions,
		trades:    trades,
		portfolio: service.NewPortfolioService(positions, prices, a.logger),
	}
}

// FullMode serves the HTTP API and runs the position refresher.
func (a *App) FullMode(ctx context.Context, deps *Dependencies, svc *services) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startSweeper(ctx, g, deps)
	a.startRefresher(ctx, g, svc)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svc)
	}
	return g.Wait()
}

// ServerMode serves the HTTP API only; valuations happen on request.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies, svc *services) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startSweeper(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps, svc)
	return g.Wait()
}

// MonitorMode runs the position refresher without the HTTP API.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies, svc *services) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startSweeper(ctx, g, deps)
	a.startRefresher(ctx, g, svc)
	return g.Wait()
}

// startRefresher values every open position on an interval so milestones
// advance without anyone asking for a portfolio.
func (a *App) startRefresher(ctx context.Context, g *errgroup.Group, svc *services) {
	interval := a.cfg.Positions.RefreshInterval.Duration
	if interval <= 0 {
		return
	}
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				priced, err := svc.portfolio.RefreshOpen(ctx)
				if err != nil {
					a.logger.WarnContext(ctx, "position refresh failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				a.logger.DebugContext(ctx, "positions refreshed", slog.Int("priced", priced))
			}
		}
	})
}

// startSweeper prunes in-process caches. It is a no-op when Redis backs them.
func (a *App) startSweeper(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if len(deps.Sweepers) == 0 {
		return
	}
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				for _, sweep := range deps.Sweepers {
					sweep()
				}
			}
		}
	})
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *services) {
	checks := make(map[string]handler.HealthCheck, len(deps.Health))
	for name, fn := range deps.Health {
		checks[name] = fn
	}

	srv := server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		APIKey:       a.cfg.Server.APIKey,
		RateLimitRPS: a.cfg.Server.RateLimitRPS,
		RateBurst:    a.cfg.Server.RateBurst,
	}, server.Handlers{
		Health:    handler.NewHealthHandler(checks, a.logger),
		Trades:    handler.NewTradeHandler(svc.trades, a.logger),
		Portfolio: handler.NewPortfolioHandler(svc.portfolio, a.logger),
		Prices:    handler.NewPriceHandler(svc.prices, a.logger),
		Archive:   handler.NewArchiveHandler(deps.Archiver, a.logger),
		Metrics:   deps.Metrics.Handler(),
	}, deps.Metrics, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
