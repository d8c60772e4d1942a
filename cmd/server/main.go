package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"astra.mc/internal/config"
	persistlog "astra.mc/internal/persistence/log"
	"astra.mc/internal/protocol"
	"astra.mc/internal/sim/world"
	"astra.mc/internal/sim/world/terrain/gen"
	"astra.mc/internal/transport/mc"
	"astra.mc/internal/transport/observer"
)

func main() {
	var (
		configPath = flag.String("config", "./server.yaml", "config file (.yaml or .toml); missing means defaults")
		port       = flag.Int("port", 0, "game listen port (overrides config)")
		seed       = flag.Uint("seed", 0, "world seed (overrides config)")
		rngSeed    = flag.Uint("rng_seed", 0, "gameplay rng seed (overrides config)")
		worldgen   = flag.String("worldgen", "", "simple or complex (overrides config)")
		observeAt  = flag.String("observer", "", "observer http listen address, or off (overrides config)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite tick/audit index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "seed":
			cfg.WorldSeed = uint32(*seed)
		case "rng_seed":
			cfg.RngSeed = uint32(*rngSeed)
		case "worldgen":
			cfg.Worldgen = *worldgen
		case "observer":
			cfg.ObserverAddr = *observeAt
		case "data":
			cfg.DataDir = *dataDir
		}
	})
	if *disableDB {
		cfg.IndexBackend = "none"
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	srv := mc.NewServer(mc.Config{
		Motd:             cfg.MOTD,
		MaxConns:         cfg.MaxPlayers + 8,
		OutboxSize:       cfg.OutboxSize,
		PacketsPerSecond: float64(cfg.PlayerPacketRate),
		PacketBurst:      cfg.PlayerPacketBurst,
	}, log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds))

	var opts protocol.DispatcherOptions
	if *cfg.SendBrand {
		opts.Brand = cfg.Brand
	}
	disp := protocol.NewDispatcher(srv, opts)

	w, err := world.New(worldConfig(cfg), disp, log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	w.SetYielder(&world.IntervalYielder{
		Interval: time.Duration(cfg.YieldIntervalMs) * time.Millisecond,
		Delay:    time.Duration(cfg.YieldTicks) * time.Millisecond,
	})

	tickLog := persistlog.NewTickLogger(cfg.DataDir)
	defer tickLog.Close()
	auditLog := persistlog.NewAuditLogger(cfg.DataDir)
	defer auditLog.Close()
	ticks := persistlog.MultiTick{tickLog}
	audits := persistlog.MultiAudit{auditLog}

	idx, err := openRuntimeIndex(cfg)
	if err != nil {
		logger.Fatalf("index: %v", err)
	}
	if idx != nil {
		defer func() {
			_ = idx.Close()
			logger.Printf("index closed: %+v", idx.Stats())
		}()
		if err := idx.RecordWorld(w.Config()); err != nil {
			logger.Printf("index: record world: %v", err)
		}
		ticks = append(ticks, idx)
		audits = append(audits, idx)
	}

	ctx, cancel := signalContext()
	defer cancel()

	var httpSrv *http.Server
	if addr := strings.TrimSpace(cfg.ObserverAddr); addr != "" && addr != "off" {
		obs := observer.NewServer(w, log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds))
		w.SetObserver(obs)
		audits = append(audits, obs)
		httpSrv = &http.Server{Addr: addr, Handler: obs.Handler()}
		go func() {
			logger.Printf("observer listening on %s", addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("observer: %v", err)
			}
		}()
	}
	w.SetTickLogger(ticks)
	w.SetAuditLogger(audits)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		logger.Fatalf("listen: %v", err)
	}
	logger.Printf("seed=%d worldgen=%s vd=%d listening on %s", cfg.WorldSeed, cfg.Worldgen, cfg.ViewDistance, ln.Addr())

	worldDone := make(chan error, 1)
	go func() { worldDone <- w.Run(ctx) }()

	if err := srv.Serve(ctx, ln, w); err != nil {
		logger.Printf("serve: %v", err)
		cancel()
	}
	if err := <-worldDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("world: %v", err)
	}

	if httpSrv != nil {
		shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpSrv.Shutdown(shutdownCtx)
		cancel2()
	}
	logger.Printf("stopped at tick %d", w.CurrentTick())
}

func worldConfig(c config.Config) world.WorldConfig {
	mode := c.Mode()
	budget := c.GenBudgetSimple
	if mode == gen.Complex {
		budget = c.GenBudgetComplex
	}
	return world.WorldConfig{
		WorldSeed:          c.WorldSeed,
		RngSeed:            c.RngSeed,
		Mode:               mode,
		Height:             c.WorldHeight,
		Border:             c.WorldBorder,
		ViewDistance:       c.ViewDistance,
		MaxPlayers:         c.MaxPlayers,
		MaxMobs:            c.MaxMobs,
		MaxBlockChanges:    c.MaxBlockChanges,
		MaxWorldEdits:      c.MaxWorldEdits,
		InboxSize:          c.InboxSize,
		TickRateHz:         c.TickRateHz,
		DayLength:          c.DayLength,
		TimeStep:           c.TimeStep,
		GenBudget:          budget,
		SpawnIntervalTicks: c.SpawnIntervalTicks,
		MobDespawnChunks:   c.MobDespawnChunks,
		KeepAliveTicks:     c.KeepAliveTicks,
		TimeoutTicks:       c.TimeoutTicks,
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
