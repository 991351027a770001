package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"stakevault/audit"
	"stakevault/config"
	"stakevault/core/events"
	"stakevault/native/bank"
	nativecommon "stakevault/native/common"
	"stakevault/native/staking"
	"stakevault/observability/logging"
	"stakevault/observability/metrics"
	"stakevault/rpc"
	"stakevault/state"
	"stakevault/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to stakevaultd config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	var rotation *logging.FileRotation
	if cfg.Log.FilePath != "" {
		rotation = &logging.FileRotation{
			Path:       cfg.Log.FilePath,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		}
	}
	logger := logging.Setup("stakevaultd", cfg.Log.Environment, rotation)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("create data dir", "path", cfg.DataDir, "err", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		logger.Error("open state database", "err", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	manager := state.NewManager(db)
	vault := vaultAddress(cfg.NetworkName)
	stakeLedger := bank.NewLedger(manager, cfg.StakeAsset, vault)
	rewardLedger := bank.NewLedger(manager, cfg.RewardAsset, vault)

	funding, err := cfg.VaultFunding()
	if err != nil {
		logger.Error("parse vault funding", "err", err)
		os.Exit(1)
	}
	if funding.Sign() > 0 {
		// Fund only once; restarts keep whatever the vault already holds.
		balance, err := rewardLedger.BalanceOf(vault)
		if err != nil {
			logger.Error("read vault balance", "err", err)
			os.Exit(1)
		}
		if balance.Sign() == 0 {
			if err := rewardLedger.Mint(vault, funding); err != nil {
				logger.Error("fund reward vault", "err", err)
				os.Exit(1)
			}
			logger.Info("reward vault funded", "amount", funding.String())
		}
	}

	journal, err := audit.Open(filepath.Join(cfg.DataDir, "audit.db"), logger)
	if err != nil {
		logger.Error("open audit journal", "err", err)
		os.Exit(1)
	}

	pauses := nativecommon.NewPauseSet()
	stream := rpc.NewEventStream()
	emitter := events.NewMultiEmitter(
		logging.NewEventSink(logger),
		metrics.NewSink(),
		journal,
		stream,
	)

	engine := staking.NewEngine()
	engine.SetState(manager)
	engine.SetAssets(stakeLedger, rewardLedger)
	engine.SetEmitter(emitter)
	engine.SetPauses(pauses)

	rewardRate, err := cfg.RewardRate()
	if err != nil {
		logger.Error("parse reward rate", "err", err)
		os.Exit(1)
	}
	if err := engine.SetRewardRate(rewardRate); err != nil {
		logger.Error("set reward rate", "err", err)
		os.Exit(1)
	}

	server := rpc.NewServer(engine, pauses, rpc.Config{
		JWTSecret:       cfg.AdminJWTSecret,
		RateLimitPerMin: cfg.RateLimitPerMin,
	}, logger)
	server.SetStream(stream)
	server.SetAudit(auditAdapter{journal: journal})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go refreshGauges(rootCtx, engine, pauses)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("stakevaultd listening", "addr", cfg.ListenAddress, "network", cfg.NetworkName)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("forcing shutdown", "err", err)
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("serve http", "err", err)
			os.Exit(1)
		}
	}
}

// refreshGauges keeps the pool-level collectors current. Counters are driven
// directly off the event stream; the gauges have to be polled.
func refreshGauges(ctx context.Context, engine *staking.Engine, pauses *nativecommon.PauseSet) {
	registry := metrics.Staking()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if info, err := engine.PoolSnapshot(); err == nil {
				staked, _ := new(big.Float).SetInt(info.TotalStaked).Float64()
				registry.SetTotalStaked(staked)
			}
			registry.SetPaused(pauses.IsPaused(rpc.ModuleName))
		}
	}
}

// vaultAddress derives the module vault deterministically from the network
// name so every node agrees on it without extra configuration.
func vaultAddress(network string) [20]byte {
	sum := sha256.Sum256([]byte("stakevault/reward-vault/" + network))
	var out [20]byte
	copy(out[:], sum[:20])
	return out
}

// auditAdapter converts journal rows into their wire representation.
type auditAdapter struct {
	journal *audit.Journal
}

func (a auditAdapter) Recent(limit int) ([]rpc.AuditRecord, error) {
	records, err := a.journal.Recent(limit)
	if err != nil {
		return nil, err
	}
	out := make([]rpc.AuditRecord, 0, len(records))
	for _, record := range records {
		out = append(out, rpc.AuditRecord{
			ID:        record.ID.String(),
			EventType: record.EventType,
			Owner:     record.Owner,
			Index:     record.StakeIndex,
			Amount:    record.Amount,
			Reward:    record.Reward,
			CreatedAt: record.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out, nil
}
