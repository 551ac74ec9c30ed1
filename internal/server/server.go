package server

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/atomport/solver/internal/chains"
	"github.com/atomport/solver/internal/chains/evm"
	"github.com/atomport/solver/internal/chains/solana"
	"github.com/atomport/solver/internal/coordinator"
	"github.com/atomport/solver/internal/engine"
	"github.com/atomport/solver/internal/executor"
	"github.com/atomport/solver/internal/handler"
	"github.com/atomport/solver/internal/model"
	"github.com/atomport/solver/internal/monitoring"
	"github.com/atomport/solver/internal/quoting"
	"github.com/atomport/solver/internal/saga"
	"github.com/atomport/solver/internal/scanner"
	"github.com/atomport/solver/internal/signer"
	"github.com/atomport/solver/internal/store"
	pgstore "github.com/atomport/solver/internal/store/postgres"
	"github.com/atomport/solver/internal/sweeper"
	"github.com/atomport/solver/internal/transport/http"
	"github.com/atomport/solver/internal/utils/config"
	"github.com/atomport/solver/internal/utils/logger"
	"github.com/atomport/solver/internal/utils/webhook"
)

func Init() {
	appConfig := config.New()
	logger := logger.New(appConfig.Environment)

	db := pgstore.New(appConfig, logger)
	s := store.New()

	metricsRegistry := prometheus.NewRegistry()
	solverMetrics := monitoring.NewSolverMetrics()
	solverMetrics.MustRegister(metricsRegistry)

	networks, err := s.Network.All(db)
	if err != nil {
		logger.Fatal("failed to load network configuration", map[string]string{
			"error": err.Error(),
		})
	}

	adapters := chains.NewRegistry()
	networkTypes := make(map[string]model.NetworkType)
	for i := range networks {
		n := networks[i]
		networkTypes[n.Name] = n.Type

		adapter, err := newAdapter(db, s, n, logger)
		if err != nil {
			logger.Fatal("failed to init chain adapter", map[string]string{
				"network": n.Name,
				"error":   err.Error(),
			})
		}
		if adapter == nil {
			logger.Error("no adapter for network type, skipping", map[string]string{
				"network": n.Name,
				"type":    string(n.Type),
			})
			continue
		}

		adapters.Register(monitoring.NewCircuitBreakerAdapter(
			adapter, monitoring.DefaultCircuitBreakerConfig, solverMetrics, logger,
		))
	}

	var signingService signer.ISigner
	if appConfig.Signer.Endpoint != "" {
		signingService = signer.NewRemote(appConfig.Signer, logger)
	} else {
		logger.Info("no signer endpoint configured, using local dev signer")
		signingService = signer.NewLocal(appConfig.Signer.DevKeys, networkTypes)
	}

	locker := coordinator.NewPostgresLocker(db)
	coord := coordinator.New(db, s.ReservedNonce, locker, adapters, appConfig.Executor.LockTTL, logger)
	exec := executor.New(db, s.Transaction, adapters, signingService, coord, solverMetrics, appConfig, logger)

	eng := engine.New(solverMetrics, logger)

	sagaDeps := saga.Deps{
		DB:       db,
		Swaps:    s.Swap,
		Networks: s.Network,
		Quoter:   quoting.New(),
		Executor: exec,
		Metrics:  solverMetrics,
		Logger:   logger,
	}

	recoverActiveSagas(eng, sagaDeps)

	scannerFactory := func(networkName string) (engine.Process, error) {
		network, err := s.Network.GetByName(db, networkName)
		if err != nil {
			return nil, errors.Wrapf(err, "network %s", networkName)
		}
		adapter, err := adapters.Get(networkName)
		if err != nil {
			return nil, err
		}
		return scanner.New(*network, adapter, eng, sagaDeps, appConfig.Scanner), nil
	}

	for _, name := range adapters.Networks() {
		proc, err := scannerFactory(name)
		if err != nil {
			logger.Error("failed to build scanner", map[string]string{
				"network": name,
				"error":   err.Error(),
			})
			continue
		}
		if err := eng.StartUnique(proc); err != nil {
			logger.Error("failed to start scanner", map[string]string{
				"network": name,
				"error":   err.Error(),
			})
		}
	}

	sweep := sweeper.New(eng, sagaDeps)
	webhookClient := webhook.New(logger)

	c := cron.New()
	c.AddFunc(appConfig.Sweeper.Schedule, sweep.Run)
	c.AddFunc("@every 5m", func() {
		webhookClient.CallHeartbeatWebhook(context.Background(), appConfig.Webhook.HeartbeatURL)
	})
	c.Start()

	h := handler.New(logger, db, s, eng, adapters, scannerFactory, metricsRegistry)
	httpServer := http.NewHttpServer(appConfig, logger, h)

	if err := httpServer.Run(":" + appConfig.ApiServer.Port); err != nil {
		logger.Error("http server stopped", map[string]string{
			"error": err.Error(),
		})
	}

	c.Stop()
	eng.Shutdown()
}

// newAdapter builds the chain adapter matching the network's declared
// type. Unknown types return nil so a partially-configured database does
// not take the whole solver down.
func newAdapter(db *gorm.DB, s *store.Store, n model.Network, logger *logger.Logger) (chains.Adapter, error) {
	switch n.Type {
	case model.NetworkTypeEVM:
		tokens, err := s.Network.ListTokens(db, n.Name)
		if err != nil {
			return nil, err
		}
		return evm.New(n, tokens, logger)
	case model.NetworkTypeSolana:
		return solana.New(n, logger)
	default:
		return nil, nil
	}
}

// recoverActiveSagas restarts the saga for every swap left in a
// non-terminal status by the previous run.
func recoverActiveSagas(eng *engine.Engine, sagaDeps saga.Deps) {
	active, err := sagaDeps.Swaps.FindActive(sagaDeps.DB)
	if err != nil {
		sagaDeps.Logger.Fatal("failed to query active swaps", map[string]string{
			"error": err.Error(),
		})
	}

	for i := range active {
		swap := active[i]
		err := eng.StartUnique(saga.NewFromSwap(sagaDeps, &swap))
		if err != nil && !errors.Is(err, engine.ErrProcessAlreadyRunning) {
			sagaDeps.Logger.Error("failed to recover saga", map[string]string{
				"commit_id": swap.CommitID,
				"error":     err.Error(),
			})
			continue
		}
		sagaDeps.Logger.Info("recovered swap saga", map[string]string{
			"commit_id": swap.CommitID,
			"status":    string(swap.Status),
		})
	}
}
