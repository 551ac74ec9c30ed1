package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/atomport/solver/internal/chains"
	"github.com/atomport/solver/internal/engine"
	"github.com/atomport/solver/internal/handler/health"
	"github.com/atomport/solver/internal/handler/metrics"
	"github.com/atomport/solver/internal/handler/process"
	"github.com/atomport/solver/internal/handler/swap"
	"github.com/atomport/solver/internal/handler/transaction"
	"github.com/atomport/solver/internal/store"
	"github.com/atomport/solver/internal/utils/logger"
)

type Handler struct {
	SwapHandler        swap.IHandler
	TransactionHandler transaction.IHandler
	ProcessHandler     process.IHandler
	HealthHandler      health.IHealthHandler
	MetricsHandler     *metrics.MetricsHandler
}

func New(
	logger *logger.Logger,
	db *gorm.DB,
	stores *store.Store,
	eng *engine.Engine,
	adapters *chains.Registry,
	scannerFactory process.ScannerFactory,
	metricsRegistry *prometheus.Registry,
) *Handler {
	return &Handler{
		SwapHandler:        swap.New(eng, db, stores.Swap, logger),
		TransactionHandler: transaction.New(db, stores.Swap, stores.Transaction, logger),
		ProcessHandler:     process.New(eng, scannerFactory, logger),
		HealthHandler:      health.New(logger, db, adapters),
		MetricsHandler:     metrics.NewMetricsHandler(metricsRegistry),
	}
}
