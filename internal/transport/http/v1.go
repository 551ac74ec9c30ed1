package http

import (
	"github.com/gin-gonic/gin"

	"github.com/atomport/solver/internal/handler"
)

func loadV1Routes(r *gin.Engine, h *handler.Handler) {
	v1 := r.Group("/api/v1")

	swaps := v1.Group("/swaps")
	{
		swaps.GET("/:commit_id", h.SwapHandler.GetSwap)
		swaps.GET("/:commit_id/transactions", h.TransactionHandler.ListBySwap)
		swaps.POST("/:commit_id/lock-signature", h.SwapHandler.AddLockSignature)
	}

	processes := v1.Group("/processes")
	{
		processes.GET("", h.ProcessHandler.List)
		processes.DELETE("/:id", h.ProcessHandler.Terminate)
	}

	scanners := v1.Group("/scanners")
	{
		scanners.POST("", h.ProcessHandler.StartScanner)
		scanners.GET("/:network", h.ProcessHandler.ScannerStatus)
	}

	healthGroup := v1.Group("/health")
	{
		healthGroup.GET("/db", h.HealthHandler.Database)
		healthGroup.GET("/chains", h.HealthHandler.Chains)
	}

	r.GET("/metrics", h.MetricsHandler.Handler())
	r.GET("/healthz", h.HealthHandler.Basic)
}
