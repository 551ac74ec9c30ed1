package process

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/atomport/solver/internal/engine"
	"github.com/atomport/solver/internal/scanner"
	"github.com/atomport/solver/internal/utils/logger"
	"github.com/atomport/solver/internal/view"
)

// ScannerFactory builds a scanner process for a configured network. The
// server wires this so the handler stays ignorant of adapter construction.
type ScannerFactory func(networkName string) (engine.Process, error)

type handler struct {
	engine         *engine.Engine
	scannerFactory ScannerFactory
	logger         *logger.Logger
}

func New(eng *engine.Engine, scannerFactory ScannerFactory, logger *logger.Logger) IHandler {
	return &handler{
		engine:         eng,
		scannerFactory: scannerFactory,
		logger:         logger,
	}
}

// List godoc
// @Summary Enumerate running processes
// @Description Lists ids of running sagas and scanners, optionally filtered by kind
// @id listProcesses
// @Tags Process
// @Produce json
// @Param kind query string false "Process kind (swap_saga, event_scanner)"
// @Success 200 {object} view.Response[[]string]
// @Router /processes [get]
func (h *handler) List(c *gin.Context) {
	ids := h.engine.Running(c.Query("kind"))
	c.JSON(http.StatusOK, view.CreateResponse(ids, nil, nil, ""))
}

// Terminate godoc
// @Summary Terminate a process
// @Description Cancels the process and waits for it to stop
// @id terminateProcess
// @Tags Process
// @Produce json
// @Param id path string true "Process id"
// @Success 200 {object} view.MessageResponse
// @Failure 404 {object} view.ErrorResponse
// @Router /processes/{id} [delete]
func (h *handler) Terminate(c *gin.Context) {
	id := c.Param("id")

	if err := h.engine.Terminate(id); err != nil {
		if errors.Is(err, engine.ErrProcessNotFound) {
			c.JSON(http.StatusNotFound, view.CreateResponse[any](nil, err, nil, "process not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, view.CreateResponse[any](nil, err, nil, "failed to terminate process"))
		return
	}

	h.logger.Info("process terminated by operator", map[string]string{
		"process_id": id,
	})
	c.JSON(http.StatusOK, view.CreateResponse[any]("terminated", nil, nil, ""))
}

// ScannerStatus godoc
// @Summary Scanner observability query
// @Description Returns the scanner's cursor and dedup window for a network
// @id scannerStatus
// @Tags Process
// @Produce json
// @Param network path string true "Network name"
// @Success 200 {object} view.Response[scanner.StatusReply]
// @Failure 404 {object} view.ErrorResponse
// @Router /scanners/{network} [get]
func (h *handler) ScannerStatus(c *gin.Context) {
	network := c.Param("network")

	reply, err := h.engine.Call(c.Request.Context(), scanner.ProcessID(network), scanner.CallStatus, nil)
	if err != nil {
		if errors.Is(err, engine.ErrProcessNotFound) {
			c.JSON(http.StatusNotFound, view.CreateResponse[any](nil, err, nil, "scanner not running"))
			return
		}
		c.JSON(http.StatusInternalServerError, view.CreateResponse[any](nil, err, nil, "scanner query failed"))
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse(reply, nil, nil, ""))
}

type StartScannerRequest struct {
	Network string `json:"network" validate:"required"`
}

// StartScanner godoc
// @Summary Start an event scanner
// @Description Starts the scanner for a configured network if not already running
// @id startScanner
// @Tags Process
// @Accept json
// @Produce json
// @Param request body StartScannerRequest true "Network to scan"
// @Success 200 {object} view.MessageResponse
// @Failure 400 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Router /scanners [post]
func (h *handler) StartScanner(c *gin.Context) {
	var req StartScannerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}
	if err := validator.New().Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	proc, err := h.scannerFactory(req.Network)
	if err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "unknown network"))
		return
	}

	if err := h.engine.StartUnique(proc); err != nil {
		if errors.Is(err, engine.ErrProcessAlreadyRunning) {
			c.JSON(http.StatusConflict, view.CreateResponse[any](nil, err, nil, "scanner already running"))
			return
		}
		c.JSON(http.StatusInternalServerError, view.CreateResponse[any](nil, err, nil, "failed to start scanner"))
		return
	}

	h.logger.Info("scanner started by operator", map[string]string{
		"network": req.Network,
	})
	c.JSON(http.StatusOK, view.CreateResponse[any]("scanner started", nil, nil, ""))
}
