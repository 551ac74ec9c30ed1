package swap

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/atomport/solver/internal/engine"
	"github.com/atomport/solver/internal/saga"
	swapstore "github.com/atomport/solver/internal/store/swap"
	"github.com/atomport/solver/internal/utils/logger"
	"github.com/atomport/solver/internal/view"
)

type handler struct {
	engine *engine.Engine
	db     *gorm.DB
	swaps  swapstore.IStore
	logger *logger.Logger
}

func New(eng *engine.Engine, db *gorm.DB, swaps swapstore.IStore, logger *logger.Logger) IHandler {
	return &handler{
		engine: eng,
		db:     db,
		swaps:  swaps,
		logger: logger,
	}
}

// SwapResponse is the public view of a swap's ledger state.
type SwapResponse struct {
	CommitID           string                `json:"commit_id"`
	Status             string                `json:"status"`
	SourceNetwork      string                `json:"source_network"`
	SourceAsset        string                `json:"source_asset"`
	DestinationNetwork string                `json:"destination_network"`
	DestinationAsset   string                `json:"destination_asset"`
	SourceAmount       string                `json:"source_amount"`
	DestinationAmount  string                `json:"destination_amount"`
	FeeAmount          string                `json:"fee_amount"`
	Hashlock           string                `json:"hashlock"`
	Timelock           int64                 `json:"timelock"`
	SagaRunning        bool                  `json:"saga_running"`
	Transactions       []SwapTransactionItem `json:"transactions"`
}

type SwapTransactionItem struct {
	Type          string `json:"type"`
	Network       string `json:"network"`
	Hash          string `json:"hash"`
	Status        string `json:"status"`
	Confirmations uint64 `json:"confirmations"`
	FeeAmount     string `json:"fee_amount"`
	FeeAsset      string `json:"fee_asset"`
}

// GetSwap godoc
// @Summary Get swap by commit id
// @Description Returns the swap ledger entry and its on-chain legs
// @id getSwap
// @Tags Swap
// @Produce json
// @Param commit_id path string true "Commit id"
// @Success 200 {object} view.Response[SwapResponse]
// @Failure 404 {object} view.ErrorResponse
// @Router /swaps/{commit_id} [get]
func (h *handler) GetSwap(c *gin.Context) {
	commitID := c.Param("commit_id")

	record, err := h.swaps.GetByCommitID(h.db, commitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, view.CreateResponse[any](nil, err, nil, "swap not found"))
			return
		}
		h.logger.Error("[GetSwap][GetByCommitID]", map[string]string{
			"commit_id": commitID,
			"error":     err.Error(),
		})
		c.JSON(http.StatusInternalServerError, view.CreateResponse[any](nil, err, nil, "failed to load swap"))
		return
	}

	resp := SwapResponse{
		CommitID:           record.CommitID,
		Status:             string(record.Status),
		SourceNetwork:      record.SourceNetwork,
		SourceAsset:        record.SourceAsset,
		DestinationNetwork: record.DestinationNetwork,
		DestinationAsset:   record.DestinationAsset,
		SourceAmount:       record.SourceAmount,
		DestinationAmount:  record.DestinationAmount,
		FeeAmount:          record.FeeAmount,
		Hashlock:           record.Hashlock,
		Timelock:           record.Timelock,
		SagaRunning:        h.engine.IsRunning(saga.ProcessID(record.CommitID)),
	}
	for _, txn := range record.Transactions {
		resp.Transactions = append(resp.Transactions, SwapTransactionItem{
			Type:          string(txn.Type),
			Network:       txn.Network,
			Hash:          txn.Hash,
			Status:        string(txn.Status),
			Confirmations: txn.Confirmations,
			FeeAmount:     txn.FeeAmount,
			FeeAsset:      txn.FeeAsset,
		})
	}

	c.JSON(http.StatusOK, view.CreateResponse(resp, nil, nil, ""))
}

// AddLockSignature godoc
// @Summary Submit a pre-authorized unlock signature
// @Description Delivers the lock signature to the running swap saga
// @id addLockSignature
// @Tags Swap
// @Accept json
// @Produce json
// @Param commit_id path string true "Commit id"
// @Param request body saga.AddLockSignatureRequest true "Signature payload"
// @Success 200 {object} view.MessageResponse
// @Failure 400 {object} view.ErrorResponse
// @Failure 404 {object} view.ErrorResponse
// @Router /swaps/{commit_id}/lock-signature [post]
func (h *handler) AddLockSignature(c *gin.Context) {
	var req saga.AddLockSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("[AddLockSignature][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}
	req.CommitID = c.Param("commit_id")

	if err := validator.New().Struct(req); err != nil {
		h.logger.Error("[AddLockSignature][Validator]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	_, err := h.engine.Call(c.Request.Context(), saga.ProcessID(req.CommitID), saga.CallAddLockSignature, &req)
	if err != nil {
		if errors.Is(err, engine.ErrProcessNotFound) {
			c.JSON(http.StatusNotFound, view.CreateResponse[any](nil, err, nil, "no running saga for commit id"))
			return
		}
		h.logger.Error("[AddLockSignature][Call]", map[string]string{
			"commit_id": req.CommitID,
			"error":     err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, nil, "signature rejected"))
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any]("signature accepted", nil, nil, ""))
}
