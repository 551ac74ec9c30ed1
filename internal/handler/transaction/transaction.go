package transaction

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	swapstore "github.com/atomport/solver/internal/store/swap"
	transactionstore "github.com/atomport/solver/internal/store/transaction"
	"github.com/atomport/solver/internal/utils/logger"
	"github.com/atomport/solver/internal/view"
)

type handler struct {
	db           *gorm.DB
	swaps        swapstore.IStore
	transactions transactionstore.IStore
	logger       *logger.Logger
}

func New(db *gorm.DB, swaps swapstore.IStore, transactions transactionstore.IStore, logger *logger.Logger) IHandler {
	return &handler{
		db:           db,
		swaps:        swaps,
		transactions: transactions,
		logger:       logger,
	}
}

type TransactionItem struct {
	Type          string `json:"type"`
	Network       string `json:"network"`
	Hash          string `json:"hash"`
	Nonce         uint64 `json:"nonce"`
	Status        string `json:"status"`
	Confirmations uint64 `json:"confirmations"`
	FeeAmount     string `json:"fee_amount"`
	FeeAsset      string `json:"fee_asset"`
}

// ListBySwap godoc
// @Summary List a swap's on-chain transactions
// @Description Returns every transaction leg recorded for the swap
// @id listSwapTransactions
// @Tags Transaction
// @Produce json
// @Param commit_id path string true "Commit id"
// @Success 200 {object} view.Response[[]TransactionItem]
// @Failure 404 {object} view.ErrorResponse
// @Router /swaps/{commit_id}/transactions [get]
func (h *handler) ListBySwap(c *gin.Context) {
	commitID := c.Param("commit_id")

	record, err := h.swaps.GetByCommitID(h.db, commitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, view.CreateResponse[any](nil, err, nil, "swap not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, view.CreateResponse[any](nil, err, nil, "failed to load swap"))
		return
	}

	txns, err := h.transactions.FindBySwapID(h.db, record.ID)
	if err != nil {
		h.logger.Error("[ListBySwap][FindBySwapID]", map[string]string{
			"commit_id": commitID,
			"error":     err.Error(),
		})
		c.JSON(http.StatusInternalServerError, view.CreateResponse[any](nil, err, nil, "failed to load transactions"))
		return
	}

	items := []TransactionItem{}
	for _, txn := range txns {
		items = append(items, TransactionItem{
			Type:          string(txn.Type),
			Network:       txn.Network,
			Hash:          txn.Hash,
			Nonce:         txn.Nonce,
			Status:        string(txn.Status),
			Confirmations: txn.Confirmations,
			FeeAmount:     txn.FeeAmount,
			FeeAsset:      txn.FeeAsset,
		})
	}

	c.JSON(http.StatusOK, view.CreateResponse(items, nil, nil, ""))
}
