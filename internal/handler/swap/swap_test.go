package swap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomport/solver/internal/engine"
	"github.com/atomport/solver/internal/model"
	"github.com/atomport/solver/internal/monitoring"
	"github.com/atomport/solver/internal/saga"
	"github.com/atomport/solver/internal/store"
	"github.com/atomport/solver/internal/store/storemock"
	"github.com/atomport/solver/internal/types/environments"
	"github.com/atomport/solver/internal/utils/logger"
)

// callSink stands in for a swap saga: it answers every mailbox call with
// the canned reply.
type callSink struct {
	id      string
	started chan struct{}
	reply   interface{}
}

func (p *callSink) ID() string   { return p.id }
func (p *callSink) Kind() string { return saga.Kind }

func (p *callSink) Run(ctx context.Context, mailbox *engine.Mailbox) error {
	close(p.started)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case call := <-mailbox.Calls():
			call.Reply(p.reply, nil)
		}
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store, *engine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	_, stores := storemock.New()
	eng := engine.New(monitoring.NewSolverMetrics(), logger.New(environments.Test))
	t.Cleanup(eng.Shutdown)

	h := New(eng, nil, stores.Swap, logger.New(environments.Test))

	router := gin.New()
	router.GET("/api/v1/swaps/:commit_id", h.GetSwap)
	router.POST("/api/v1/swaps/:commit_id/lock-signature", h.AddLockSignature)
	return router, stores, eng
}

func seedSwap(t *testing.T, stores *store.Store) *model.Swap {
	t.Helper()

	swap, err := stores.Swap.Create(nil, &model.Swap{
		CommitID:           "abc",
		SourceNetwork:      "eth",
		SourceAsset:        "ETH",
		SourceAddress:      "0xalice",
		DestinationNetwork: "base",
		DestinationAsset:   "ETH",
		DestinationAddress: "0xalice-base",
		SourceAmount:       "2",
		DestinationAmount:  "1.994",
		Hashlock:           "0xhashlock",
		Timelock:           time.Now().Add(time.Hour).Unix(),
		Status:             model.SwapStatusAwaitingLockConfirmation,
	})
	require.NoError(t, err)

	_, err = stores.Transaction.Create(nil, &model.Transaction{
		SwapID:  swap.ID,
		Type:    model.TransactionTypeLock,
		Network: "base",
		Hash:    "0xlock",
		Status:  model.TransactionStatusCompleted,
	})
	require.NoError(t, err)
	return swap
}

func TestGetSwapNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/swaps/missing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSwapReturnsLedgerState(t *testing.T) {
	router, stores, _ := newTestRouter(t)
	seedSwap(t, stores)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/swaps/abc", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data SwapResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "abc", body.Data.CommitID)
	assert.Equal(t, string(model.SwapStatusAwaitingLockConfirmation), body.Data.Status)
	assert.Equal(t, "1.994", body.Data.DestinationAmount)
	assert.False(t, body.Data.SagaRunning)
	require.Len(t, body.Data.Transactions, 1)
	assert.Equal(t, "0xlock", body.Data.Transactions[0].Hash)
}

func TestGetSwapReportsRunningSaga(t *testing.T) {
	router, stores, eng := newTestRouter(t)
	seedSwap(t, stores)

	sink := &callSink{id: saga.ProcessID("abc"), started: make(chan struct{}), reply: true}
	require.NoError(t, eng.StartUnique(sink))
	<-sink.started

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/swaps/abc", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data SwapResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Data.SagaRunning)
}

func TestAddLockSignatureNoRunningSaga(t *testing.T) {
	router, stores, _ := newTestRouter(t)
	seedSwap(t, stores)

	payload := bytes.NewBufferString(`{"signature":"0xdeadbeef"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/swaps/abc/lock-signature", payload)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddLockSignatureValidation(t *testing.T) {
	router, _, _ := newTestRouter(t)

	payload := bytes.NewBufferString(`{"signature":""}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/swaps/abc/lock-signature", payload)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddLockSignatureDelivered(t *testing.T) {
	router, stores, eng := newTestRouter(t)
	seedSwap(t, stores)

	sink := &callSink{id: saga.ProcessID("abc"), started: make(chan struct{}), reply: true}
	require.NoError(t, eng.StartUnique(sink))
	<-sink.started

	payload := bytes.NewBufferString(`{"signature":"0xdeadbeef","secret":"cafebabe"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/swaps/abc/lock-signature", payload)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
