package handler

import (
	"context"
	"strconv"

	"wallet-service/internal/adapter/http/dto"
	"wallet-service/internal/adapter/http/middleware"
	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"
	"wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
	idemSvc   ports.IdempotencyService
	log       zerolog.Logger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, idemSvc ports.IdempotencyService, log zerolog.Logger) *WalletHandler {
	return &WalletHandler{
		walletSvc: walletSvc,
		idemSvc:   idemSvc,
		log:       log,
	}
}

// Ping handles GET /wallet/health.
func (h *WalletHandler) Ping(c *gin.Context) {
	response.OK(c, "Pong")
}

// Get handles GET /wallet/:id.
func (h *WalletHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("wallet id must be a valid UUID"))
		return
	}

	wallet, err := h.walletSvc.Fetch(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if wallet == nil {
		response.NotFound(c)
		return
	}

	response.OK(c, wallet)
}

// Create handles POST /wallet.
func (h *WalletHandler) Create(c *gin.Context) {
	key, ok := h.idempotencyKey(c)
	if !ok {
		return
	}

	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if req.Balance.IsNegative() {
		response.Error(c, apperror.Validation("balance cannot be negative"))
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		response.Error(c, apperror.Validation("wallet id must be a valid UUID"))
		return
	}

	ctx := c.Request.Context()
	cached, acquired, err := h.idemSvc.Acquire(ctx, key)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !acquired {
		response.OK(c, cached)
		return
	}

	wallet, err := h.walletSvc.Create(ctx, &domain.Wallet{ID: id, Balance: *req.Balance})
	if err != nil {
		h.release(ctx, key)
		response.Error(c, err)
		return
	}

	h.complete(ctx, key, wallet)
	response.Created(c, wallet)
}

// UpdateBalance handles PATCH /wallet/:id.
func (h *WalletHandler) UpdateBalance(c *gin.Context) {
	key, ok := h.idempotencyKey(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("wallet id must be a valid UUID"))
		return
	}
	addingFunds, err := strconv.ParseBool(c.Query("isAddingFunds"))
	if err != nil {
		response.Error(c, apperror.Validation("isAddingFunds must be a boolean"))
		return
	}
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		response.Error(c, apperror.Validation("amount must be a decimal number"))
		return
	}

	ctx := c.Request.Context()
	cached, acquired, err := h.idemSvc.Acquire(ctx, key)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !acquired {
		response.OK(c, cached)
		return
	}

	wallet, err := h.walletSvc.Adjust(ctx, id, amount, addingFunds)
	if err != nil {
		h.release(ctx, key)
		response.Error(c, err)
		return
	}
	if wallet == nil {
		h.release(ctx, key)
		response.NotFound(c)
		return
	}

	h.complete(ctx, key, wallet)
	response.OK(c, wallet)
}

// idempotencyKey parses the Idempotency-Key header. On failure it writes the
// error response itself and returns ok=false.
func (h *WalletHandler) idempotencyKey(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetHeader(middleware.HeaderIdempotencyKey)
	if raw == "" {
		response.Error(c, apperror.Validation("Idempotency-Key header is required"))
		return uuid.Nil, false
	}
	key, err := uuid.Parse(raw)
	if err != nil {
		response.Error(c, apperror.Validation("Idempotency-Key must be a valid UUID"))
		return uuid.Nil, false
	}
	return key, true
}

// complete records the result for replay. Caching is best effort: the wallet
// mutation already happened, so a store hiccup must not fail the request.
func (h *WalletHandler) complete(ctx context.Context, key uuid.UUID, w *domain.Wallet) {
	if err := h.idemSvc.Complete(ctx, key, w); err != nil {
		h.log.Warn().Err(err).Str("idempotency_key", key.String()).Msg("failed to cache idempotent response")
	}
}

// release frees the in-flight claim so the client can retry a failed request.
func (h *WalletHandler) release(ctx context.Context, key uuid.UUID) {
	if err := h.idemSvc.Release(ctx, key); err != nil {
		h.log.Warn().Err(err).Str("idempotency_key", key.String()).Msg("failed to release idempotency claim")
	}
}
