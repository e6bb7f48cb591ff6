package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hostpulse/airbnb-sync/internal/model"
	"github.com/hostpulse/airbnb-sync/internal/repository"
	"github.com/hostpulse/airbnb-sync/internal/syncer"
	"github.com/hostpulse/airbnb-sync/pkg/logger"
)

// SyncHandler 同步触发与运行历史处理器
type SyncHandler struct {
	coordinator *syncer.Coordinator
	runs        *repository.RunRepository
}

// NewSyncHandler 创建同步处理器
func NewSyncHandler(coordinator *syncer.Coordinator, runs *repository.RunRepository) *SyncHandler {
	return &SyncHandler{coordinator: coordinator, runs: runs}
}

// Trigger 手动触发账户同步
// POST /api/v1/accounts/:id/sync
// 同步异步执行; 同账户已有在途同步时返回 409, 请求被丢弃而非排队
func (h *SyncHandler) Trigger(c *gin.Context) {
	accountID := c.Param("id")

	err := h.coordinator.TriggerSync(accountID, model.RunTriggerManual)
	switch {
	case err == nil:
		Accepted(c, gin.H{"account_id": accountID, "status": "sync started"})
	case errors.Is(err, syncer.ErrAccountNotFound):
		NotFound(c, "account not found")
	case errors.Is(err, syncer.ErrSyncInFlight):
		Conflict(c, "sync already in flight for this account")
	case errors.Is(err, syncer.ErrAccountInactive):
		UnprocessableEntity(c, "account is inactive or deleted")
	case errors.Is(err, syncer.ErrMissingCredentials):
		UnprocessableEntity(c, "account has no usable credentials")
	default:
		logger.Error("failed to trigger sync", zap.String("account_id", accountID), zap.Error(err))
		InternalError(c)
	}
}

// ListRuns 账户同步运行历史
// GET /api/v1/accounts/:id/runs?limit=20
func (h *SyncHandler) ListRuns(c *gin.Context) {
	accountID := c.Param("id")

	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			BadRequest(c, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListByAccount(c.Request.Context(), accountID, limit)
	if err != nil {
		logger.Error("failed to list sync runs", zap.String("account_id", accountID), zap.Error(err))
		InternalError(c)
		return
	}

	Success(c, gin.H{"items": runs, "count": len(runs)})
}

// LatestRun 账户最近一次同步运行
// GET /api/v1/accounts/:id/runs/latest
func (h *SyncHandler) LatestRun(c *gin.Context) {
	accountID := c.Param("id")

	run, err := h.runs.GetLatestByAccount(c.Request.Context(), accountID)
	if err != nil {
		logger.Error("failed to load latest run", zap.String("account_id", accountID), zap.Error(err))
		InternalError(c)
		return
	}
	if run == nil {
		NotFound(c, "no sync runs for this account")
		return
	}

	Success(c, run)
}
