package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hostpulse/airbnb-sync/internal/airbnb"
	"github.com/hostpulse/airbnb-sync/internal/model"
	"github.com/hostpulse/airbnb-sync/internal/repository"
	"github.com/hostpulse/airbnb-sync/pkg/logger"
)

// AccountHandler 账户管理处理器
type AccountHandler struct {
	accounts *repository.AccountRepository
	insights *repository.InsightsRepository
}

// NewAccountHandler 创建账户管理处理器
func NewAccountHandler(accounts *repository.AccountRepository, insights *repository.InsightsRepository) *AccountHandler {
	return &AccountHandler{accounts: accounts, insights: insights}
}

// CreateAccountRequest 创建/更新账户请求
type CreateAccountRequest struct {
	AccountID      string  `json:"account_id"`
	CustomerID     *string `json:"customer_id"`
	Cookie         string  `json:"cookie" binding:"required"`
	XClientVersion string  `json:"x_client_version" binding:"required"`
	UserAgent      string  `json:"user_agent" binding:"required"`
}

// Create 创建或更新账户
// POST /api/v1/accounts
// 账户ID从 cookie 的 _user_attributes 中提取; 请求体中显式给出的
// account_id 必须与 cookie 一致, 防止把凭证挂到别人的账户上
func (h *AccountHandler) Create(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	accountID, err := airbnb.ExtractAccountIDFromCookie(req.Cookie)
	if err != nil {
		BadRequest(c, "cookie does not contain a usable _user_attributes value")
		return
	}
	if req.AccountID != "" && req.AccountID != accountID {
		BadRequest(c, "account_id does not match the id embedded in the cookie")
		return
	}

	account := &model.Account{
		AccountID:      accountID,
		CustomerID:     req.CustomerID,
		AirbnbCookie:   req.Cookie,
		XClientVersion: req.XClientVersion,
		UserAgent:      req.UserAgent,
		IsActive:       true,
	}
	if err := h.accounts.CreateOrUpdate(c.Request.Context(), account); err != nil {
		logger.Error("failed to save account", zap.String("account_id", accountID), zap.Error(err))
		InternalError(c)
		return
	}

	Success(c, account)
}

// Get 查询单个账户
// GET /api/v1/accounts/:id
func (h *AccountHandler) Get(c *gin.Context) {
	account, err := h.accounts.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		logger.Error("failed to load account", zap.Error(err))
		InternalError(c)
		return
	}
	if account == nil {
		NotFound(c, "account not found")
		return
	}

	Success(c, account)
}

// List 列出账户
// GET /api/v1/accounts?active_only=true&include_deleted=false&limit=50&offset=0
func (h *AccountHandler) List(c *gin.Context) {
	filter := repository.ListFilter{
		ActiveOnly:     c.Query("active_only") == "true",
		IncludeDeleted: c.Query("include_deleted") == "true",
	}
	if err := bindPagination(c, &filter.Limit, &filter.Offset); err != nil {
		BadRequest(c, err.Error())
		return
	}

	accounts, err := h.accounts.List(c.Request.Context(), filter)
	if err != nil {
		logger.Error("failed to list accounts", zap.Error(err))
		InternalError(c)
		return
	}

	total, err := h.accounts.Count(c.Request.Context(), filter)
	if err != nil {
		logger.Error("failed to count accounts", zap.Error(err))
		InternalError(c)
		return
	}

	Success(c, gin.H{"items": accounts, "total": total})
}

// UpdateAccountRequest 更新账户请求, 全部字段可选
type UpdateAccountRequest struct {
	Cookie         *string `json:"cookie"`
	XClientVersion *string `json:"x_client_version"`
	UserAgent      *string `json:"user_agent"`
	CustomerID     *string `json:"customer_id"`
	IsActive       *bool   `json:"is_active"`
}

// Update 更新账户凭证或状态
// PUT /api/v1/accounts/:id
func (h *AccountHandler) Update(c *gin.Context) {
	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	accountID := c.Param("id")
	updates := make(map[string]interface{})

	if req.Cookie != nil {
		// 新 cookie 也必须属于同一账户
		cookieID, err := airbnb.ExtractAccountIDFromCookie(*req.Cookie)
		if err != nil {
			BadRequest(c, "cookie does not contain a usable _user_attributes value")
			return
		}
		if cookieID != accountID {
			BadRequest(c, "cookie belongs to a different account")
			return
		}
		updates["airbnb_cookie"] = *req.Cookie
	}
	if req.XClientVersion != nil {
		updates["x_client_version"] = *req.XClientVersion
	}
	if req.UserAgent != nil {
		updates["user_agent"] = *req.UserAgent
	}
	if req.CustomerID != nil {
		updates["customer_id"] = *req.CustomerID
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) == 0 {
		BadRequest(c, "no fields to update")
		return
	}

	if err := h.accounts.Update(c.Request.Context(), accountID, updates); err != nil {
		if isNotFound(err) {
			NotFound(c, "account not found")
			return
		}
		logger.Error("failed to update account", zap.String("account_id", accountID), zap.Error(err))
		InternalError(c)
		return
	}

	account, err := h.accounts.GetByID(c.Request.Context(), accountID)
	if err != nil || account == nil {
		InternalError(c)
		return
	}
	Success(c, account)
}

// Delete 软删除账户
// DELETE /api/v1/accounts/:id
func (h *AccountHandler) Delete(c *gin.Context) {
	accountID := c.Param("id")
	if err := h.accounts.SoftDelete(c.Request.Context(), accountID); err != nil {
		if isNotFound(err) {
			NotFound(c, "account not found")
			return
		}
		logger.Error("failed to delete account", zap.String("account_id", accountID), zap.Error(err))
		InternalError(c)
		return
	}

	Success(c, gin.H{"account_id": accountID, "deleted": true})
}

// Restore 恢复软删除的账户
// POST /api/v1/accounts/:id/restore
func (h *AccountHandler) Restore(c *gin.Context) {
	accountID := c.Param("id")
	if err := h.accounts.Restore(c.Request.Context(), accountID); err != nil {
		if isNotFound(err) {
			NotFound(c, "deleted account not found")
			return
		}
		logger.Error("failed to restore account", zap.String("account_id", accountID), zap.Error(err))
		InternalError(c)
		return
	}

	Success(c, gin.H{"account_id": accountID, "restored": true})
}

// Stats 账户已同步数据量
// GET /api/v1/accounts/:id/stats
func (h *AccountHandler) Stats(c *gin.Context) {
	accountID := c.Param("id")

	account, err := h.accounts.GetByID(c.Request.Context(), accountID)
	if err != nil {
		InternalError(c)
		return
	}
	if account == nil {
		NotFound(c, "account not found")
		return
	}

	counts, err := h.insights.CountByAccount(c.Request.Context(), accountID)
	if err != nil {
		logger.Error("failed to count insights rows", zap.String("account_id", accountID), zap.Error(err))
		InternalError(c)
		return
	}

	Success(c, gin.H{
		"account_id":   accountID,
		"last_sync_at": account.LastSyncAt,
		"row_counts":   counts,
	})
}
