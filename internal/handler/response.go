// Package handler 提供 HTTP 请求处理
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Response 统一响应结构
type Response struct {
	Code    string      `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, &Response{Code: "ok", Data: data})
}

// Accepted 返回已受理响应
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, &Response{Code: "accepted", Data: data})
}

// BadRequest 返回参数错误响应
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, &Response{Code: "invalid_params", Message: message})
}

// NotFound 返回资源不存在响应
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, &Response{Code: "not_found", Message: message})
}

// Conflict 返回冲突响应
func Conflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, &Response{Code: "conflict", Message: message})
}

// UnprocessableEntity 返回不可处理响应
func UnprocessableEntity(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, &Response{Code: "unprocessable", Message: message})
}

// InternalError 返回内部错误响应
func InternalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, &Response{Code: "internal_error", Message: "internal server error"})
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// bindPagination 解析 limit/offset 查询参数
func bindPagination(c *gin.Context, limit, offset *int) error {
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid limit %q", v)
		}
		*limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid offset %q", v)
		}
		*offset = n
	}
	return nil
}
