package util

import (
	"errors"
	"mock_interview_backend/internal/interview"
	"mock_interview_backend/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Accepted(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusAccepted, Response{
		Code:    http.StatusAccepted,
		Message: message,
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err), zap.String("path", c.FullPath()))
	InternalServerError(c)
}

// StatusFor 领域错误到 HTTP 状态码的映射
func StatusFor(err error) int {
	switch {
	case interview.IsConfigurationError(err):
		return http.StatusBadRequest
	case interview.IsProviderConnectionError(err):
		return http.StatusBadGateway
	case interview.IsPersistenceError(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInterviewNotFound), errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, interview.ErrSessionFinished),
		errors.Is(err, interview.ErrCallInProgress),
		errors.Is(err, interview.ErrNotActive),
		errors.Is(err, interview.ErrPersistInProgress),
		errors.Is(err, ErrSessionNotLive):
		return http.StatusConflict
	case errors.Is(err, interview.ErrReportPending):
		return http.StatusAccepted
	}
	return http.StatusInternalServerError
}

// HandleError 按错误类型输出响应，未知错误记录日志后返回 500
func HandleError(c *gin.Context, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		LogInternalError(c, err)
		return
	}
	Error(c, code, err.Error())
}
