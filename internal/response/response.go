// Package response provides the uniform JSON envelope returned by
// every API route.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arrayops/librarian/internal/errors"
)

// Response is the envelope for all API replies. Code 0 means success;
// any other value is an ErrorCode from the errors package.
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// PageData wraps a paginated list.
type PageData struct {
	List       interface{} `json:"list"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// Success writes a 200 reply with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      0,
		Message:   "success",
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: time.Now().Unix(),
	})
}

// SuccessWithPage writes a 200 reply with a paginated list.
func SuccessWithPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, PageData{
		List:       list,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// Error writes an error reply with an explicit HTTP status.
func Error(c *gin.Context, status int, code int, message string) {
	c.JSON(status, Response{
		Code:      code,
		Message:   message,
		RequestID: getRequestID(c),
		Timestamp: time.Now().Unix(),
	})
}

// BadRequest writes a 400 reply.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, int(errors.ErrInvalidParams), message)
}

// NotFound writes a 404 reply.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, int(errors.ErrNotFound), message)
}

// InternalServerError writes a 500 reply.
func InternalServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, int(errors.ErrInternalServer), message)
}

// AppError maps a service error onto the envelope, choosing the HTTP
// status from the error kind: validation 400, not-found 404, conflict
// 409, store probe failure 502, everything else 500.
func AppError(c *gin.Context, err error) {
	appErr, ok := errors.GetAppError(err)
	if !ok {
		InternalServerError(c, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.IsValidation(err):
		status = http.StatusBadRequest
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.IsConflict(err):
		status = http.StatusConflict
	case errors.IsMetadata(err):
		status = http.StatusBadGateway
	}

	message := appErr.Message
	if appErr.Details != "" {
		message = appErr.Message + ": " + appErr.Details
	}
	Error(c, status, int(appErr.Code), message)
}

// getRequestID reads the request id placed by the middleware.
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}
