package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lazy-lister/internal/platform/errors"
	"lazy-lister/internal/platform/logging"
)

// GenericFailure is the client-facing message for provider and unexpected
// failures.
const GenericFailure = "Failed to generate listing"

// ResultResponse 成功时的返回结构
type ResultResponse struct {
	Result string `json:"result"`
}

// ErrorResponse 失败时的返回结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// PromptResponse carries a server-built prompt preview.
type PromptResponse struct {
	Prompt string `json:"prompt"`
}

// RespondResult 返回成功响应
func RespondResult(c *gin.Context, text string) {
	c.JSON(http.StatusOK, ResultResponse{Result: text})
}

// StatusForError maps an error kind to the HTTP status and body the relay
// returns for it.
func StatusForError(err error) (int, ErrorResponse) {
	var typed *errors.Error
	if !errors.As(err, &typed) {
		return http.StatusInternalServerError, ErrorResponse{Error: GenericFailure, Details: "Unknown error"}
	}

	switch typed.Kind {
	case errors.KindInput:
		return http.StatusBadRequest, ErrorResponse{Error: typed.Message}
	case errors.KindConfig:
		return http.StatusInternalServerError, ErrorResponse{Error: typed.Message}
	case errors.KindProvider:
		return http.StatusInternalServerError, ErrorResponse{Error: GenericFailure, Details: typed.Detail()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: GenericFailure, Details: "Unknown error"}
	}
}

// RespondError 返回失败响应，并按错误类型记录日志
func RespondError(c *gin.Context, logger *logging.Logger, err error) {
	status, body := StatusForError(err)
	requestID := RequestID(c)

	switch errors.KindOf(err) {
	case errors.KindInput:
		logger.DebugTag("HTTP", "request_id=%s rejected: %v", requestID, err)
	case errors.KindConfig:
		logger.WarnTag("HTTP", "request_id=%s configuration problem: %v", requestID, err)
	default:
		logger.ErrorTag("HTTP", "request_id=%s server error: %v", requestID, err)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
