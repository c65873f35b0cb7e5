package handlers

import (
	"net/http"

	"github.com/upb/ai-orchestrator/services"
	"github.com/upb/ai-orchestrator/services/orchestrator"
	"github.com/upb/ai-orchestrator/services/providers"
	"github.com/upb/ai-orchestrator/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		details = nil
	}

	var writeErr error
	switch errType := services.GetErrorType(err); errType {
	case services.ErrorTypeNotFound:
		writeErr = utils.WriteNotFound(w, err.Error())

	case services.ErrorTypeValidation:
		writeErr = utils.WriteBadRequest(w, err.Error(), details)

	case services.ErrorTypeBudget:
		writeErr = utils.WriteJSON(w, http.StatusTooManyRequests, utils.ErrorResponse{
			Error:   "budget_exceeded",
			Message: err.Error(),
			Details: details,
		})

	case services.ErrorTypeUnavailable:
		writeErr = utils.WriteServiceUnavailable(w, err.Error(), details)

	case services.ErrorTypeTimeout:
		writeErr = utils.WriteError(w, http.StatusGatewayTimeout, err.Error(), details)

	case services.ErrorTypeExternal:
		writeErr = utils.WriteBadGateway(w, err.Error(), details)

	case services.ErrorTypeInternal:
		// internal errors are logged, never echoed
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(errType)))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var details map[string]interface{}
	message := err.Error()

	if utils.IsValidationError(err) {
		details = make(map[string]interface{})
		for k, v := range utils.GetValidationFields(err) {
			details[k] = v
		}
		message = "Validation failed"
	}

	if err := utils.WriteBadRequest(w, message, details); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// CompletionError converts a failed orchestrated completion into one of the
// completion sentinels with the failure attached as details. It returns nil
// for a successful result.
func CompletionError(result providers.CompletionResult) error {
	if result.Success {
		return nil
	}

	var err *services.DomainError
	switch orchestrator.Outcome(result) {
	case orchestrator.OutcomeBudgetExceeded:
		err = services.ErrDailyBudgetExceeded.Because("", nil)
	case orchestrator.OutcomeNoProviders:
		err = services.ErrNoProviders.Because("", nil)
	case orchestrator.OutcomeCanceled:
		err = services.ErrCompletionAbandoned.Because("", nil)
		if result.Provider != "" {
			err.WithDetail("provider", result.Provider).
				WithDetail("error", result.Error)
		}
		err.WithDetail("attempts", len(result.Attempts))
	default:
		err = services.ErrProvidersFailed.Because("", nil).
			WithDetail("provider", result.Provider).
			WithDetail("error", result.Error).
			WithDetail("attempts", len(result.Attempts))
	}

	err.WithDetail("error_kind", string(result.ErrorKind))
	if id, ok := result.Metadata["request_id"]; ok {
		err.WithDetail("request_id", id)
	}
	return err
}
