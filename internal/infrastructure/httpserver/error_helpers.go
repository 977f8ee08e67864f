package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/frcrag/frcrag/internal/core/domain/query"
)

type errorBody struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// classifyError maps pipeline failures onto the HTTP surface. Every
// dependency failure keeps its own status so callers can tell an
// unreachable store from a slow model.
func classifyError(err error) (int, errorBody) {
	var infErr *query.InferenceError

	switch {
	case errors.Is(err, query.ErrRetrievalUnavailable):
		return http.StatusServiceUnavailable, errorBody{
			Kind:    "retrieval_unavailable",
			Message: "context retrieval backend is unreachable",
		}
	case errors.Is(err, query.ErrInferenceTimeout):
		return http.StatusGatewayTimeout, errorBody{
			Kind:    "inference_timeout",
			Message: "inference backend did not answer in time",
		}
	case errors.Is(err, query.ErrStreamInterrupted):
		return http.StatusBadGateway, errorBody{
			Kind:    "stream_interrupted",
			Message: "inference stream ended before completion",
		}
	case errors.As(err, &infErr):
		return http.StatusBadGateway, errorBody{
			Kind:    "inference_error",
			Message: infErr.Message,
		}
	default:
		return http.StatusInternalServerError, errorBody{
			Kind:    "internal",
			Message: "internal server error",
		}
	}
}

func (s *Server) domainError(c echo.Context, err error) error {
	if errors.Is(err, context.Canceled) {
		// Client went away; there is nobody left to answer.
		return nil
	}
	status, body := classifyError(err)
	if status == http.StatusInternalServerError && s.logger != nil {
		s.logger.WithError(err).Error("unhandled pipeline error")
	}
	return c.JSON(status, errorResponse{Error: body})
}
