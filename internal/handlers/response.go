package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"sourcechat-backend/internal/middleware"
	"sourcechat-backend/internal/models"
	"sourcechat-backend/internal/services"
)

// User-facing texts. Content is rendered by the frontend as the assistant's
// turn, Error is shown as a notice.
const (
	msgValidation      = "Please enter a message or provide a URL to analyze."
	msgInvalidBody     = "Invalid request body"
	msgTooLarge        = "Content too large to process. Please try with less content or fewer URLs."
	contentTooLarge    = "I apologize, but that's a bit too much for me to process at once. Could you try with less content or fewer URLs?"
	msgLocalLimit      = "Too many requests. Please wait a moment before trying again."
	contentLocalLimit  = "I'm receiving too many requests. Please wait a brief moment before sending another message."
	msgUpstreamLimit   = "Please wait a moment before sending another message."
	contentUpstreamLim = "I need a brief moment to process your request. Please try again shortly."
	msgInternal        = "Failed to process request"
	contentInternal    = "Sorry, I encountered an error processing your request."
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(message, content string, r *http.Request) models.ChatErrorResponse {
	return models.ChatErrorResponse{
		Error:      message,
		Content:    content,
		FailedURLs: []string{},
		RequestID:  middleware.GetRequestID(r.Context()),
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *services.ValidationError
		rateErr       *services.RateLimitError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResp(msgValidation, msgValidation, r))
	case errors.Is(err, services.ErrPayloadTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp(msgTooLarge, contentTooLarge, r))
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds()))
		if rateErr.Upstream {
			writeJSON(w, http.StatusTooManyRequests, errorResp(msgUpstreamLimit, contentUpstreamLim, r))
			return
		}
		writeJSON(w, http.StatusTooManyRequests, errorResp(msgLocalLimit, contentLocalLimit, r))
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("chat request failed")
		writeJSON(w, http.StatusInternalServerError, errorResp(msgInternal, contentInternal, r))
	}
}

// MethodNotAllowed is installed on the router for every path.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
