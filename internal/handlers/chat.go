package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"sourcechat-backend/internal/middleware"
	"sourcechat-backend/internal/models"
	"sourcechat-backend/internal/services"
)

const (
	maxJSONBody       = 10 << 20
	maxUploadBytes    = 10 << 20
	multipartOverhead = 1 << 20
)

type chatService interface {
	Handle(ctx context.Context, in services.ChatInput) (*models.ChatResponse, error)
}

type ChatHandler struct {
	chatService chatService
}

func NewChatHandler(chatService chatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat serves POST /api/chat with either a JSON or a multipart body.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w, r)
		return
	}

	in, err := parseChatRequest(w, r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || errors.Is(err, services.ErrPayloadTooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp(msgTooLarge, contentTooLarge, r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp(msgInvalidBody, msgValidation, r))
		return
	}
	in.ClientID = middleware.ClientIP(r)

	resp, err := h.chatService.Handle(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseChatRequest(w http.ResponseWriter, r *http.Request) (services.ChatInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return parseMultipart(w, r)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return services.ChatInput{}, err
	}
	return services.ChatInput{
		Message:          req.Message,
		URLs:             req.URLs,
		PreviousMessages: req.PreviousMessages,
	}, nil
}

func parseMultipart(w http.ResponseWriter, r *http.Request) (services.ChatInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return services.ChatInput{}, err
	}

	in := services.ChatInput{Message: r.FormValue("message")}
	for _, v := range r.MultipartForm.Value["urls"] {
		in.URLs = append(in.URLs, strings.Fields(v)...)
	}
	if raw := strings.TrimSpace(r.FormValue("previousMessages")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.PreviousMessages); err != nil {
			return services.ChatInput{}, err
		}
	}

	var total int64
	for _, fh := range r.MultipartForm.File["files"] {
		total += fh.Size
		if total > maxUploadBytes {
			return services.ChatInput{}, services.ErrPayloadTooLarge
		}
		f, err := fh.Open()
		if err != nil {
			return services.ChatInput{}, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return services.ChatInput{}, err
		}
		in.Attachments = append(in.Attachments, models.Attachment{Filename: fh.Filename, Data: data})
	}
	return in, nil
}
