package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/assistant"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/dto"
)

const pcmContentType = "audio/L16;rate=24000;channels=1"

// AssistantRoutes exposes the assistant. Every route answers 503 when no
// assistant is configured.
type AssistantRoutes struct {
	assistant assistant.Assistant
	logger    log.Logger
}

func NewAssistantRoutes(a assistant.Assistant, logger log.Logger) *AssistantRoutes {
	return &AssistantRoutes{assistant: a, logger: logger}
}

func (r *AssistantRoutes) RegisterHandlers(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("POST /api/assistant/chat", r.available(r.handleChat))
	mux.HandleFunc("POST /api/assistant/insight", r.available(r.handleInsight))
	mux.HandleFunc("POST /api/assistant/speech", r.available(r.handleSpeech))
}

func (r *AssistantRoutes) available(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.assistant == nil {
			writeError(w, http.StatusServiceUnavailable, "assistant is not configured")
			return
		}
		next(w, req)
	}
}

func (r *AssistantRoutes) handleChat(w http.ResponseWriter, req *http.Request) {
	var payload dto.ChatRequest
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	history := make([]assistant.Message, 0, len(payload.History))
	for _, m := range payload.History {
		history = append(history, assistant.Message{Role: m.Role, Text: m.Text})
	}

	text, err := r.assistant.Chat(req.Context(), history, payload.Message)
	if err != nil {
		r.fail(w, "chat", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.TextResponse{Text: text})
}

func (r *AssistantRoutes) handleInsight(w http.ResponseWriter, req *http.Request) {
	text, err := r.assistant.QuickInsight(req.Context())
	if err != nil {
		r.fail(w, "insight", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.TextResponse{Text: text})
}

func (r *AssistantRoutes) handleSpeech(w http.ResponseWriter, req *http.Request) {
	var payload dto.SpeechRequest
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pcm, err := r.assistant.Speak(req.Context(), payload.Text)
	if err != nil {
		r.fail(w, "speech", err)
		return
	}
	w.Header().Set("Content-Type", pcmContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(pcm)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pcm)
}

func (r *AssistantRoutes) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, assistant.ErrEmptyInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	level.Error(r.logger).Log("msg", "assistant "+op, "err", err)
	writeError(w, http.StatusBadGateway, "assistant request failed")
}
