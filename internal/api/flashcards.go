package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/studyforge/studyai/internal/flashcard"
	"github.com/studyforge/studyai/internal/llm"
	"github.com/studyforge/studyai/internal/postgres"
)

// CardStore is the part of flashcard.Store the HTTP handlers need.
type CardStore interface {
	List(ctx context.Context) ([]flashcard.Card, error)
	Due(ctx context.Context) ([]flashcard.Card, error)
	Review(ctx context.Context, id uuid.UUID, grade flashcard.Grade) (flashcard.Card, error)
}

// flashcardHandler holds dependencies for the flashcard API endpoints.
type flashcardHandler struct {
	engine StudyEngine
	cards  CardStore
	logger *slog.Logger
}

// generate handles POST /api/v1/flashcards/generate — generates cards for
// a topic and stores the ones that are not duplicates.
func (h *flashcardHandler) generate(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	topic := req.query()
	if topic == "" {
		WriteError(w, http.StatusBadRequest, "missing_query", "question or topic is required", h.logger)
		return
	}

	added, sources, err := h.engine.GenerateFlashcards(r.Context(), topic, req.retrieveOptions()...)
	if err != nil {
		h.logger.Error("generating flashcards", "error", err, "topic", topic)
		if errors.Is(err, llm.ErrCircuitOpen) {
			w.Header().Set("Retry-After", "30")
			WriteError(w, http.StatusServiceUnavailable, "llm_unavailable", "model temporarily unavailable", h.logger)
			return
		}
		WriteError(w, http.StatusBadGateway, "generation_failed", "failed to generate flashcards", h.logger)
		return
	}
	if added == nil {
		added = []flashcard.Card{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"added":   added,
		"count":   len(added),
		"sources": sources,
	}, h.logger)
}

// list handles GET /api/v1/flashcards — returns every stored card.
func (h *flashcardHandler) list(w http.ResponseWriter, r *http.Request) {
	cards, err := h.cards.List(r.Context())
	if err != nil {
		h.logger.Error("listing flashcards", "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list flashcards", h.logger)
		return
	}
	h.writeCards(w, cards)
}

// due handles GET /api/v1/flashcards/due — returns cards due for review,
// most overdue first.
func (h *flashcardHandler) due(w http.ResponseWriter, r *http.Request) {
	cards, err := h.cards.Due(r.Context())
	if err != nil {
		h.logger.Error("listing due flashcards", "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list due flashcards", h.logger)
		return
	}
	h.writeCards(w, cards)
}

// reviewRequest is the request body for PUT /api/v1/flashcards/review.
type reviewRequest struct {
	ID    string `json:"id"`
	Grade string `json:"grade"`
}

// review handles PUT /api/v1/flashcards/review — grades a card and
// returns it with its new schedule.
func (h *flashcardHandler) review(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	id, err := uuid.Parse(req.ID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid card ID", h.logger)
		return
	}

	grade, err := flashcard.ParseGrade(req.Grade)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_grade", "grade must be one of: again, hard, good, easy", h.logger)
		return
	}

	card, err := h.cards.Review(r.Context(), id, grade)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "card not found", h.logger)
			return
		}
		h.logger.Error("reviewing flashcard", "error", err, "card_id", id)
		WriteError(w, http.StatusInternalServerError, "review_failed", "failed to review flashcard", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, card, h.logger)
}

func (h *flashcardHandler) writeCards(w http.ResponseWriter, cards []flashcard.Card) {
	if cards == nil {
		cards = []flashcard.Card{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"cards": cards,
		"total": len(cards),
	}, h.logger)
}
