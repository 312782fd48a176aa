package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"telegram-paid-access/internal/domain"
	"telegram-paid-access/internal/domain/model"
	"telegram-paid-access/internal/domain/ports/repository"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps domain sentinels to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var ap *domain.AlreadyProcessedError
	switch {
	case errors.As(err, &ap):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already processed", "status": ap.Status})
	case errors.Is(err, domain.ErrDuplicatePending):
		http.Error(w, "buyer already has an open pending request", http.StatusConflict)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrPlanNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, "invalid argument", http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if s.apiKey == "" || req.APIKey != s.apiKey {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "Failed to mint session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type pendingResponse struct {
	ID        string    `json:"id"`
	BuyerTgID int64     `json:"buyer_tg_id"`
	BotID     string    `json:"bot_id"`
	PlanID    string    `json:"plan_id"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

func toPendingResponse(p *model.PendingSubscription) pendingResponse {
	return pendingResponse{
		ID:        p.ID,
		BuyerTgID: p.BuyerTgID,
		BotID:     p.BotID,
		PlanID:    p.PlanID,
		CreatedAt: p.CreatedAt,
		Status:    string(p.Status),
	}
}

func (s *Server) listPendingHandler(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	open, err := s.lifecycle.ListOpenRequests(r.Context(), botID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		writeDomainError(w, err)
		return
	}
	out := make([]pendingResponse, 0, len(open))
	for _, p := range open {
		out = append(out, toPendingResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

type subscriptionResponse struct {
	ID        string    `json:"id"`
	BuyerTgID int64     `json:"buyer_tg_id"`
	BotID     string    `json:"bot_id"`
	PlanID    string    `json:"plan_id"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Status    string    `json:"status"`
}

func toSubscriptionResponse(sub *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:        sub.ID,
		BuyerTgID: sub.BuyerTgID,
		BotID:     sub.BotID,
		PlanID:    sub.PlanID,
		StartAt:   sub.StartAt,
		EndAt:     sub.EndAt,
		Status:    string(sub.Status),
	}
}

func (s *Server) approveHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := s.lifecycle.Approve(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (s *Server) rejectHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.lifecycle.Reject(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPendingResponse(p))
}

func (s *Server) getSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := s.subRepo.FindByID(r.Context(), repository.NoTX, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (s *Server) subscriptionStatsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := s.subRepo.CountByStatus(r.Context(), repository.NoTX)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) sweepHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.expiry.Sweep(r.Context(), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"total":     report.Total,
		"processed": report.Processed,
		"failed":    report.Failed,
	})
}

type planCreateRequest struct {
	Name              string   `json:"name"`
	DurationDays      int      `json:"duration_days"`
	LinkedResourceIDs []string `json:"linked_resource_ids"`
	Description       string   `json:"description"`
}

type planResponse struct {
	ID                string   `json:"id"`
	BotID             string   `json:"bot_id"`
	Name              string   `json:"name"`
	DurationDays      int      `json:"duration_days"`
	LinkedResourceIDs []string `json:"linked_resource_ids"`
	IsVisible         bool     `json:"is_visible"`
	Description       string   `json:"description"`
}

func toPlanResponse(p *model.Plan) planResponse {
	return planResponse{
		ID:                p.ID,
		BotID:             p.BotID,
		Name:              p.Name,
		DurationDays:      p.DurationDays,
		LinkedResourceIDs: p.LinkedResourceIDs,
		IsVisible:         p.IsVisible,
		Description:       p.Description,
	}
}

func (s *Server) listPlansHandler(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	plans, err := s.planRepo.ListVisibleByBot(r.Context(), repository.NoTX, botID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createPlanHandler(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	var req planCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	plan, err := model.NewPlan(uuid.NewString(), botID, req.Name, req.DurationDays, req.LinkedResourceIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	plan.Description = req.Description
	if err := s.planRepo.Save(r.Context(), repository.NoTX, plan); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanResponse(plan))
}

func (s *Server) deletePlanHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.planRepo.Delete(r.Context(), repository.NoTX, id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resourceCreateRequest struct {
	TgChatID       int64  `json:"tg_chat_id"`
	Kind           string `json:"kind"`
	InviteStrategy string `json:"invite_strategy"`
	CustomLink     string `json:"custom_link"`
	Mandatory      bool   `json:"mandatory"`
}

type resourceResponse struct {
	ID             string `json:"id"`
	BotID          string `json:"bot_id"`
	TgChatID       int64  `json:"tg_chat_id"`
	Kind           string `json:"kind"`
	InviteStrategy string `json:"invite_strategy"`
	CustomLink     string `json:"custom_link"`
	Mandatory      bool   `json:"mandatory"`
}

func toResourceResponse(res *model.Resource) resourceResponse {
	return resourceResponse{
		ID:             res.ID,
		BotID:          res.BotID,
		TgChatID:       res.TgChatID,
		Kind:           string(res.Kind),
		InviteStrategy: string(res.InviteStrategy),
		CustomLink:     res.CustomLink,
		Mandatory:      res.Mandatory,
	}
}

func (s *Server) listResourcesHandler(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	resources, err := s.resRepo.ListByBot(r.Context(), repository.NoTX, botID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]resourceResponse, 0, len(resources))
	for _, res := range resources {
		out = append(out, toResourceResponse(res))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createResourceHandler(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	var req resourceCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	res, err := model.NewResource(uuid.NewString(), botID, req.TgChatID,
		model.ResourceKind(req.Kind), model.InviteStrategy(req.InviteStrategy))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	res.CustomLink = req.CustomLink
	res.Mandatory = req.Mandatory
	if err := s.resRepo.Save(r.Context(), repository.NoTX, res); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResourceResponse(res))
}

func (s *Server) deleteResourceHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.resRepo.Delete(r.Context(), repository.NoTX, id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
