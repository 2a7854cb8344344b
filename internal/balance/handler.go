package balance

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/settleup/internal/group"
	"github.com/fkhayef/settleup/internal/settlement"
	"github.com/fkhayef/settleup/pkg/lock"
	"github.com/fkhayef/settleup/pkg/middleware"
	"github.com/fkhayef/settleup/pkg/response"
)

// Handler handles HTTP requests for balances and settle-up
type Handler struct {
	service *Service
}

// NewHandler creates a new balance handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for balance endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/dash", h.Dashboard)
	r.Get("/{groupId}", h.GetBalances)
	r.Get("/settle/{groupId}", h.GetSettlePlan)
	r.Post("/settle/{groupId}", h.Settle)

	// Requests without a group id
	r.Get("/", h.missingGroup)
	r.Get("/settle/", h.missingGroup)
	r.Post("/settle/", h.missingGroup)

	return r
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrMissingGroupID),
		errors.Is(err, ErrMissingRecipient),
		errors.Is(err, ErrRecipientNotMember),
		errors.Is(err, ErrNoteTooLong),
		errors.Is(err, settlement.ErrCannotSettleSelf),
		errors.Is(err, settlement.ErrNonPositiveAmount):
		response.BadRequest(w, err.Error())
	case errors.Is(err, group.ErrNotGroupMember):
		response.Forbidden(w, err.Error())
	case errors.Is(err, group.ErrGroupNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrExceedsOutstanding):
		response.UnprocessableEntity(w, err.Error())
	case errors.Is(err, lock.ErrNotAcquired):
		slog.Warn("settle lock busy", "error", err)
		response.ServiceUnavailable(w, "Group is busy, retry shortly")
	default:
		slog.Error(fallback, "error", err)
		response.InternalError(w, fallback)
	}
}

func groupID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "groupId"))
}

func (h *Handler) missingGroup(w http.ResponseWriter, r *http.Request) {
	response.BadRequest(w, ErrMissingGroupID.Error())
}

// GetBalances handles GET /balances/{groupId}
// @Summary      Get group balances
// @Description  Net balance per user. Positive means the user is owed money, negative means they owe.
// @Tags         balances
// @Produce      json
// @Security     BearerAuth
// @Param        groupId path string true "Group ID"
// @Success      200 {object} response.APIResponse{data=map[string]number}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /balances/{groupId} [get]
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "User not authenticated")
		return
	}

	balances, err := h.service.GroupBalances(r.Context(), userID, groupID(r))
	if err != nil {
		writeError(w, err, "Failed to get balances")
		return
	}

	response.JSON(w, http.StatusOK, balances)
}

// GetSettlePlan handles GET /balances/settle/{groupId}
// @Summary      Get settle-up plan
// @Description  Transfers that bring every balance in the group to zero
// @Tags         balances
// @Produce      json
// @Security     BearerAuth
// @Param        groupId path string true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]ledger.Transfer}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /balances/settle/{groupId} [get]
func (h *Handler) GetSettlePlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "User not authenticated")
		return
	}

	plan, err := h.service.SettlePlan(r.Context(), userID, groupID(r))
	if err != nil {
		writeError(w, err, "Failed to calculate settle-up")
		return
	}

	response.JSON(w, http.StatusOK, plan)
}

// Settle handles POST /balances/settle/{groupId}
// @Summary      Record a payment
// @Description  Record that the caller paid another member. The amount may not exceed what the caller owes.
// @Tags         balances
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        groupId path string true "Group ID"
// @Param        Idempotency-Key header string false "Deduplicates retries"
// @Param        request body SettleRequest true "Payment"
// @Success      201 {object} response.APIResponse{data=SettleResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /balances/settle/{groupId} [post]
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "User not authenticated")
		return
	}

	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.RecordSettlement(r.Context(), userID, groupID(r), &req); err != nil {
		writeError(w, err, "Failed to settle")
		return
	}

	response.JSON(w, http.StatusCreated, SettleResponse{Success: true})
}

// Dashboard handles GET /balances/dash
// @Summary      Get dashboard totals
// @Description  The caller's balance summed across all of their groups
// @Tags         balances
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=DashboardResponse}
// @Router       /balances/dash [get]
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "User not authenticated")
		return
	}

	dash, err := h.service.Dashboard(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to get dashboard stats")
		return
	}

	response.JSON(w, http.StatusOK, dash)
}
