package user

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/settleup/pkg/middleware"
	"github.com/fkhayef/settleup/pkg/response"
)

// TokenIssuer signs a bearer token for a newly registered user.
type TokenIssuer interface {
	Generate(userID string) (string, error)
}

// Handler handles HTTP requests for user operations
type Handler struct {
	service *Service
	tokens  TokenIssuer
}

// NewHandler creates a user handler. tokens may be nil, in which case
// registration does not return a token.
func NewHandler(service *Service, tokens TokenIssuer) *Handler {
	return &Handler{service: service, tokens: tokens}
}

// Routes returns the router for user endpoints. Registration is public; the
// other routes run behind authenticate.
func (h *Handler) Routes(authenticate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/me", h.Me)
		r.Get("/search", h.Search)
		r.Get("/{id}", h.GetByID)
	})

	return r
}

// Create handles POST /users
// @Summary      Register a user
// @Description  Create a new user with username and email. In jwt mode the response carries a bearer token.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body CreateUserRequest true "User creation request"
// @Success      201 {object} response.APIResponse{data=RegisterResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /users [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	user, err := h.service.Create(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrInvalidEmail):
			response.BadRequest(w, err.Error())
		case errors.Is(err, ErrEmailAlreadyInUse):
			response.Conflict(w, err.Error())
		default:
			response.InternalError(w, "Failed to create user")
		}
		return
	}

	resp := &RegisterResponse{User: user.ToResponse()}
	if h.tokens != nil {
		token, err := h.tokens.Generate(user.ID)
		if err != nil {
			slog.Error("failed to issue token", "user_id", user.ID, "error", err)
			response.InternalError(w, "Failed to issue token")
			return
		}
		resp.Token = token
	}

	response.JSON(w, http.StatusCreated, resp)
}

// Me handles GET /users/me
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.APIResponse{data=UserResponse}
// @Failure      401 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /users/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "User not authenticated")
		return
	}
	h.writeUser(w, r, userID)
}

// Search handles GET /users/search
// @Summary      Search users
// @Description  Find other users whose email or username contains the query
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        query query string true "Email or username fragment"
// @Success      200 {object} response.APIResponse{data=[]UserResponse}
// @Router       /users/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "User not authenticated")
		return
	}

	users, err := h.service.Search(r.Context(), userID, r.URL.Query().Get("query"))
	if err != nil {
		response.InternalError(w, "Failed to search users")
		return
	}

	userResponses := make([]*UserResponse, len(users))
	for i, u := range users {
		userResponses[i] = u.ToResponse()
	}
	response.JSON(w, http.StatusOK, userResponses)
}

// GetByID handles GET /users/{id}
// @Summary      Get user by ID
// @Description  Get a single user by their ID
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "User ID"
// @Success      200 {object} response.APIResponse{data=UserResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /users/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	h.writeUser(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) writeUser(w http.ResponseWriter, r *http.Request, id string) {
	user, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		slog.Error("failed to get user", "user_id", id, "error", err)
		response.InternalError(w, "Failed to get user")
		return
	}

	response.JSON(w, http.StatusOK, user.ToResponse())
}
