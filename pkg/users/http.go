package users

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/astralpost/astralpost/pkg/billing"
	"github.com/astralpost/astralpost/pkg/content"
	"github.com/astralpost/astralpost/pkg/httputil"
	"github.com/astralpost/astralpost/pkg/observability"
)

// Handler exposes the registration and preference endpoints.
type Handler struct {
	svc    *Service
	logger *observability.Logger
}

// NewHandler creates the users HTTP handler.
func NewHandler(svc *Service, logger *observability.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes attaches the user routes to the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/validate-token", h.HandleValidateToken).Methods(http.MethodGet)
	r.HandleFunc("/preferences", h.HandlePreferences).Methods(http.MethodPut)
}

type registerRequest struct {
	Email       string `json:"email"`
	Perspective string `json:"perspective"`
	Locale      string `json:"locale"`
}

type registerResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Tier        string `json:"tier"`
	Perspective string `json:"perspective"`
	Token       string `json:"token"`
}

// HandleRegister creates a trial account and returns its token.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}
	if !strings.Contains(req.Email, "@") {
		httputil.WriteValidationError(w, "invalid email address")
		return
	}
	if req.Perspective != "" && !content.Perspective(req.Perspective).Valid() {
		httputil.WriteValidationError(w, "invalid perspective: "+req.Perspective)
		return
	}

	user, token, err := h.svc.Register(r.Context(), req.Email, content.Perspective(req.Perspective), req.Locale)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			httputil.WriteConflict(w, "email already registered")
			return
		}
		h.logger.WithError(err).Error("registration failed")
		httputil.WriteInternalError(w, errors.New("registration failed"))
		return
	}

	httputil.WriteCreated(w, registerResponse{
		ID:          user.ID,
		Email:       user.Email,
		Tier:        string(user.SubscriptionTier),
		Perspective: user.Perspective,
		Token:       token,
	})
}

// HandleValidateToken returns the account named by the token, taken from
// either the Authorization header or the token query parameter (the form
// newsletter links use).
func (h *Handler) HandleValidateToken(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authorize(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, user)
}

type preferencesRequest struct {
	Perspective string `json:"perspective"`
	Locale      string `json:"locale"`
}

// HandlePreferences updates the perspective and locale for the account
// named by the bearer token.
func (h *Handler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req preferencesRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !content.Perspective(req.Perspective).Valid() {
		httputil.WriteValidationError(w, "invalid perspective: "+req.Perspective)
		return
	}

	if err := h.svc.UpdatePreferences(r.Context(), user.ID, content.Perspective(req.Perspective), req.Locale); err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.WriteNotFoundError(w, "user not found")
			return
		}
		h.logger.WithError(err).WithField("user_id", user.ID).Error("preference update failed")
		httputil.WriteInternalError(w, errors.New("preference update failed"))
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (*billing.User, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = httputil.ParseQueryString(r, "token", "")
	}
	if token == "" {
		httputil.WriteUnauthorized(w, "missing account token")
		return nil, false
	}

	user, err := h.svc.Lookup(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken):
			httputil.WriteUnauthorized(w, "invalid account token")
		case errors.Is(err, ErrNotFound):
			httputil.WriteNotFoundError(w, "user not found")
		default:
			h.logger.WithError(err).Error("token lookup failed")
			httputil.WriteInternalError(w, errors.New("lookup failed"))
		}
		return nil, false
	}
	return user, true
}
