package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/astralpost/astralpost/pkg/httputil"
	"github.com/astralpost/astralpost/pkg/observability"
)

// Webhook payloads are small; anything bigger than this is not Stripe.
const maxWebhookBody = 1 << 20

// Handler exposes the webhook endpoints over HTTP.
type Handler struct {
	svc    *Service
	logger *observability.Logger
}

// NewHandler creates the billing HTTP handler.
func NewHandler(svc *Service, logger *observability.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes attaches the webhook routes to the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/stripe/webhook/{kind}", h.HandleWebhook).Methods(http.MethodPost)
}

// HandleWebhook receives a Stripe webhook POST and runs it through the
// state machine. Every settled event acks with
// {"received":true,"processed":true} — duplicates included, since the
// provider only needs to know it can stop retrying. Signature, parse, and
// dead-letter failures all surface as 400 so the provider retries on its
// own schedule.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	if kind != EndpointSubscription && kind != EndpointPayment {
		httputil.WriteNotFoundError(w, "unknown webhook endpoint")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteBadRequest(w, "failed to read request body")
		return
	}

	_, err = h.svc.ProcessWebhook(r.Context(), kind, body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrStaleTimestamp):
			httputil.WriteBadRequest(w, "invalid signature")
		case errors.Is(err, ErrMalformedEvent):
			httputil.WriteBadRequest(w, "malformed event")
		default:
			// Includes dispatch exhaustion: a 400 tells the provider to
			// retry later, which re-runs the handler because no ledger
			// entry was written.
			httputil.WriteBadRequest(w, "event processing failed")
		}
		return
	}

	httputil.WriteSuccess(w, map[string]bool{
		"received":  true,
		"processed": true,
	})
}
