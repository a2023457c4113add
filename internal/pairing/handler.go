package pairing

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/oiblz/tally/internal/device"
	"github.com/oiblz/tally/pkg/domain"
	dErrors "github.com/oiblz/tally/pkg/domain-errors"
	"github.com/oiblz/tally/pkg/platform/httputil"
	"github.com/oiblz/tally/pkg/requestcontext"
)

// PairingService defines what the handler needs from the service layer.
type PairingService interface {
	Propose(ctx context.Context, claimed domain.Identity, device string) (string, error)
	State(ctx context.Context, id int64) (State, error)
	Confirm(ctx context.Context, id int64, caller domain.Identity) error
	Refuse(ctx context.Context, id int64, caller domain.Identity) error
	Convert(ctx context.Context, id int64) (string, error)
	Confirmable(ctx context.Context, caller domain.Identity) (*Confirmable, error)
}

// Handler exposes the pairing endpoints. Tokens travel in the response
// body; storing them (header vs cookie) is the client's concern, which is
// also why cancel and drop are client-side discards acknowledged here.
type Handler struct {
	service PairingService
	logger  *slog.Logger
}

// NewHandler constructs the pairing HTTP handler.
func NewHandler(service PairingService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the routes. ask is unauthenticated; the rest are guarded
// by the pending- or session-token middleware passed in.
func (h *Handler) Register(r chi.Router, requirePending, requireSession func(http.Handler) http.Handler) {
	r.Post("/session/ask/{identity}", h.HandleAsk)

	r.Group(func(g chi.Router) {
		g.Use(requirePending)
		g.Post("/session/cancel", h.HandleCancel)
		g.Get("/session/state", h.HandleState)
		g.Post("/session/convert", h.HandleConvert)
	})

	r.Group(func(g chi.Router) {
		g.Use(requireSession)
		g.Post("/session/confirm/{id}", h.HandleConfirm)
		g.Post("/session/refuse/{id}", h.HandleRefuse)
		g.Get("/session/confirmable", h.HandleConfirmable)
		g.Post("/session/drop", h.HandleDrop)
	})
}

// TokenResponse carries an issued token back to the caller.
type TokenResponse struct {
	Token string `json:"token"`
}

// HandleAsk creates a proposal for the claimed identity and returns a
// pending token bound to it.
func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claimed, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown identity"))
		return
	}

	wire, err := h.service.Propose(ctx, claimed, device.Label(requestcontext.UserAgent(ctx)))
	if err != nil {
		h.logger.ErrorContext(ctx, "propose failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &TokenResponse{Token: wire})
}

// HandleCancel acknowledges the client discarding its pending token. The
// proposal row stays; a newer proposal supersedes it.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, nil)
}

// HandleState reports the caller's proposal state, or null when the row
// does not exist.
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pending, _ := requestcontext.PendingFrom(ctx)

	state, err := h.service.State(ctx, pending.ProposalID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			httputil.WriteJSON(w, http.StatusOK, nil)
			return
		}
		h.logger.ErrorContext(ctx, "read state failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, state)
}

// HandleConfirm approves the proposal named in the path.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.service.Confirm)
}

// HandleRefuse rejects the proposal named in the path.
func (h *Handler) HandleRefuse(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.service.Refuse)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, domain.Identity) error) {
	ctx := r.Context()
	session, _ := requestcontext.SessionFrom(ctx)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid proposal id"))
		return
	}

	if err := op(ctx, id, session.Who); err != nil {
		if !dErrors.HasCode(err, dErrors.CodePrecondition) {
			h.logger.ErrorContext(ctx, "resolve proposal failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, nil)
}

// HandleConvert exchanges the caller's pending token for a session token.
func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pending, _ := requestcontext.PendingFrom(ctx)

	wire, err := h.service.Convert(ctx, pending.ProposalID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodePrecondition) {
			h.logger.ErrorContext(ctx, "convert failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &TokenResponse{Token: wire})
}

// HandleConfirmable returns the oldest proposal awaiting the caller, or
// null.
func (h *Handler) HandleConfirmable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := requestcontext.SessionFrom(ctx)

	c, err := h.service.Confirmable(ctx, session.Who)
	if err != nil {
		h.logger.ErrorContext(ctx, "confirmable lookup failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleDrop acknowledges the client discarding its session token. Tokens
// are stateless, so there is nothing to revoke server-side.
func (h *Handler) HandleDrop(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, nil)
}
