package report

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oiblz/tally/pkg/domain"
	dErrors "github.com/oiblz/tally/pkg/domain-errors"
	"github.com/oiblz/tally/pkg/platform/httputil"
	"github.com/oiblz/tally/pkg/requestcontext"
)

// ReportService defines what the handler needs from the aggregator.
type ReportService interface {
	Summary(ctx context.Context, me domain.Identity) (*Summary, error)
	List(ctx context.Context, me domain.Identity, labels []domain.Label) (*Listing, error)
	SplitRecommendation(ctx context.Context, payer domain.Identity, label domain.Label) (*domain.Split, error)
}

// Handler exposes the read-model endpoints.
type Handler struct {
	service ReportService
	logger  *slog.Logger
}

// NewHandler constructs the report HTTP handler.
func NewHandler(service ReportService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the routes behind the session middleware.
func (h *Handler) Register(r chi.Router, requireSession func(http.Handler) http.Handler) {
	r.Group(func(g chi.Router) {
		g.Use(requireSession)
		g.Get("/summary", h.HandleSummary)
		g.Post("/list", h.HandleList)
		g.Get("/expense/splitrecc/{payer}/{label}", h.HandleSplitRecommendation)
	})
}

// ListRequest optionally narrows the listing to a set of labels. A
// present (even empty) set drops transfers from the result.
type ListRequest struct {
	Labels *[]string `json:"labels"`
}

// HandleSummary reports the caller's balance position.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := requestcontext.SessionFrom(ctx)

	summary, err := h.service.Summary(ctx, session.Who)
	if err != nil {
		h.logger.ErrorContext(ctx, "summary failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, summary)
}

// HandleList returns the month-grouped entry history.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := requestcontext.SessionFrom(ctx)

	req, ok := httputil.DecodeJSON[ListRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	var labels []domain.Label
	if req.Labels != nil {
		labels = make([]domain.Label, 0, len(*req.Labels))
		for _, raw := range *req.Labels {
			label, err := domain.ParseLabel(raw)
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown label"))
				return
			}
			labels = append(labels, label)
		}
	}

	listing, err := h.service.List(ctx, session.Who, labels)
	if err != nil {
		h.logger.ErrorContext(ctx, "list failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listing)
}

// HandleSplitRecommendation suggests a split for the payer and label, or
// null when no confirmed history matches.
func (h *Handler) HandleSplitRecommendation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payer, err := domain.ParseIdentity(chi.URLParam(r, "payer"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown payer"))
		return
	}
	label, err := domain.ParseLabel(chi.URLParam(r, "label"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown label"))
		return
	}

	split, err := h.service.SplitRecommendation(ctx, payer, label)
	if err != nil {
		h.logger.ErrorContext(ctx, "splitrecc failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, split)
}
