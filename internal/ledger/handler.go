package ledger

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oiblz/tally/pkg/domain"
	dErrors "github.com/oiblz/tally/pkg/domain-errors"
	"github.com/oiblz/tally/pkg/platform/httputil"
	"github.com/oiblz/tally/pkg/requestcontext"
)

// dateLayout is the wire format for entry dates.
const dateLayout = "2006-01-02"

// LedgerService defines what the handler needs from the service layer.
type LedgerService interface {
	SubmitExpense(ctx context.Context, creator domain.Identity, cmd *SubmitExpenseCommand) (int64, error)
	SubmitTransfer(ctx context.Context, creator domain.Identity, date time.Time, amount int64) (int64, error)
	ConfirmExpense(ctx context.Context, id int64, caller domain.Identity) error
	RefuseExpense(ctx context.Context, id int64, caller domain.Identity) error
	ConfirmTransfer(ctx context.Context, id int64, caller domain.Identity) error
	RefuseTransfer(ctx context.Context, id int64, caller domain.Identity) error
}

// Handler exposes the expense and transfer endpoints.
type Handler struct {
	service LedgerService
	logger  *slog.Logger
}

// NewHandler constructs the ledger HTTP handler.
func NewHandler(service LedgerService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the routes. All of them require a session token.
func (h *Handler) Register(r chi.Router, requireSession func(http.Handler) http.Handler) {
	r.Group(func(g chi.Router) {
		g.Use(requireSession)
		g.Post("/expense/submit", h.HandleSubmitExpense)
		g.Post("/expense/confirm/{id}", h.HandleConfirmExpense)
		g.Post("/expense/refuse/{id}", h.HandleRefuseExpense)
		g.Post("/transfer/submit", h.HandleSubmitTransfer)
		g.Post("/transfer/confirm/{id}", h.HandleConfirmTransfer)
		g.Post("/transfer/refuse/{id}", h.HandleRefuseTransfer)
	})
}

// SubmitExpenseRequest is the expense submission body. Owed is only
// accepted for the arbitrary split.
type SubmitExpenseRequest struct {
	Payer  string `json:"payer"`
	Split  string `json:"split"`
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Date   string `json:"date"`
	Paid   int64  `json:"paid"`
	Owed   *int64 `json:"owed,omitempty"`
}

// SubmitTransferRequest is the transfer submission body. The receiver is
// implied: transfers always go to the counter-party.
type SubmitTransferRequest struct {
	Date   string `json:"date"`
	Amount int64  `json:"amount"`
}

// IDResponse carries the identifier of a newly created entry.
type IDResponse struct {
	ID int64 `json:"id"`
}

// HandleSubmitExpense records a new expense pending the counter-party's
// approval.
func (h *Handler) HandleSubmitExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := requestcontext.SessionFrom(ctx)

	req, ok := httputil.DecodeJSON[SubmitExpenseRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	payer, err := domain.ParseIdentity(req.Payer)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown payer"))
		return
	}
	split, err := domain.ParseSplit(req.Split)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown split"))
		return
	}
	label, err := domain.ParseLabel(req.Label)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown label"))
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid date"))
		return
	}

	id, err := h.service.SubmitExpense(ctx, session.Who, &SubmitExpenseCommand{
		Payer:  payer,
		Split:  split,
		Label:  label,
		Detail: req.Detail,
		Date:   date,
		Paid:   req.Paid,
		Owed:   req.Owed,
	})
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeValidation) {
			h.logger.ErrorContext(ctx, "submit expense failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &IDResponse{ID: id})
}

// HandleSubmitTransfer records a new transfer to the counter-party.
func (h *Handler) HandleSubmitTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := requestcontext.SessionFrom(ctx)

	req, ok := httputil.DecodeJSON[SubmitTransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid date"))
		return
	}

	id, err := h.service.SubmitTransfer(ctx, session.Who, date, req.Amount)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeValidation) {
			h.logger.ErrorContext(ctx, "submit transfer failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &IDResponse{ID: id})
}

// HandleConfirmExpense approves the expense named in the path.
func (h *Handler) HandleConfirmExpense(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.service.ConfirmExpense)
}

// HandleRefuseExpense rejects the expense named in the path.
func (h *Handler) HandleRefuseExpense(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.service.RefuseExpense)
}

// HandleConfirmTransfer approves the transfer named in the path.
func (h *Handler) HandleConfirmTransfer(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.service.ConfirmTransfer)
}

// HandleRefuseTransfer rejects the transfer named in the path.
func (h *Handler) HandleRefuseTransfer(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.service.RefuseTransfer)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, domain.Identity) error) {
	ctx := r.Context()
	session, _ := requestcontext.SessionFrom(ctx)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid entry id"))
		return
	}

	if err := op(ctx, id, session.Who); err != nil {
		if !dErrors.HasCode(err, dErrors.CodePrecondition) {
			h.logger.ErrorContext(ctx, "resolve entry failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, nil)
}
