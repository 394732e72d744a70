package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bank-transfers/internal/domain"
	"bank-transfers/internal/telemetry"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type ClientDirectory interface {
	Register(ctx context.Context, name, accountNumber string, balance decimal.Decimal) (domain.Client, error)
	List(ctx context.Context) ([]domain.Client, error)
	FindByAccountNumber(ctx context.Context, accountNumber string) (domain.Client, error)
}

type TransferEngine interface {
	Transfer(ctx context.Context, req domain.TransferRequest) (domain.TransferRecord, error)
	History(ctx context.Context, accountNumber string) ([]domain.TransferRecord, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	clients   ClientDirectory
	transfers TransferEngine
	db        Pinger
	timeout   time.Duration
	log       *slog.Logger
}

func NewHandlers(clients ClientDirectory, transfers TransferEngine, db Pinger, timeout time.Duration, log *slog.Logger) *Handlers {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{clients: clients, transfers: transfers, db: db, timeout: timeout, log: log}
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			h.log.WarnContext(ctx, "health check failed", "error", err)
			writeErr(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, domain.ErrorResponse{Status: code, Message: msg})
}

func httpStatusForErr(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateAccount):
		return http.StatusConflict

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout

	default:
		return http.StatusInternalServerError
	}
}

func publicErrMessage(code int, err error) string {
	// Don't leak internals on 5xx.
	if code >= 500 {
		return "Erro interno do servidor"
	}
	return domain.Message(err)
}

func (h *Handlers) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := httpStatusForErr(err)
	if code >= 500 {
		h.log.ErrorContext(ctx, op+" failed", "error", err)
	}
	writeErr(w, code, publicErrMessage(code, err))
}

// POST /api/v1/clientes
func (h *Handlers) RegisterClient(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterClientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.clients.Register(ctx, req.Name, req.AccountNumber, req.Balance)
	if err != nil {
		h.fail(ctx, w, "register client", err)
		return
	}
	telemetry.ClientsRegisteredTotal.Inc()
	writeJSON(w, http.StatusCreated, c)
}

// GET /api/v1/clientes
func (h *Handlers) ListClients(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	clients, err := h.clients.List(ctx)
	if err != nil {
		h.fail(ctx, w, "list clients", err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

// GET /api/v1/clientes/{numeroConta}
func (h *Handlers) GetClient(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.clients.FindByAccountNumber(ctx, mux.Vars(r)["numeroConta"])
	if err != nil {
		h.fail(ctx, w, "get client", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// POST /api/v1/transferencias
//
// A transfer rejected by a business rule is answered 400 with the persisted
// record as body, a completed one 201.
func (h *Handlers) Transfer(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := req.Validate(); err != nil {
		writeErr(w, http.StatusBadRequest, domain.Message(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rec, err := h.transfers.Transfer(ctx, req)
	if err != nil {
		h.fail(ctx, w, "transfer", err)
		return
	}
	if !rec.Succeeded {
		writeJSON(w, http.StatusBadRequest, rec)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// GET /api/v1/transferencias/historico/{numeroConta}
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	recs, err := h.transfers.History(ctx, mux.Vars(r)["numeroConta"])
	if err != nil {
		h.fail(ctx, w, "transfer history", err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
