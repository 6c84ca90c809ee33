package app

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/accounting"
	"github.com/ledgercore/ledgercore/internal/audit"
	"github.com/ledgercore/ledgercore/internal/observability"
	"github.com/ledgercore/ledgercore/internal/platform/httpx"
	"github.com/ledgercore/ledgercore/internal/shared"
	"github.com/ledgercore/ledgercore/jobs"
)

// LedgerReader is the read side of the coordinator exposed on the ops server.
type LedgerReader interface {
	TrialBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (accounting.TrialBalance, error)
	CheckIntegrity(ctx context.Context, tenantID uuid.UUID) ([]accounting.IntegrityIssue, error)
	AuditTimeline(ctx context.Context, tenantID uuid.UUID, filters audit.TimelineFilters) (audit.TimelinePage, error)
}

// Pinger reports backing store liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for the ops router.
type RouterParams struct {
	Logger     *slog.Logger
	Ledger     LedgerReader
	DB         Pinger
	JobHandler *jobs.Handler
	Metrics    *observability.Metrics
	Timeout    time.Duration
	Now        func() time.Time
}

// NewRouter builds the ops HTTP surface of the worker.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	if params.Timeout <= 0 {
		params.Timeout = 10 * time.Second
	}
	if params.Now == nil {
		params.Now = time.Now
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer, chimw.Timeout(params.Timeout))
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.DB != nil {
			if err := params.DB.Ping(r.Context()); err != nil {
				params.Logger.Warn("healthz ping", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Ledger != nil {
		h := ledgerHandler{ledger: params.Ledger, logger: params.Logger, now: params.Now}
		r.Route("/ledger/{tenantID}", func(r chi.Router) {
			r.Get("/trial-balance", h.trialBalance)
			r.Get("/integrity", h.integrity)
			r.Get("/audit", h.auditTimeline)
		})
	}
	return r
}

type ledgerHandler struct {
	ledger LedgerReader
	logger *slog.Logger
	now    func() time.Time
}

type balanceRow struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Debit  string `json:"debit"`
	Credit string `json:"credit"`
}

type trialBalanceResponse struct {
	TenantID    uuid.UUID    `json:"tenant_id"`
	AsOf        string       `json:"as_of"`
	Rows        []balanceRow `json:"rows"`
	TotalDebit  string       `json:"total_debit"`
	TotalCredit string       `json:"total_credit"`
	Balanced    bool         `json:"balanced"`
}

type integrityIssue struct {
	Kind    string    `json:"kind"`
	EntryID uuid.UUID `json:"entry_id"`
	Number  string    `json:"number"`
	Detail  string    `json:"detail"`
}

func (h ledgerHandler) trialBalance(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf := h.now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			httpx.RespondError(w, shared.Invalid("as_of", "must be YYYY-MM-DD"))
			return
		}
		asOf = day.Add(24*time.Hour - time.Nanosecond)
	}
	tb, err := h.ledger.TrialBalance(r.Context(), tenantID, asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := trialBalanceResponse{
		TenantID:    tb.TenantID,
		AsOf:        asOf.Format(time.DateOnly),
		Rows:        make([]balanceRow, 0, len(tb.Rows)),
		TotalDebit:  money(tb.TotalDebit),
		TotalCredit: money(tb.TotalCredit),
		Balanced:    tb.Balanced(),
	}
	for _, row := range tb.Rows {
		resp.Rows = append(resp.Rows, balanceRow{
			Code:   row.Code,
			Name:   row.Name,
			Type:   string(row.Type),
			Debit:  money(row.Debit),
			Credit: money(row.Credit),
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h ledgerHandler) integrity(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	issues, err := h.ledger.CheckIntegrity(r.Context(), tenantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]integrityIssue, 0, len(issues))
	for _, issue := range issues {
		out = append(out, integrityIssue{Kind: issue.Kind, EntryID: issue.EntryID, Number: issue.Number, Detail: issue.Detail})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tenant_id": tenantID, "issues": out})
}

type auditEntry struct {
	ID         uuid.UUID      `json:"id"`
	ActorID    uuid.UUID      `json:"actor_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Severity   string         `json:"severity"`
	Detail     map[string]any `json:"detail"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type auditResponse struct {
	Entries  []auditEntry `json:"entries"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	NextPage int          `json:"next_page,omitempty"`
}

func (h ledgerHandler) auditTimeline(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	filters := audit.TimelineFilters{
		EntityType: q.Get("entity_type"),
		Action:     q.Get("action"),
		Severity:   audit.Severity(strings.ToUpper(q.Get("severity"))),
	}
	for field, target := range map[string]*int{"page": &filters.Page, "page_size": &filters.PageSize} {
		raw := q.Get(field)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpx.RespondError(w, shared.Invalid(field, "must be a positive integer"))
			return
		}
		*target = n
	}
	page, err := h.ledger.AuditTimeline(r.Context(), tenantID, filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := auditResponse{
		Entries:  make([]auditEntry, 0, len(page.Entries)),
		Page:     page.Paging.Page,
		PageSize: page.Paging.PageSize,
		NextPage: page.Paging.NextPage,
	}
	for _, e := range page.Entries {
		resp.Entries = append(resp.Entries, auditEntry{
			ID:         e.ID,
			ActorID:    e.ActorID,
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Severity:   string(e.Severity),
			Detail:     e.Detail,
			OccurredAt: e.OccurredAt,
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h ledgerHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("ops ledger request",
		slog.String("path", r.URL.Path),
		slog.String("request_id", chimw.GetReqID(r.Context())),
		slog.Any("error", err),
	)
	httpx.RespondError(w, err)
}

func tenantParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		return uuid.Nil, shared.Invalid("tenant_id", "must be a UUID")
	}
	return id, nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
