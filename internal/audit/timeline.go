package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgercore/ledgercore/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// TimelineFilters narrows a tenant's audit timeline. Zero values match all.
type TimelineFilters struct {
	From       time.Time
	To         time.Time
	ActorID    uuid.UUID
	EntityType string
	Action     string
	Severity   Severity
	Page       int
	PageSize   int
}

// TimelineQuery is a normalised filter with its row window. Repositories return
// entries newest first.
type TimelineQuery struct {
	TimelineFilters
	Offset int
	Limit  int
}

// Matches applies the filters to one entry.
func (q TimelineQuery) Matches(e Entry) bool {
	switch {
	case !q.From.IsZero() && e.OccurredAt.Before(q.From):
		return false
	case !q.To.IsZero() && !e.OccurredAt.Before(q.To):
		return false
	case q.ActorID != uuid.Nil && e.ActorID != q.ActorID:
		return false
	case q.EntityType != "" && e.EntityType != q.EntityType:
		return false
	case q.Action != "" && e.Action != q.Action:
		return false
	case q.Severity != "" && e.Severity != q.Severity:
		return false
	}
	return true
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// TimelinePage is one page of the timeline.
type TimelinePage struct {
	Entries []Entry
	Paging  PagingInfo
}

// TimelineReader lists filtered entries.
type TimelineReader interface {
	ListTimeline(ctx context.Context, tenantID uuid.UUID, q TimelineQuery) ([]Entry, error)
}

// Timeline returns one page of audit entries, newest first. Page sizes default
// to 20 and are capped at 50.
func Timeline(ctx context.Context, tx TimelineReader, tenantID uuid.UUID, filters TimelineFilters) (TimelinePage, error) {
	if tenantID == uuid.Nil {
		return TimelinePage{}, shared.Invalid("tenant_id", "required")
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && !filters.From.Before(filters.To) {
		return TimelinePage{}, shared.Invalid("to", "must be after from")
	}
	if filters.Severity != "" && !filters.Severity.Valid() {
		return TimelinePage{}, shared.Invalid("severity", "unknown severity %q", filters.Severity)
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	filters.EntityType = strings.TrimSpace(filters.EntityType)
	filters.Action = strings.TrimSpace(filters.Action)
	filters.Page, filters.PageSize = page, pageSize

	rows, err := tx.ListTimeline(ctx, tenantID, TimelineQuery{
		TimelineFilters: filters,
		Offset:          (page - 1) * pageSize,
		Limit:           pageSize + 1,
	})
	if err != nil {
		return TimelinePage{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return TimelinePage{Entries: rows, Paging: paging}, nil
}
