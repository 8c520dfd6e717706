package audit

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"regdesk/internal/apperr"
	"regdesk/internal/metrics"
)

// clearBatchSize bounds each delete round to respect store write limits.
const clearBatchSize = 500

// Recorder appends entries and serves paginated reads. Append failures are
// reported to the logger and metrics, never to the caller: audit logging
// must not block check-ins or edits.
type Recorder struct {
	store  Store
	logger *zap.SugaredLogger
}

// NewRecorder builds a recorder over the given store.
func NewRecorder(store Store, logger *zap.SugaredLogger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record appends one entry. It never returns an error.
func (r *Recorder) Record(ctx context.Context, actor string, action Action, targetType TargetType, targetID, targetName string, changes map[string]Change) {
	entry := Entry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		ActorName:  actor,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		TargetName: targetName,
		Changes:    changes,
	}
	if err := r.store.Append(ctx, entry); err != nil {
		metrics.AuditAppendFailures.Inc()
		if r.logger != nil {
			r.logger.Errorw("audit append failed",
				"action", action, "target_id", targetID, "error", err)
		}
	}
}

// Page is one slice of the log in timestamp-descending order.
type Page struct {
	Entries    []Entry `json:"entries"`
	NextCursor string  `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}

// ReadPage fetches pageSize+1 entries to learn whether more exist; the
// sentinel row is discarded before returning.
func (r *Recorder) ReadPage(ctx context.Context, pageSize int, cursor string) (Page, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	after, err := decodeCursor(cursor)
	if err != nil {
		return Page{}, err
	}
	entries, err := r.store.List(ctx, pageSize+1, after)
	if err != nil {
		return Page{}, apperr.Wrap(err, apperr.KindStorage, "audit read failed")
	}
	page := Page{Entries: entries}
	if len(entries) > pageSize {
		page.Entries = entries[:pageSize]
		page.HasMore = true
	}
	if n := len(page.Entries); n > 0 && page.HasMore {
		last := page.Entries[n-1]
		page.NextCursor = encodeCursor(Cursor{Timestamp: last.Timestamp, ID: last.ID})
	}
	return page, nil
}

// ClearAll deletes every entry in bounded batches. The clear itself is not
// audited; it is a destructive admin action on the log.
func (r *Recorder) ClearAll(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.store.DeleteBatch(ctx, clearBatchSize)
		if err != nil {
			return total, apperr.Wrap(err, apperr.KindStorage, "audit clear failed")
		}
		total += n
		if n < clearBatchSize {
			return total, nil
		}
	}
}

func encodeCursor(c Cursor) string {
	raw := c.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "malformed cursor")
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, apperr.New(apperr.KindValidation, "malformed cursor")
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "malformed cursor")
	}
	return &Cursor{Timestamp: parsed, ID: id}, nil
}
