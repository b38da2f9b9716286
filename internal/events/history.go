package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Page size bounds for history queries.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// HistoryQuery filters and paginates archived records.
type HistoryQuery struct {
	Topic    *string
	Since    *time.Time
	Until    *time.Time
	Page     int
	PageSize int
}

// Normalize clamps page and page size into range.
func (q *HistoryQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
}

// HistoryPage is one page of archived records, newest first.
type HistoryPage struct {
	Records  []Record `json:"records"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}

// ClickHouseHistory reads the product_events archive.
type ClickHouseHistory struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseHistory opens a ClickHouse connection for read queries.
func NewClickHouseHistory(ctx context.Context, dsn string, logger *zap.Logger) (*ClickHouseHistory, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewClickHouseHistory: %w", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewClickHouseHistory: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("NewClickHouseHistory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickHouseHistory{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (h *ClickHouseHistory) Close() error {
	return h.conn.Close()
}

// historyFilter renders q as a WHERE clause with named parameters.
func historyFilter(q HistoryQuery) (string, []any) {
	conditions := []string{"1 = 1"}
	var args []any
	if q.Topic != nil {
		conditions = append(conditions, "topic = @topic")
		args = append(args, clickhouse.Named("topic", *q.Topic))
	}
	if q.Since != nil {
		conditions = append(conditions, "timestamp >= @since")
		args = append(args, clickhouse.Named("since", *q.Since))
	}
	if q.Until != nil {
		conditions = append(conditions, "timestamp <= @until")
		args = append(args, clickhouse.Named("until", *q.Until))
	}
	return strings.Join(conditions, " AND "), args
}

// ListRecords returns one page of archived records and the total match count.
func (h *ClickHouseHistory) ListRecords(ctx context.Context, q HistoryQuery) (*HistoryPage, error) {
	q.Normalize()
	where, args := historyFilter(q)

	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM product_events WHERE %s", where)
	if err := h.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("ListRecords count: %w", err)
	}

	dataQuery := fmt.Sprintf(
		"SELECT event_id, timestamp, topic, payload FROM product_events WHERE %s "+
			"ORDER BY timestamp DESC LIMIT @limit OFFSET @offset",
		where,
	)
	args = append(args,
		clickhouse.Named("limit", uint32(q.PageSize)),
		clickhouse.Named("offset", uint32((q.Page-1)*q.PageSize)),
	)

	rows, err := h.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("ListRecords query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	page := &HistoryPage{Records: []Record{}, Total: int(total), Page: q.Page, PageSize: q.PageSize}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Topic, &r.Payload); err != nil {
			return nil, fmt.Errorf("ListRecords scan: %w", err)
		}
		page.Records = append(page.Records, r)
	}
	return page, rows.Err()
}
