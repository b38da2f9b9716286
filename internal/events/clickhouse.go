package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	bufferSize    = 10_000
	flushInterval = 100 * time.Millisecond
	flushBatch    = 1000
	drainTimeout  = 2 * time.Second
)

// ArchiveSchema creates the archive table.
const ArchiveSchema = `CREATE TABLE IF NOT EXISTS product_events (
	event_id  String,
	timestamp DateTime64(3, 'UTC'),
	topic     LowCardinality(String),
	payload   String
) ENGINE = MergeTree ORDER BY (topic, timestamp)`

// recordSink persists a batch of records.
type recordSink interface {
	InsertRecords(ctx context.Context, records []*Record) error
	Close() error
}

// ClickHouseArchive keeps a copy of every published message in ClickHouse.
// Publish is non-blocking: records are buffered and batch-inserted in a
// background goroutine, and dropped when the buffer is full.
type ClickHouseArchive struct {
	sink    recordSink
	buffer  chan *Record
	done    chan struct{}
	flushed chan struct{}
	logger  *zap.Logger
}

// NewClickHouseArchive connects to ClickHouse and starts the background flush loop.
func NewClickHouseArchive(ctx context.Context, dsn string, logger *zap.Logger) (*ClickHouseArchive, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.Exec(ctx, ArchiveSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create archive table: %w", err)
	}
	return newClickHouseArchiveWithSink(&clickhouseSink{conn: conn}, logger), nil
}

// newClickHouseArchiveWithSink creates an archive with a custom sink (for testing).
func newClickHouseArchiveWithSink(sink recordSink, logger *zap.Logger) *ClickHouseArchive {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &ClickHouseArchive{
		sink:    sink,
		buffer:  make(chan *Record, bufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
	}
	go a.flushLoop()
	return a
}

// Publish queues the message for archiving. It never fails; a full buffer drops the record.
func (a *ClickHouseArchive) Publish(_ context.Context, topic string, payload []byte) error {
	rec := &Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Topic:     topic,
		Payload:   string(payload),
	}
	select {
	case a.buffer <- rec:
	default:
		a.logger.Warn("clickhouse buffer full, dropping event",
			zap.String("event_id", rec.ID),
			zap.String("topic", topic),
		)
	}
	return nil
}

// Close drains buffered records and closes the connection.
func (a *ClickHouseArchive) Close() error {
	close(a.done)
	<-a.flushed
	return a.sink.Close()
}

func (a *ClickHouseArchive) flushLoop() {
	defer close(a.flushed)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*Record, 0, flushBatch)

	for {
		select {
		case rec := <-a.buffer:
			batch = append(batch, rec)
			if len(batch) >= flushBatch {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.done:
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
		drainLoop:
			for {
				select {
				case rec := <-a.buffer:
					batch = append(batch, rec)
				case <-drainCtx.Done():
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				a.flush(batch)
			}
			return
		}
	}
}

func (a *ClickHouseArchive) flush(records []*Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.sink.InsertRecords(ctx, records); err != nil {
		a.logger.Error("clickhouse batch send failed",
			zap.Int("batch_size", len(records)),
			zap.Error(err),
		)
	}
}

type clickhouseSink struct {
	conn driver.Conn
}

func (s *clickhouseSink) InsertRecords(ctx context.Context, records []*Record) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO product_events (event_id, timestamp, topic, payload)
	`)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := batch.Append(r.ID, r.Timestamp, r.Topic, r.Payload); err != nil {
			return err
		}
	}
	return batch.Send()
}

func (s *clickhouseSink) Close() error {
	return s.conn.Close()
}
