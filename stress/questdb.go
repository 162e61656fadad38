package stress

import (
	"context"
	"time"

	qdb "github.com/questdb/go-questdb-client/v3"

	"github.com/FerroO2000/doublebuf/internal/config"
)

//////////////
//  CONFIG  //
//////////////

// Default values for the QuestDB sink configuration.
const (
	DefaultQuestDBAddress       = "localhost:9000"
	DefaultQuestDBTable         = "doublebuf_samples"
	DefaultQuestDBAutoFlushRows = 75_000
	DefaultQuestDBRetryTimeout  = time.Second
)

// QuestDBConfig is the configuration of the [QuestDBSink].
type QuestDBConfig struct {
	// Address of the QuestDB server (ILP over HTTP).
	//
	// Default: "localhost:9000"
	Address string

	// Table is the name of the table the samples are inserted into.
	//
	// Default: "doublebuf_samples"
	Table string

	// AutoFlushRows is the number of buffered rows that triggers a flush.
	//
	// Default: 75_000
	AutoFlushRows int

	// RetryTimeout is the maximum time spent retrying a failed flush.
	//
	// Default: 1s
	RetryTimeout time.Duration
}

// NewQuestDBConfig returns the default configuration of the [QuestDBSink].
func NewQuestDBConfig() *QuestDBConfig {
	return &QuestDBConfig{
		Address:       DefaultQuestDBAddress,
		Table:         DefaultQuestDBTable,
		AutoFlushRows: DefaultQuestDBAutoFlushRows,
		RetryTimeout:  DefaultQuestDBRetryTimeout,
	}
}

// Validate checks the configuration.
func (c *QuestDBConfig) Validate(ac *config.AnomalyCollector) {
	config.CheckNotEmpty(ac, "Address", &c.Address, DefaultQuestDBAddress)
	config.CheckNotEmpty(ac, "Table", &c.Table, DefaultQuestDBTable)

	config.CheckNotNegative(ac, "AutoFlushRows", &c.AutoFlushRows, DefaultQuestDBAutoFlushRows)
	config.CheckNotZero(ac, "AutoFlushRows", &c.AutoFlushRows, DefaultQuestDBAutoFlushRows)

	config.CheckNotNegative(ac, "RetryTimeout", &c.RetryTimeout, DefaultQuestDBRetryTimeout)
}

////////////
//  SINK  //
////////////

var _ Sink = (*QuestDBSink)(nil)

// QuestDBSink writes the samples into a QuestDB table.
// Each sample is a row with the run id as symbol.
type QuestDBSink struct {
	table  string
	sender qdb.LineSender
}

// NewQuestDBSink returns a new QuestDB sink.
func NewQuestDBSink(ctx context.Context, cfg *QuestDBConfig) (*QuestDBSink, error) {
	sender, err := qdb.NewLineSender(ctx,
		qdb.WithHttp(),
		qdb.WithAddress(cfg.Address),
		qdb.WithAutoFlushRows(cfg.AutoFlushRows),
		qdb.WithRetryTimeout(cfg.RetryTimeout),
	)
	if err != nil {
		return nil, err
	}

	return &QuestDBSink{
		table:  cfg.Table,
		sender: sender,
	}, nil
}

// Deliver inserts the samples and flushes them.
func (qs *QuestDBSink) Deliver(ctx context.Context, runID string, samples []Sample) error {
	for _, sample := range samples {
		err := qs.sender.Table(qs.table).
			Symbol("run", runID).
			Int64Column("read", sample.Read).
			Int64Column("index", int64(sample.Index)).
			Int64Column("lag", int64(sample.Lag)).
			BoolColumn("stale", sample.Stale).
			At(ctx, sample.Timestamp)

		if err != nil {
			return err
		}
	}

	return qs.sender.Flush(ctx)
}

// Close flushes the pending rows and closes the sender.
func (qs *QuestDBSink) Close(ctx context.Context) error {
	return qs.sender.Close(ctx)
}
