// Package outbox publishes job-start notifications for the Indexing Job
// Coordinator (C7) and Extraction Job Coordinator (C8) to Kafka, so external
// consumers can react without polling GetIndexingJob/GetExtractionJob. Never
// load-bearing: the relational store rows remain the source of truth, and a
// publish failure is logged and swallowed (spec §10/A8).
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"docpipeline/internal/config"
)

// JobEvent is the notification payload published on job creation.
type JobEvent struct {
	JobID        string    `json:"job_id"`
	JobType      string    `json:"job_type"` // "indexing" or "extraction"
	CollectionID string    `json:"collection_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Notifier publishes JobEvents. Every method is a no-op on a nil receiver or
// a Notifier built from a disabled config, so callers never need to branch
// on whether the outbox is configured.
type Notifier struct {
	indexWriter   *kafka.Writer
	extractWriter *kafka.Writer
}

// New builds a Notifier when cfg.Enabled; returns nil (a valid, inert
// receiver) when disabled.
func New(cfg config.OutboxConfig) *Notifier {
	if !cfg.Enabled {
		return nil
	}
	return &Notifier{
		indexWriter: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.IndexTopic,
			Balancer: &kafka.LeastBytes{},
		},
		extractWriter: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.ExtractTopic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// NotifyIndexingJobCreated publishes a JobEvent for a newly-created
// IndexingJob. Errors are logged, never returned — the caller's job was
// already durably created.
func (n *Notifier) NotifyIndexingJobCreated(ctx context.Context, jobID, collectionID string) {
	n.publish(ctx, n.indexWriter, JobEvent{JobID: jobID, JobType: "indexing", CollectionID: collectionID, CreatedAt: time.Now()})
}

// NotifyExtractionJobCreated publishes a JobEvent for a newly-created
// ExtractionJob.
func (n *Notifier) NotifyExtractionJobCreated(ctx context.Context, jobID, collectionID string) {
	n.publish(ctx, n.extractWriter, JobEvent{JobID: jobID, JobType: "extraction", CollectionID: collectionID, CreatedAt: time.Now()})
}

func (n *Notifier) publish(ctx context.Context, w *kafka.Writer, ev JobEvent) {
	if n == nil || w == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Msg("outbox_marshal_failed")
		return
	}
	if err := w.WriteMessages(ctx, kafka.Message{Value: payload, Time: ev.CreatedAt}); err != nil {
		log.Warn().Err(err).Str("job_id", ev.JobID).Msg("outbox_publish_failed")
	}
}

// Close shuts down both writers.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	if n.indexWriter != nil {
		if err := n.indexWriter.Close(); err != nil {
			log.Warn().Err(err).Msg("outbox_index_writer_close_failed")
		}
	}
	if n.extractWriter != nil {
		if err := n.extractWriter.Close(); err != nil {
			log.Warn().Err(err).Msg("outbox_extract_writer_close_failed")
		}
	}
}
