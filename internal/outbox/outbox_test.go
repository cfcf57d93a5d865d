package outbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"docpipeline/internal/config"
)

func TestNewReturnsNilWhenDisabled(t *testing.T) {
	n := New(config.OutboxConfig{Enabled: false})
	assert.Nil(t, n)
}

func TestNilNotifierMethodsAreNoOps(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() {
		n.NotifyIndexingJobCreated(context.Background(), "job-1", "col-1")
		n.NotifyExtractionJobCreated(context.Background(), "job-2", "col-1")
		n.Close()
	})
}

func TestPublishIsNoOpWithNilWriter(t *testing.T) {
	n := &Notifier{}
	assert.NotPanics(t, func() {
		n.publish(context.Background(), nil, JobEvent{JobID: "job-1"})
	})
}
