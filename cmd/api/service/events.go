package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/arborhq/lineage/common/logger"
	"github.com/arborhq/lineage/common/queue"
)

// ActivityEvent is a fire-and-forget record of a successful mutation.
// Consumers are not correctness-bearing; publish failures are logged and
// never fail the mutation that produced them.
type ActivityEvent struct {
	Type      string    `json:"type"`
	TreeID    string    `json:"tree_id"`
	ActorID   string    `json:"actor_id"`
	SubjectID string    `json:"subject_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// publishActivity emits an activity event, swallowing failures
func publishActivity(ctx context.Context, q queue.Queue, log *logger.Logger, event ActivityEvent) {
	if q == nil {
		return
	}
	event.At = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error("marshal activity event", "type", event.Type, "error", err)
		return
	}
	if err := q.Publish(ctx, queue.TopicActivity, event.SubjectID, payload); err != nil {
		log.Warn("failed to publish activity event", "type", event.Type, "error", err)
	}
}
