package domain

const (
	EventBatchOpened  = "micronote_batch.opened"
	EventBatchClosed  = "micronote_batch.closed"
	EventBatchSettled = "micronote_batch.settled"
)

func IsCanonicalEmittedEvent(eventType string) bool {
	switch eventType {
	case EventBatchOpened, EventBatchClosed, EventBatchSettled:
		return true
	default:
		return false
	}
}

func CanonicalPartitionKeyPath(eventType string) string {
	if IsCanonicalEmittedEvent(eventType) {
		return "data.batch_slug"
	}
	return ""
}
