package queue

// Topics shared between the API service and its workers
const (
	// TopicPersonCreated triggers duplicate detection; keyed by person id
	TopicPersonCreated = "person.created"
	// TopicActivity carries fire-and-forget activity events for the
	// notification and activity-log consumers
	TopicActivity = "activity"
)
