package common

const (
	// PolarExerciseTopic carries exercise notifications from the webhook
	// handler to the background subscriber.
	PolarExerciseTopic = "polar-exercise"

	// ActivityCreatedTopic announces newly imported activities.
	ActivityCreatedTopic = "activity-created"
)
