package events

// LearningTimeSource reports the seconds a learner spent in a course, or
// found=false when no data exists. Implementations front an external
// analytics store; failures must not block delivery.
type LearningTimeSource interface {
	LearningTimeSeconds(userID, courseKey string) (seconds int64, found bool, err error)
}
