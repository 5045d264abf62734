package core

import "time"

// Feedback is one human rating of a persisted comment. Rating is positive
// for helpful, negative for unhelpful and zero for neutral.
type Feedback struct {
	ID        string    `json:"id" yaml:"id"`
	ReviewID  string    `json:"review_id" yaml:"review_id"`
	CommentID string    `json:"comment_id" yaml:"comment_id"`
	Rating    int       `json:"rating" yaml:"rating"`
	UserID    string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// FeedbackSummary counts ratings by sign.
type FeedbackSummary struct {
	Up      int `json:"up" yaml:"up"`
	Down    int `json:"down" yaml:"down"`
	Neutral int `json:"neutral" yaml:"neutral"`
}

// SummarizeFeedback counts every entry, including superseded ratings.
func SummarizeFeedback(entries []Feedback) FeedbackSummary {
	var s FeedbackSummary
	for _, e := range entries {
		switch {
		case e.Rating > 0:
			s.Up++
		case e.Rating < 0:
			s.Down++
		default:
			s.Neutral++
		}
	}
	return s
}
