package domain

// ProgressState holds the learner's practice counters.
type ProgressState struct {
	ScenariosCompleted int `json:"scenarios_completed"`
	MessagesSent       int `json:"messages_sent"`
	CurrentStreak      int `json:"current_streak"`
	// LastPracticeDate is a calendar date (YYYY-MM-DD); empty means never.
	LastPracticeDate string `json:"last_practice_date,omitempty"`
}
