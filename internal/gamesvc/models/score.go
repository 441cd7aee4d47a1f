package models

import "time"

type Score struct {
	ID         int64     `json:"id"`
	UserID     *string   `json:"user_id,omitempty"` // anonymous scores have no user
	DrinkCount int       `json:"drink_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type DailyChallenge struct {
	GameDate  string    `json:"game_date"` // YYYY-MM-DD, primary key
	Seed      int64     `json:"seed"`
	DayNumber int       `json:"day_number"`
	CreatedAt time.Time `json:"created_at"`
}

type DailyScore struct {
	UserID     string    `json:"user_id"`
	GameDate   string    `json:"game_date"`
	Attempts   int       `json:"attempts"`
	FinalScore int       `json:"final_score"`
	CreatedAt  time.Time `json:"created_at"`
}

type ScoreResult struct {
	Saved            bool `json:"saved"`
	FinalScore       int  `json:"final_score"`
	AlreadyCompleted bool `json:"already_completed"`
}

type DailyStatus struct {
	Completed bool `json:"completed"`
	Score     *int `json:"score,omitempty"`
	Attempts  int  `json:"attempts"`
}

type DailyStats struct {
	GameDate        string `json:"game_date"`
	Players         int64  `json:"players"`
	AverageAttempts string `json:"average_attempts"`
}
