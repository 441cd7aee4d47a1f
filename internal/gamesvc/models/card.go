package models

import "time"

// CardStat counts how often a card showed up in finished hands.
type CardStat struct {
	Suit      string    `json:"suit" bson:"suit"`
	Rank      string    `json:"rank" bson:"rank"`
	Count     int64     `json:"count" bson:"count"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
