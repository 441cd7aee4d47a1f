package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/models"
)

const cardStatsCollection = "card_stats"

// CardStatStore keeps one counter document per (suit, rank) in mongo.
type CardStatStore struct {
	coll *mongo.Collection
}

func NewCardStatStore(db *mongo.Database) *CardStatStore {
	return &CardStatStore{coll: db.Collection(cardStatsCollection)}
}

func (s *CardStatStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "suit", Value: 1}, {Key: "rank", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create card stats index: %w", err)
	}
	return nil
}

// RecordCards increments the counter of every card in one unordered bulk
// write.
func (s *CardStatStore) RecordCards(ctx context.Context, cards []game.Card) error {
	if len(cards) == 0 {
		return nil
	}
	now := time.Now().UTC()
	writes := make([]mongo.WriteModel, 0, len(cards))
	for _, c := range cards {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"suit": string(c.Suit), "rank": string(c.Rank)}).
			SetUpdate(bson.M{
				"$inc": bson.M{"count": 1},
				"$set": bson.M{"updated_at": now},
			}).
			SetUpsert(true))
	}

	if _, err := s.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("record drawn cards: %w", err)
	}
	return nil
}

func (s *CardStatStore) ListStats(ctx context.Context) ([]models.CardStat, error) {
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "count", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find card stats: %w", err)
	}
	defer cur.Close(ctx)

	stats := []models.CardStat{}
	if err := cur.All(ctx, &stats); err != nil {
		return nil, fmt.Errorf("decode card stats: %w", err)
	}
	return stats, nil
}
