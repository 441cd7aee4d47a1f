package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/marcinlukanus/RideTheBusV2-sub000/configs"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/broker"
	svcconfig "github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/config"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/db"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/store"
	natscli "github.com/marcinlukanus/RideTheBusV2-sub000/internal/nats"
)

const SERVICE_NAME = "ctl"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

type roomPurger interface {
	PurgeAbandoned(ctx context.Context, ttl, idle time.Duration) ([]string, error)
}

type roomPublisher interface {
	PublishRoomChange(change comm.RoomChange) error
}

func main() {
	cfg := svcconfig.Load()

	dbpool, err := db.Connect(cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	n, err := natscli.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"_"+instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	rooms := store.NewRoomStore(store.NewPoolAdapter(dbpool))
	b := broker.NewBroker(n.Conn)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.JanitorInterval)
	defer ticker.Stop()

	log.Infof("%s service purging rooms every %s (ttl %s, idle %s)", SERVICE_NAME, cfg.JanitorInterval, cfg.RoomTTL, cfg.RoomIdle)
	for {
		select {
		case <-ctx.Done():
			log.Infof("%s service gracefully stopped", SERVICE_NAME)
			return
		case <-ticker.C:
			purgeRooms(ctx, rooms, b, cfg.RoomTTL, cfg.RoomIdle)
		}
	}
}

// purgeRooms deletes abandoned rooms and tells any client still seated
// in them that the room is gone.
func purgeRooms(ctx context.Context, rooms roomPurger, pub roomPublisher, ttl, idle time.Duration) int {
	ids, err := rooms.PurgeAbandoned(ctx, ttl, idle)
	if err != nil {
		log.Errorf("purge abandoned rooms: %v", err)
		return 0
	}
	for _, id := range ids {
		if err := pub.PublishRoomChange(comm.RoomChange{Kind: comm.RoomDeleted, RoomID: id}); err != nil {
			log.Errorf("error publishing room-deleted for %s: %v", id, err)
		}
	}
	if len(ids) > 0 {
		log.Infof("purged %d abandoned rooms", len(ids))
	}
	return len(ids)
}
