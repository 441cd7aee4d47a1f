package broker

import (
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/multiplayer"
)

const DefaultHeartbeat = 5 * time.Second

// Broker carries room change notifications and presence over NATS.
type Broker struct {
	Conn      *nats.Conn
	Instance  string
	Heartbeat time.Duration
}

func NewBroker(conn *nats.Conn, instance string, heartbeat time.Duration) *Broker {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Broker{Conn: conn, Instance: instance, Heartbeat: heartbeat}
}

// SubscribeRoom delivers every change published for roomID.
func (b *Broker) SubscribeRoom(roomID string, onChange func(comm.RoomChange)) (multiplayer.Subscription, error) {
	sub, err := b.Conn.Subscribe(comm.RoomPlayersSubject(roomID), func(msg *nats.Msg) {
		change, err := comm.DecodeRoomChange(msg.Data)
		if err != nil {
			log.Errorf("Error decoding room change on %s: %s", msg.Subject, err)
			return
		}
		onChange(change)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// PublishRoomChange lets the socket service announce writes it makes on
// behalf of its players.
func (b *Broker) PublishRoomChange(change comm.RoomChange) error {
	payload, err := comm.EncodeRoomChange(change)
	if err != nil {
		return err
	}
	return b.Publish(comm.RoomPlayersSubject(change.RoomID), payload)
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}
	return nil
}
