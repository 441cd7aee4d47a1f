package broker

import (
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
)

// Broker publishes room lifecycle changes made by the HTTP API and the
// janitor to the room subjects the socket service listens on.
type Broker struct {
	Conn *nats.Conn
}

func NewBroker(nc *nats.Conn) *Broker {
	return &Broker{Conn: nc}
}

func (b *Broker) PublishRoomChange(change comm.RoomChange) error {
	payload, err := comm.EncodeRoomChange(change)
	if err != nil {
		log.Errorf("unable to marshal %s for room %s: %s", change.Kind, change.RoomID, err)
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
