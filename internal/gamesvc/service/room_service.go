package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/models"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/store"
)

const (
	MinNicknameLength = 2
	MaxNicknameLength = 20

	roomCodeLength   = 6
	roomCodeAttempts = 5
	// no 0/O or 1/I
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type RoomRepository interface {
	CreateRoom(ctx context.Context, id, code, hostNickname string) (*models.Room, error)
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	AddPlayer(ctx context.Context, roomID, nickname string) (*models.Player, error)
	ListPlayers(ctx context.Context, roomID string) ([]models.Player, error)
	UpsertPlayerState(ctx context.Context, roomID, nickname string, state []byte, score int, completed bool) (*models.Player, error)
	DeletePlayer(ctx context.Context, roomID, nickname string) (bool, error)
	DeleteRoom(ctx context.Context, roomID string) (bool, error)
	MarkStarted(ctx context.Context, roomID string) error
}

// RoomNotifier fans room and player changes out to subscribed clients.
type RoomNotifier interface {
	PublishRoomChange(change comm.RoomChange) error
}

type RoomService struct {
	store    RoomRepository
	notifier RoomNotifier
	newCode  func() (string, error)
}

func NewRoomService(store RoomRepository, notifier RoomNotifier) *RoomService {
	return &RoomService{store: store, notifier: notifier, newCode: GenerateRoomCode}
}

// NormalizeNickname trims and length-checks a nickname.
func NormalizeNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	n := utf8.RuneCountInString(nickname)
	if n < MinNicknameLength {
		return "", ErrNicknameTooShort
	}
	if n > MaxNicknameLength {
		return "", ErrNicknameTooLong
	}
	return nickname, nil
}

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func GenerateRoomCode() (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := 0; i < roomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(roomCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// CreateRoom opens a lobby hosted by hostNickname, retrying code collisions.
func (s *RoomService) CreateRoom(ctx context.Context, hostNickname string) (*models.Room, error) {
	host, err := NormalizeNickname(hostNickname)
	if err != nil {
		return nil, err
	}

	for i := 0; i < roomCodeAttempts; i++ {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}
		room, err := s.store.CreateRoom(ctx, uuid.New().String(), code, host)
		if errors.Is(err, store.ErrRoomCodeTaken) {
			log.Warnf("room code %s collided, retrying", code)
			continue
		}
		if err != nil {
			return nil, err
		}
		return room, nil
	}
	return nil, fmt.Errorf("could not allocate a room code after %d attempts", roomCodeAttempts)
}

// JoinRoom adds nickname to the lobby behind code.
func (s *RoomService) JoinRoom(ctx context.Context, code, nickname string) (*models.Room, error) {
	nickname, err := NormalizeNickname(nickname)
	if err != nil {
		return nil, err
	}
	room, err := s.store.GetRoomByCode(ctx, NormalizeRoomCode(code))
	if err != nil {
		return nil, err
	}
	if room.GameStarted {
		return nil, ErrRoomStarted
	}
	player, err := s.store.AddPlayer(ctx, room.ID, nickname)
	if err != nil {
		return nil, err
	}

	s.publish(comm.RoomChange{
		Kind:     comm.PlayerUpserted,
		RoomID:   room.ID,
		Nickname: player.Nickname,
	})
	return room, nil
}

func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	return s.store.GetRoom(ctx, roomID)
}

func (s *RoomService) ListPlayers(ctx context.Context, roomID string) ([]models.Player, error) {
	return s.store.ListPlayers(ctx, roomID)
}

// SavePlayerState persists the player's own state and announces it to
// the room. Score mirrors the drink count, completed mirrors a win.
func (s *RoomService) SavePlayerState(ctx context.Context, roomID, nickname string, state game.State) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal game state: %w", err)
	}
	score := max(state.DrinkCount, 0)
	if _, err := s.store.UpsertPlayerState(ctx, roomID, nickname, blob, score, state.HasWon); err != nil {
		return err
	}

	s.publish(comm.RoomChange{
		Kind:      comm.PlayerUpserted,
		RoomID:    roomID,
		Nickname:  nickname,
		State:     blob,
		Score:     score,
		Completed: state.HasWon,
	})
	return nil
}

func (s *RoomService) DeletePlayer(ctx context.Context, roomID, nickname string) error {
	deleted, err := s.store.DeletePlayer(ctx, roomID, nickname)
	if err != nil {
		return err
	}
	if deleted {
		s.publish(comm.RoomChange{Kind: comm.PlayerDeleted, RoomID: roomID, Nickname: nickname})
	}
	return nil
}

func (s *RoomService) DeleteRoom(ctx context.Context, roomID string) error {
	deleted, err := s.store.DeleteRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if deleted {
		s.publish(comm.RoomChange{Kind: comm.RoomDeleted, RoomID: roomID})
	}
	return nil
}

func (s *RoomService) StartRoom(ctx context.Context, roomID string) error {
	if err := s.store.MarkStarted(ctx, roomID); err != nil {
		return err
	}
	s.publish(comm.RoomChange{Kind: comm.RoomStarted, RoomID: roomID})
	return nil
}

func (s *RoomService) publish(change comm.RoomChange) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishRoomChange(change); err != nil {
		log.Errorf("publish %s for room %s: %v", change.Kind, change.RoomID, err)
	}
}
