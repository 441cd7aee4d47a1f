package service

import (
	"errors"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/store"
)

var (
	ErrNicknameTooShort = errors.New("nickname must be at least 2 characters")
	ErrNicknameTooLong  = errors.New("nickname must be at most 20 characters")
	ErrIdentityRequired = errors.New("a signed-in user is required")
	ErrInvalidDate      = errors.New("invalid game date")
	ErrNotToday         = errors.New("only today's challenge can be scored")
	ErrInvalidScore     = errors.New("score must not be negative")
	ErrInvalidCards     = errors.New("cards are not valid")
	ErrAlreadyCompleted = errors.New("daily challenge already completed today")

	ErrRoomNotFound  = store.ErrRoomNotFound
	ErrRoomStarted   = store.ErrRoomStarted
	ErrNicknameTaken = store.ErrNicknameTaken
)
