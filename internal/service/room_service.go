package service

import (
	"context"
	"fmt"
	"strings"

	"guestms/internal/domain"
	"guestms/internal/models"

	"github.com/rs/zerolog"
)

type RoomService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewRoomService(repo domain.Repository, logger *zerolog.Logger) *RoomService {
	return &RoomService{repo: repo, logger: logger}
}

// Create adds a room. New rooms are active unless the input says otherwise
// and never start reserved.
func (s *RoomService) Create(ctx context.Context, in models.RoomInput) (*models.Room, error) {
	if err := validateRoomInput(&in); err != nil {
		return nil, err
	}

	room := &models.Room{IsActive: true}
	in.Apply(room)
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("room_id", room.ID).Str("room_code", room.Code).Msg("Room created")
	return room, nil
}

// Update replaces the editable fields of a room. The reserved flag is left
// to reconciliation.
func (s *RoomService) Update(ctx context.Context, id int64, in models.RoomInput) (*models.Room, error) {
	if err := validateRoomInput(&in); err != nil {
		return nil, err
	}

	room, err := s.repo.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	in.Apply(room)
	if err := s.repo.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("room_id", room.ID).Str("room_code", room.Code).Msg("Room updated")
	return s.repo.GetRoom(ctx, id)
}

// Delete removes a room no reservation references, whatever its status.
// Otherwise it fails with domain.ErrRoomInUse.
func (s *RoomService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteRoom(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("room_id", id).Msg("Room deleted")
	return nil
}

func (s *RoomService) Get(ctx context.Context, id int64) (*models.Room, error) {
	return s.repo.GetRoom(ctx, id)
}

func (s *RoomService) List(ctx context.Context, filter models.RoomFilter) ([]*models.Room, error) {
	if err := validateRoomFilter(filter); err != nil {
		return nil, err
	}
	return s.repo.ListRooms(ctx, filter)
}

// Search lists bookable rooms: active and not currently reserved.
func (s *RoomService) Search(ctx context.Context, filter models.RoomFilter) ([]*models.Room, error) {
	filter.ActiveOnly = true
	filter.AvailableOnly = true
	return s.List(ctx, filter)
}

func validateRoomInput(in *models.RoomInput) error {
	in.Code = strings.TrimSpace(in.Code)
	in.Category = strings.ToUpper(strings.TrimSpace(in.Category))

	switch {
	case in.Code == "":
		return domain.Invalid(domain.RuleInvalidInput, "room_code is required")
	case !models.IsValidCategory(in.Category):
		return domain.Invalid(domain.RuleInvalidInput, fmt.Sprintf("unknown category %q", in.Category))
	case !in.PricePerNight.IsPositive():
		return domain.Invalid(domain.RuleInvalidInput, "price_per_night must be positive")
	case in.Capacity < 1:
		return domain.Invalid(domain.RuleInvalidInput, "capacity must be at least 1")
	}
	return nil
}

func validateRoomFilter(filter models.RoomFilter) error {
	if filter.Category != "" && !models.IsValidCategory(filter.Category) {
		return domain.Invalid(domain.RuleInvalidInput, fmt.Sprintf("unknown category %q", filter.Category))
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return domain.Invalid(domain.RuleInvalidInput, "min_price is greater than max_price")
	}
	return nil
}
