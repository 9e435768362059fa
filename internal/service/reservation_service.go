package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guestms/internal/domain"
	"guestms/internal/events"
	"guestms/internal/metrics"
	"guestms/internal/models"
	"guestms/internal/reservation"

	"github.com/rs/zerolog"
)

const lockRetryDelay = 25 * time.Millisecond

// ReservationOptions tunes locking, throttling and stay limits.
type ReservationOptions struct {
	LockTTL          time.Duration
	LockWait         time.Duration
	CreateRateLimit  int
	CreateRateWindow time.Duration
	Limits           reservation.StayLimits
}

func (o *ReservationOptions) applyDefaults() {
	if o.LockTTL <= 0 {
		o.LockTTL = models.DefaultRoomLockTTL * time.Second
	}
	if o.LockWait <= 0 {
		o.LockWait = models.DefaultRoomLockWait * time.Second
	}
	if o.CreateRateWindow <= 0 {
		o.CreateRateWindow = models.DefaultCreateRateWindow * time.Second
	}
}

type ReservationService struct {
	repo       domain.Repository
	coord      domain.Coordinator
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	opts       ReservationOptions
	now        func() time.Time
	logger     *zerolog.Logger
}

// NewReservationService wires the service. coord, eventBus and syncWorker
// may be nil.
func NewReservationService(
	repo domain.Repository,
	coord domain.Coordinator,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	opts ReservationOptions,
	logger *zerolog.Logger,
) *ReservationService {
	opts.applyDefaults()
	return &ReservationService{
		repo:       repo,
		coord:      coord,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		opts:       opts,
		now:        time.Now,
		logger:     logger,
	}
}

// Create books a room. The request is validated and inserted as confirmed in
// one transaction that also raises the room's reserved flag.
func (s *ReservationService) Create(ctx context.Context, req models.NewReservation) (*models.Reservation, error) {
	req.CheckIn = models.DateOnly(req.CheckIn)
	req.CheckOut = models.DateOnly(req.CheckOut)

	if req.Guests < 1 {
		return nil, s.reject(domain.Invalid(domain.RuleInvalidGuests, "guests must be at least 1"))
	}

	if err := s.checkRateLimit(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	release, err := s.lockRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	defer release()

	var res *models.Reservation
	var room *models.Room
	err = s.repo.InTx(ctx, func(tx domain.ReservationTx) error {
		var err error
		room, err = tx.GetRoom(ctx, req.RoomID)
		if err != nil {
			return err
		}
		if !room.IsActive {
			return domain.Invalid(domain.RuleRoomInactive, fmt.Sprintf("room %s is not active", room.Code))
		}
		if _, err := tx.GetCustomer(ctx, req.CustomerID); err != nil {
			return err
		}

		existing, err := tx.ActiveReservationsForRoom(ctx, req.RoomID, 0)
		if err != nil {
			return err
		}
		if err := reservation.Validate(room, req.CheckIn, req.CheckOut, req.Guests, existing); err != nil {
			return err
		}
		if err := s.opts.Limits.Check(req.CheckIn, req.CheckOut, s.now()); err != nil {
			return err
		}

		res = &models.Reservation{
			RoomID:      req.RoomID,
			CustomerID:  req.CustomerID,
			CheckIn:     req.CheckIn,
			CheckOut:    req.CheckOut,
			Guests:      req.Guests,
			TotalAmount: models.StayTotal(req.CheckIn, req.CheckOut, room.PricePerNight),
			Notes:       req.Notes,
			Status:      models.StatusConfirmed,
		}
		if err := tx.InsertReservation(ctx, res); err != nil {
			return err
		}
		_, err = reservation.Reconcile(ctx, tx, req.RoomID)
		return err
	})
	if err != nil {
		return nil, s.reject(err)
	}

	metrics.IncReservationCreated()
	s.logger.Info().
		Int64("reservation_id", res.ID).
		Int64("room_id", res.RoomID).
		Int64("customer_id", res.CustomerID).
		Str("check_in", res.CheckIn.Format(models.DateLayout)).
		Str("check_out", res.CheckOut.Format(models.DateLayout)).
		Msg("Reservation created")

	s.publishEvent(events.EventReservationCreated, res, room.Code, "")
	s.enqueueSync(ctx, models.SyncTaskUpsert, res)

	return res, nil
}

// UpdateStatus applies a state machine transition and an optional notes
// change. A self-transition without a notes change succeeds without writing.
func (s *ReservationService) UpdateStatus(ctx context.Context, id int64, upd models.ReservationUpdate) (*models.Reservation, error) {
	if !models.IsValidStatus(upd.Status) {
		return nil, domain.Invalid(domain.RuleInvalidInput, fmt.Sprintf("unknown status %q", upd.Status))
	}

	var res *models.Reservation
	var from, roomCode string
	var changed bool
	err := s.repo.InTx(ctx, func(tx domain.ReservationTx) error {
		var err error
		res, err = tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		from = res.Status

		changed, err = reservation.Transition(ctx, tx, res, upd)
		if err != nil || !changed {
			return err
		}

		room, err := tx.GetRoom(ctx, res.RoomID)
		if err != nil {
			return err
		}
		roomCode = room.Code
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrIllegalTransition) {
			s.logger.Warn().Int64("reservation_id", id).Str("from", from).Str("to", upd.Status).Msg("Illegal status transition")
		}
		return nil, err
	}
	if !changed {
		return res, nil
	}

	if from != res.Status {
		metrics.IncTransition(from, res.Status)
	}
	s.logger.Info().
		Int64("reservation_id", res.ID).
		Str("from", from).
		Str("to", res.Status).
		Msg("Reservation updated")

	s.publishEvent(events.EventTypeForStatus(from, res.Status), res, roomCode, from)
	s.enqueueSync(ctx, models.SyncTaskUpdateStatus, res)

	return res, nil
}

// Cancel moves the reservation to canceled. Canceling twice is a no-op.
func (s *ReservationService) Cancel(ctx context.Context, id int64) error {
	_, err := s.UpdateStatus(ctx, id, models.ReservationUpdate{Status: models.StatusCanceled})
	return err
}

func (s *ReservationService) Get(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.repo.GetReservation(ctx, id)
}

func (s *ReservationService) List(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error) {
	if filter.Status != "" && !models.IsValidStatus(filter.Status) {
		return nil, domain.Invalid(domain.RuleInvalidInput, fmt.Sprintf("unknown status %q", filter.Status))
	}
	return s.repo.ListReservations(ctx, filter)
}

// ListInRange returns reservations whose stay touches [from, to].
func (s *ReservationService) ListInRange(ctx context.Context, from, to time.Time) ([]*models.Reservation, error) {
	if to.Before(from) {
		return nil, domain.Invalid(domain.RuleInvalidDateRange, "range end is before range start")
	}
	return s.repo.GetReservationsByDateRange(ctx, models.DateOnly(from), models.DateOnly(to))
}

// ReconcileAll recomputes every room's reserved flag in one transaction and
// returns how many flags changed.
func (s *ReservationService) ReconcileAll(ctx context.Context) (int, error) {
	changed := 0
	err := s.repo.InTx(ctx, func(tx domain.ReservationTx) error {
		ids, err := tx.ListRoomIDs(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			ok, err := reservation.Reconcile(ctx, tx, id)
			if err != nil {
				return err
			}
			if ok {
				changed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if changed > 0 {
		s.logger.Warn().Int("rooms", changed).Msg("Reconciliation repaired room flags")
	} else {
		s.logger.Debug().Msg("Reconciliation found no drift")
	}
	return changed, nil
}

// RunReconciler calls ReconcileAll every interval until ctx is done.
func (s *ReservationService) RunReconciler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ReconcileAll(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("Periodic reconciliation failed")
			}
		}
	}
}

func (s *ReservationService) checkRateLimit(ctx context.Context, customerID int64) error {
	if s.coord == nil || s.opts.CreateRateLimit <= 0 {
		return nil
	}
	key := fmt.Sprintf("reservation_create:%d", customerID)
	allowed, err := s.coord.CheckRateLimit(ctx, key, s.opts.CreateRateLimit, s.opts.CreateRateWindow)
	if err != nil {
		s.logger.Warn().Err(err).Int64("customer_id", customerID).Msg("Rate limit check failed, allowing request")
		return nil
	}
	if !allowed {
		return fmt.Errorf("customer %d: %w", customerID, domain.ErrRateLimited)
	}
	return nil
}

// lockRoom waits up to LockWait for the room lock. Coordinator failures are
// logged and the request proceeds; the write transaction still serializes.
func (s *ReservationService) lockRoom(ctx context.Context, roomID int64) (func(), error) {
	noop := func() {}
	if s.coord == nil {
		return noop, nil
	}

	start := time.Now()
	deadline := start.Add(s.opts.LockWait)
	for {
		token, err := s.coord.AcquireRoomLock(ctx, roomID, s.opts.LockTTL)
		if err == nil {
			metrics.ObserveLockWait(time.Since(start))
			return func() {
				if err := s.coord.ReleaseRoomLock(context.WithoutCancel(ctx), roomID, token); err != nil {
					s.logger.Warn().Err(err).Int64("room_id", roomID).Msg("Failed to release room lock")
				}
			}, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			s.logger.Warn().Err(err).Int64("room_id", roomID).Msg("Room lock unavailable, relying on transaction")
			return noop, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("room %d is busy, try again: %w", roomID, domain.ErrConflict)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}

// reject counts validation failures by rule and passes err through.
func (s *ReservationService) reject(err error) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		metrics.IncRejection(verr.Rule)
		s.logger.Info().Str("rule", verr.Rule).Msg("Reservation rejected")
	}
	return err
}

func (s *ReservationService) publishEvent(eventType string, res *models.Reservation, roomCode, previous string) {
	if s.eventBus == nil {
		return
	}

	payload := events.NewReservationPayload(res, roomCode, previous)
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("reservation_id", res.ID).Msg("publish event error")
	}
}

func (s *ReservationService) enqueueSync(ctx context.Context, taskType string, res *models.Reservation) {
	if s.syncWorker == nil {
		return
	}

	if err := s.syncWorker.EnqueueReservation(ctx, taskType, res); err != nil {
		s.logger.Error().Err(err).Int64("reservation_id", res.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
