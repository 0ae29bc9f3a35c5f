// Package expiry releases inventory held by bookings whose payment never
// arrived and keeps the room status projection in step with confirmed stays.
package expiry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"zivara/internal/interval"
	inventoryrepo "zivara/internal/inventory/repository"
	"zivara/internal/reservations/repository"
	"zivara/internal/reservations/service"
	"zivara/pkg/config"
	mongotx "zivara/pkg/db/mongo"
	apperrors "zivara/pkg/errors"
	"zivara/pkg/model"

	"github.com/go-co-op/gocron/v2"
)

const ExpiredReason = "expired"

type Dependencies struct {
	Tx           mongotx.TransactionManager
	Reservations service.ReservationService
	Bookings     repository.BookingRepository
	Rooms        inventoryrepo.RoomRepository
}

// Result summarizes one sweep.
type Result struct {
	Expired      int
	Skipped      int
	RoomsUpdated int
}

type Sweeper struct {
	Dependencies
	cfg *config.Config
	now func() time.Time

	mu        sync.Mutex
	scheduler gocron.Scheduler
	cancel    context.CancelFunc
}

func NewSweeper(deps Dependencies, cfg *config.Config) *Sweeper {
	return &Sweeper{
		Dependencies: deps,
		cfg:          cfg,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules Sweep every ExpirySweepInterval. A run that is still going
// when the next one is due pushes the next one back instead of overlapping.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		return nil
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	job, err := sched.NewJob(
		gocron.DurationJob(s.cfg.ExpirySweepInterval),
		gocron.NewTask(func() {
			runCtx, done := context.WithTimeout(ctx, s.cfg.RequestTimeout)
			defer done()
			if _, err := s.Sweep(runCtx); err != nil {
				s.cfg.Log.Error("Expiry sweep failed", "error", err)
			}
		}),
		gocron.WithName("booking-expiry"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		_ = sched.Shutdown()
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}

	sched.Start()
	s.scheduler = sched
	s.cancel = cancel
	s.cfg.Log.Info("Expiry sweeper started",
		"job_id", job.ID().String(),
		"interval", s.cfg.ExpirySweepInterval.String(),
		"ttl", s.cfg.PendingBookingTTL.String(),
	)
	return nil
}

func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		return nil
	}
	s.cancel()
	err := s.scheduler.Shutdown()
	s.scheduler = nil
	if err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.cfg.Log.Info("Expiry sweeper stopped")
	return nil
}

// Sweep expires stale pending bookings, then refreshes room statuses.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result

	expired, skipped, err := s.Expire(ctx)
	res.Expired, res.Skipped = expired, skipped
	if err != nil {
		return res, err
	}

	updated, err := s.RefreshRoomStatus(ctx)
	res.RoomsUpdated = updated
	if err != nil {
		return res, err
	}

	if res.Expired > 0 || res.RoomsUpdated > 0 {
		s.cfg.Log.Info("Expiry sweep finished", "expired", res.Expired, "skipped", res.Skipped, "rooms_updated", res.RoomsUpdated)
	}
	return res, nil
}

// Expire cancels pending bookings older than PendingBookingTTL in batches
// of ExpiryBatchSize. Bookings that changed state in the meantime are skipped.
func (s *Sweeper) Expire(ctx context.Context) (expired, skipped int, err error) {
	cutoff := s.now().Add(-s.cfg.PendingBookingTTL)
	seen := make(map[string]bool)

	for {
		stale, err := s.Bookings.FindStalePending(ctx, cutoff, s.cfg.ExpiryBatchSize)
		if err != nil {
			return expired, skipped, apperrors.Storage("Failed to find stale bookings", err)
		}

		progressed := false
		for _, b := range stale {
			if seen[b.ID] {
				continue
			}
			seen[b.ID] = true
			progressed = true

			if _, err := s.Reservations.Cancel(ctx, b.ID, ExpiredReason); err != nil {
				if apperrors.HasCode(err, apperrors.CodeInvalidBookingState) || apperrors.HasCode(err, apperrors.CodeNotFound) {
					skipped++
					continue
				}
				return expired, skipped, err
			}
			expired++
		}

		if len(stale) < s.cfg.ExpiryBatchSize || !progressed {
			return expired, skipped, nil
		}
	}
}

// RefreshRoomStatus marks a room occupied while a confirmed, paid stay covers
// today and available otherwise. Rooms under maintenance are left alone.
func (s *Sweeper) RefreshRoomStatus(ctx context.Context) (int, error) {
	today := s.now()
	updated := 0

	err := s.Tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		updated = 0
		rooms, err := s.Rooms.FindAll(txCtx)
		if err != nil {
			return err
		}
		if len(rooms) == 0 {
			return nil
		}

		ids := make([]string, 0, len(rooms))
		for _, r := range rooms {
			ids = append(ids, r.ID)
		}
		active, err := s.Bookings.FindActiveByRooms(txCtx, ids)
		if err != nil {
			return err
		}

		var toOccupied, toAvailable []string
		for _, room := range rooms {
			if room.Status == model.RoomMaintenance {
				continue
			}
			want := model.RoomAvailable
			if inHouse(active[room.ID], today) {
				want = model.RoomOccupied
			}
			if room.Status == want {
				continue
			}
			if want == model.RoomOccupied {
				toOccupied = append(toOccupied, room.ID)
			} else {
				toAvailable = append(toAvailable, room.ID)
			}
		}

		if len(toOccupied) > 0 {
			if err := s.Rooms.UpdateStatus(txCtx, toOccupied, model.RoomOccupied); err != nil {
				return err
			}
		}
		if len(toAvailable) > 0 {
			if err := s.Rooms.UpdateStatus(txCtx, toAvailable, model.RoomAvailable); err != nil {
				return err
			}
		}
		updated = len(toOccupied) + len(toAvailable)
		return nil
	})
	if err != nil {
		return 0, apperrors.Storage("Failed to refresh room status", err)
	}
	return updated, nil
}

func inHouse(bookings []*model.Booking, now time.Time) bool {
	day := interval.Date(now)
	for _, b := range bookings {
		stay := interval.Interval{Start: b.CheckIn, End: b.CheckOut}
		if b.State() == model.StateConfirmed && stay.Contains(day) {
			return true
		}
	}
	return false
}
