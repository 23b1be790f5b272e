package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sathi-care/booking-service/internal/localtime"
	"github.com/sathi-care/booking-service/internal/notify"
)

// ValidationError reports malformed input. The message is safe to show
// to the caller verbatim.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Engine owns every slot state transition: open -> held -> booked, with
// held -> open on expiry and open/held -> cancelled. It never takes a
// lock; contention is resolved entirely by the store's conditional
// updates. Expired holds are released lazily, before each read or write
// that touches the slot or the provider's slot set — there is no
// background sweeper in the serving path.
type Engine struct {
	repo       Repository
	pub        notify.Publisher
	log        *zap.Logger
	zone       *localtime.Zone
	holdTTL    time.Duration
	listBuffer time.Duration
	now        func() time.Time
}

type EngineConfig struct {
	HoldTTL    time.Duration // how long a hold reserves a slot
	ListBuffer time.Duration // how far before "now" undated listings reach back
}

func NewEngine(repo Repository, pub notify.Publisher, zone *localtime.Zone, cfg EngineConfig, log *zap.Logger) *Engine {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 5 * time.Minute
	}
	if cfg.ListBuffer < 0 {
		cfg.ListBuffer = 0
	}
	return &Engine{
		repo:       repo,
		pub:        pub,
		log:        log,
		zone:       zone,
		holdTTL:    cfg.HoldTTL,
		listBuffer: cfg.ListBuffer,
		now:        time.Now,
	}
}

// WithClock overrides the engine's time source. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// CreateSlots validates the whole batch first and creates nothing if any
// spec is malformed. Valid batches are inserted with duplicate
// (provider, start) entries silently skipped: the store's uniqueness
// constraint makes duplicate insertion a partial failure, not a total
// one. Returns the slots actually created.
func (e *Engine) CreateSlots(ctx context.Context, providerID uuid.UUID, specs []SlotSpec) ([]Slot, error) {
	if len(specs) == 0 {
		return nil, validationf("slots array required")
	}

	now := e.now()
	slots := make([]Slot, 0, len(specs))
	for i, spec := range specs {
		if spec.StartAt.IsZero() || spec.EndAt.IsZero() {
			return nil, validationf("slot %d: startAt and endAt are required", i)
		}
		if !spec.EndAt.After(spec.StartAt) {
			return nil, validationf("slot %d: endAt must be after startAt", i)
		}
		if spec.Fee < 0 {
			return nil, validationf("slot %d: fee must not be negative", i)
		}

		currency := spec.Currency
		if currency == "" {
			currency = "NPR"
		}

		slots = append(slots, Slot{
			ID:           uuid.New(),
			ProviderID:   providerID,
			StartAt:      spec.StartAt.UTC(),
			EndAt:        spec.EndAt.UTC(),
			DurationMins: int(spec.EndAt.Sub(spec.StartAt) / time.Minute),
			Status:       SlotOpen,
			Notes:        spec.Notes,
			Fee:          spec.Fee,
			Currency:     currency,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	created, err := e.repo.InsertSlots(ctx, slots)
	if err != nil {
		return nil, fmt.Errorf("create slots: %w", err)
	}
	return created, nil
}

// ListProviderSlots returns the provider's full inventory, all states,
// ordered by start. Expired holds in the provider's set are released
// first so the listing reflects effective state.
func (e *Engine) ListProviderSlots(ctx context.Context, providerID uuid.UUID) ([]Slot, error) {
	if _, err := e.repo.ReleaseExpiredHolds(ctx, &providerID, e.now()); err != nil {
		return nil, err
	}
	return e.repo.ListSlotsByProvider(ctx, providerID)
}

// ListAvailable returns a provider's bookable slots as seen by
// requestingUser: open slots plus the user's own live hold. With a day
// key the window is that local calendar day; otherwise everything from
// now minus the listing buffer onward.
func (e *Engine) ListAvailable(ctx context.Context, providerID uuid.UUID, dayKey string, requestingUser *uuid.UUID) ([]Slot, error) {
	now := e.now()

	q := AvailabilityQuery{
		ProviderID: providerID,
		From:       now.Add(-e.listBuffer),
		ForUser:    requestingUser,
		Now:        now,
	}
	if dayKey != "" {
		from, to, err := e.zone.DayRange(dayKey)
		if err != nil {
			return nil, validationf("invalid date format, use YYYY-MM-DD")
		}
		q.From, q.To = from, to
	}

	if _, err := e.repo.ReleaseExpiredHolds(ctx, &providerID, now); err != nil {
		return nil, err
	}
	return e.repo.ListAvailableSlots(ctx, q)
}

// Hold reserves an open, future-starting slot for userID until
// now + hold TTL. Exactly one of any number of concurrent callers wins;
// everyone else gets ErrSlotUnavailable with no further detail.
func (e *Engine) Hold(ctx context.Context, slotID, userID uuid.UUID) (*Slot, error) {
	now := e.now()

	// Self-heal first so a just-expired hold does not block a new holder.
	if err := e.repo.ReleaseExpiredHold(ctx, slotID, now); err != nil {
		return nil, err
	}

	slot, err := e.repo.HoldSlot(ctx, slotID, userID, now, now.Add(e.holdTTL))
	if err != nil {
		return nil, err
	}

	e.publish(ctx, notify.TopicSlotUpdate,
		[]uuid.UUID{slot.ProviderID, userID},
		notify.SlotUpdate{
			SlotID:        slot.ID,
			Status:        string(slot.Status),
			HeldBy:        slot.HeldBy,
			HoldExpiresAt: slot.HoldExpiresAt,
		})

	return slot, nil
}

// Confirm converts userID's live hold on the slot into a booked slot and
// its appointment. The guard (held, owned, unexpired) and both writes run
// in one store transaction; a hold that expired while the confirm was in
// flight loses, it is never silently booked.
func (e *Engine) Confirm(ctx context.Context, slotID, userID uuid.UUID, userNotes string) (*Appointment, *Slot, error) {
	now := e.now()

	if err := e.repo.ReleaseExpiredHold(ctx, slotID, now); err != nil {
		return nil, nil, err
	}

	slot, appt, err := e.repo.BookSlot(ctx, slotID, userID, now, userNotes)
	if err != nil {
		return nil, nil, err
	}

	recipients := []uuid.UUID{appt.ProviderID, appt.UserID}
	e.publish(ctx, notify.TopicAppointmentNew, recipients, notify.AppointmentNew{
		AppointmentID: appt.ID,
		SlotID:        appt.SlotID,
		UserID:        appt.UserID,
		ExpertID:      appt.ProviderID,
		StartAt:       appt.StartAt,
		EndAt:         appt.EndAt,
		Status:        string(appt.Status),
	})
	e.publish(ctx, notify.TopicSlotUpdate, recipients, notify.SlotUpdate{
		SlotID: slot.ID,
		Status: string(slot.Status),
	})

	return appt, slot, nil
}

// ReleaseExpiredHolds sweeps every expired hold (optionally one
// provider's) back to open. Safe to call concurrently and repeatedly.
func (e *Engine) ReleaseExpiredHolds(ctx context.Context, providerID *uuid.UUID) (int64, error) {
	return e.repo.ReleaseExpiredHolds(ctx, providerID, e.now())
}

// Cancel moves a provider's open or held slot to the terminal cancelled
// state. Booked slots cannot be cancelled this way.
func (e *Engine) Cancel(ctx context.Context, slotID, providerID uuid.UUID) (*Slot, error) {
	before, err := e.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, ErrSlotUnavailable
	}
	holder := before.HeldBy

	slot, err := e.repo.CancelSlot(ctx, slotID, providerID)
	if err != nil {
		return nil, err
	}

	recipients := []uuid.UUID{slot.ProviderID}
	if holder != nil {
		recipients = append(recipients, *holder)
	}
	e.publish(ctx, notify.TopicSlotUpdate, recipients, notify.SlotUpdate{
		SlotID: slot.ID,
		Status: string(slot.Status),
	})

	return slot, nil
}

func (e *Engine) ListUserAppointments(ctx context.Context, userID uuid.UUID) ([]Appointment, error) {
	return e.repo.ListAppointmentsByUser(ctx, userID)
}

func (e *Engine) ListProviderAppointments(ctx context.Context, providerID uuid.UUID) ([]Appointment, error) {
	return e.repo.ListAppointmentsByProvider(ctx, providerID)
}

// publish is fire and forget: notification loss never fails the state
// transition that already happened.
func (e *Engine) publish(ctx context.Context, topic string, recipients []uuid.UUID, payload any) {
	if err := e.pub.Publish(ctx, topic, recipients, payload); err != nil {
		e.log.Warn("event publish failed",
			zap.String("topic", topic),
			zap.Error(err),
		)
	}
}
