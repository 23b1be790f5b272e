package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const slotColumns = `id, provider_id, start_at, end_at, duration_mins, status,
	held_by, hold_expires_at, booked_by, appointment_id,
	notes, fee, currency, created_at, updated_at`

const appointmentColumns = `id, slot_id, user_id, provider_id, start_at, end_at,
	duration_mins, status, payment_provider, payment_status, payment_amount,
	payment_currency, payment_reference, user_notes, provider_notes,
	created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.ProviderID,
		&s.StartAt,
		&s.EndAt,
		&s.DurationMins,
		&s.Status,
		&s.HeldBy,
		&s.HoldExpiresAt,
		&s.BookedBy,
		&s.AppointmentID,
		&s.Notes,
		&s.Fee,
		&s.Currency,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.UserID,
		&a.ProviderID,
		&a.StartAt,
		&a.EndAt,
		&a.DurationMins,
		&a.Status,
		&a.Payment.Provider,
		&a.Payment.Status,
		&a.Payment.Amount,
		&a.Payment.Currency,
		&a.Payment.Reference,
		&a.UserNotes,
		&a.ProviderNotes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Interface methods

func (r *PgRepository) InsertSlots(ctx context.Context, slots []Slot) ([]Slot, error) {
	// Inserts ride the partial unique index on (provider_id, start_at)
	// over non-cancelled rows: a duplicate start is skipped, not an
	// error, so concurrent bulk creates degrade to partial success.
	var created []Slot
	for _, s := range slots {
		row := r.pool.QueryRow(ctx, `
			INSERT INTO slots (id, provider_id, start_at, end_at, duration_mins, status,
				notes, fee, currency, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'open', $6, $7, $8, now(), now())
			ON CONFLICT (provider_id, start_at) WHERE status <> 'cancelled' DO NOTHING
			RETURNING `+slotColumns+`
		`, s.ID, s.ProviderID, s.StartAt, s.EndAt, s.DurationMins, s.Notes, s.Fee, s.Currency)

		inserted, err := scanSlot(row)
		if err != nil {
			if errors.Is(err, ErrSlotNotFound) {
				continue // duplicate start, skipped
			}
			return created, fmt.Errorf("insert slot: %w", err)
		}
		created = append(created, *inserted)
	}

	return created, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListSlotsByProvider(ctx context.Context, providerID uuid.UUID) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE provider_id = $1
		ORDER BY start_at ASC
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list provider slots: %w", err)
	}
	return collectSlots(rows)
}

func (r *PgRepository) ListAvailableSlots(ctx context.Context, q AvailabilityQuery) ([]Slot, error) {
	var forUser *uuid.UUID
	if q.ForUser != nil {
		forUser = q.ForUser
	}

	var to *time.Time
	if !q.To.IsZero() {
		to = &q.To
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE provider_id = $1
		  AND start_at >= $2
		  AND ($3::timestamptz IS NULL OR start_at < $3)
		  AND (
			status = 'open'
			OR (status = 'held' AND held_by = $4 AND hold_expires_at > $5)
		  )
		ORDER BY start_at ASC
	`, q.ProviderID, q.From, to, forUser, q.Now)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return collectSlots(rows)
}

func (r *PgRepository) ReleaseExpiredHolds(ctx context.Context, providerID *uuid.UUID, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET status = 'open',
		    held_by = NULL,
		    hold_expires_at = NULL,
		    updated_at = now()
		WHERE status = 'held'
		  AND hold_expires_at <= $1
		  AND ($2::uuid IS NULL OR provider_id = $2)
	`, now, providerID)
	if err != nil {
		return 0, fmt.Errorf("release expired holds: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ReleaseExpiredHold(ctx context.Context, slotID uuid.UUID, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET status = 'open',
		    held_by = NULL,
		    hold_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'held'
		  AND hold_expires_at <= $2
	`, slotID, now)
	if err != nil {
		return fmt.Errorf("release expired hold: %w", err)
	}
	return nil
}

func (r *PgRepository) HoldSlot(ctx context.Context, slotID, userID uuid.UUID, now, expiresAt time.Time) (*Slot, error) {
	// Single conditional update: of N racing callers exactly one matches
	// the open row, the rest see zero rows and lose gracefully.
	row := r.pool.QueryRow(ctx, `
		UPDATE slots
		SET status = 'held',
		    held_by = $2,
		    hold_expires_at = $3,
		    booked_by = NULL,
		    appointment_id = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'open'
		  AND start_at > $4
		RETURNING `+slotColumns+`
	`, slotID, userID, expiresAt, now)

	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("hold slot: %w", err)
	}
	return slot, nil
}

func (r *PgRepository) BookSlot(ctx context.Context, slotID, userID uuid.UUID, now time.Time, userNotes string) (*Slot, *Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin book tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Guard: a live hold owned by this user. Row-locked so the guard and
	// the transition below see the same state.
	row := tx.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
		  AND status = 'held'
		  AND held_by = $2
		  AND hold_expires_at > $3
		FOR UPDATE
	`, slotID, userID, now)

	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, nil, ErrHoldExpiredOrNotOwned
		}
		return nil, nil, fmt.Errorf("load held slot: %w", err)
	}

	appt := NewAppointmentFromSlot(slot, userID, userNotes, now)

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (id, slot_id, user_id, provider_id, start_at, end_at,
			duration_mins, status, payment_provider, payment_status, payment_amount,
			payment_currency, payment_reference, user_notes, provider_notes,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
	`, appt.ID, appt.SlotID, appt.UserID, appt.ProviderID, appt.StartAt, appt.EndAt,
		appt.DurationMins, appt.Status, appt.Payment.Provider, appt.Payment.Status,
		appt.Payment.Amount, appt.Payment.Currency, appt.Payment.Reference,
		appt.UserNotes, appt.ProviderNotes)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, ErrDuplicateBooking
		}
		return nil, nil, fmt.Errorf("insert appointment: %w", err)
	}

	// Still conditional on the hold so a partial re-apply is a no-op.
	row = tx.QueryRow(ctx, `
		UPDATE slots
		SET status = 'booked',
		    booked_by = $2,
		    appointment_id = $3,
		    held_by = NULL,
		    hold_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'held'
		  AND held_by = $2
		RETURNING `+slotColumns+`
	`, slotID, userID, appt.ID)

	booked, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, nil, ErrHoldExpiredOrNotOwned
		}
		return nil, nil, fmt.Errorf("mark slot booked: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit book tx: %w", err)
	}

	return booked, appt, nil
}

func (r *PgRepository) CancelSlot(ctx context.Context, slotID, providerID uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE slots
		SET status = 'cancelled',
		    held_by = NULL,
		    hold_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND provider_id = $2
		  AND status IN ('open', 'held')
		RETURNING `+slotColumns+`
	`, slotID, providerID)

	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("cancel slot: %w", err)
	}
	return slot, nil
}

func (r *PgRepository) ListAppointmentsByUser(ctx context.Context, userID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE user_id = $1
		ORDER BY start_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByProvider(ctx context.Context, providerID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		ORDER BY start_at ASC
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list provider appointments: %w", err)
	}
	return collectAppointments(rows)
}
