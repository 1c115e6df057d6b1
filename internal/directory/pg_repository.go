package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SlotDef is a durable slot definition used to hydrate the in-process
// slot store at startup.
type SlotDef struct {
	ID           uuid.UUID
	SpecialistID uuid.UUID
	Start        time.Time
	End          time.Time
}

// PgRepository reads the durable specialist catalog. It is the system of
// record the service hydrates from; runtime slot and appointment state
// lives in the in-process stores.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const specialistColumns = `
	id, full_name, specialist_type, specializations, languages,
	rating, years_experience, modes, session_fee, region, status,
	created_at, updated_at`

func scanSpecialist(row pgx.Row) (*Specialist, error) {
	var s Specialist
	var modes []string

	err := row.Scan(
		&s.ID,
		&s.FullName,
		&s.SpecialistType,
		&s.Specializations,
		&s.Languages,
		&s.Rating,
		&s.YearsExperience,
		&modes,
		&s.SessionFee,
		&s.Region,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSpecialistNotFound
		}
		return nil, err
	}

	s.Modes = make([]ConsultationMode, 0, len(modes))
	for _, m := range modes {
		s.Modes = append(s.Modes, ConsultationMode(m))
	}
	return &s, nil
}

func (r *PgRepository) Snapshot(ctx context.Context) ([]Specialist, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+specialistColumns+`
		FROM specialists
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query specialists: %w", err)
	}
	defer rows.Close()

	var out []Specialist
	for rows.Next() {
		s, err := scanSpecialist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan specialist: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate specialists: %w", err)
	}
	return out, nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Specialist, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+specialistColumns+`
		FROM specialists
		WHERE id = $1`, id)
	return scanSpecialist(row)
}

// LoadSlots returns all slot definitions starting after the given time.
func (r *PgRepository) LoadSlots(ctx context.Context, from time.Time) ([]SlotDef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, specialist_id, start_time, end_time
		FROM specialist_slots
		WHERE start_time >= $1
		ORDER BY start_time`, from)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	var out []SlotDef
	for rows.Next() {
		var d SlotDef
		if err := rows.Scan(&d.ID, &d.SpecialistID, &d.Start, &d.End); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}
	return out, nil
}
