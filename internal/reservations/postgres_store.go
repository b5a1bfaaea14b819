package reservations

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool used by PostgresStore.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads the clientes and reservas tables.
type PostgresStore struct {
	pool PgxPool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("reservations: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) FindClientByPhone(ctx context.Context, phone string) (Client, bool, error) {
	query := `
		SELECT id, phone, first_name, last_name, citas_canceladas
		FROM clientes
		WHERE phone = $1
		LIMIT 1
	`
	var c Client
	err := s.pool.QueryRow(ctx, query, phone).Scan(&c.ID, &c.Phone, &c.FirstName, &c.LastName, &c.CancelledCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, false, nil
		}
		return Client{}, false, fmt.Errorf("reservations: select client by phone: %w", err)
	}
	return c, true, nil
}

func (s *PostgresStore) ListFromDate(ctx context.Context, clientID, fromDate string) ([]Reservation, error) {
	query := `
		SELECT id, client_id, date, start_time, status, local_id
		FROM reservas
		WHERE client_id = $1 AND date >= $2
		ORDER BY date, start_time
	`
	rows, err := s.pool.Query(ctx, query, clientID, fromDate)
	if err != nil {
		return nil, fmt.Errorf("reservations: select reservations: %w", err)
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var r Reservation
		var status string
		if err := rows.Scan(&r.ID, &r.ClientID, &r.Date, &r.StartTime, &status, &r.LocalID); err != nil {
			return nil, fmt.Errorf("reservations: scan reservation: %w", err)
		}
		r.Status = Status(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reservations: iterate reservations: %w", err)
	}
	return out, nil
}

const updateStatusSQL = `UPDATE reservas SET status = $2, updated_at = now() WHERE id = $1`

func (s *PostgresStore) UpdateStatus(ctx context.Context, reservationID string, status Status) error {
	ct, err := s.pool.Exec(ctx, updateStatusSQL, reservationID, string(status))
	if err != nil {
		return fmt.Errorf("reservations: update status %s: %w", reservationID, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrReservationNotFound
	}
	return nil
}

func (s *PostgresStore) CancelReservation(ctx context.Context, reservationID, clientID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reservations: begin cancel tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, updateStatusSQL, reservationID, string(StatusCancelled))
	if err != nil {
		return fmt.Errorf("reservations: cancel %s: %w", reservationID, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrReservationNotFound
	}

	ct, err = tx.Exec(ctx, `UPDATE clientes SET citas_canceladas = citas_canceladas + 1 WHERE id = $1`, clientID)
	if err != nil {
		return fmt.Errorf("reservations: increment cancellations for %s: %w", clientID, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrClientNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reservations: commit cancel tx: %w", err)
	}
	return nil
}
