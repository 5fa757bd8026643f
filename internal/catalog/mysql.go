package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/showgrid/booking/internal/model"
)

// MySQL is a Catalog reading show inventory from the booking schema: one
// shows row per screening and one show_seats row per sellable seat, joined
// to seats for the human-readable label.  The adapter is read-only; seat
// state (held/sold) lives in the engine, not the database.
type MySQL struct {
	db *sql.DB
}

// NewMySQL returns a Catalog bound to the provided database handle.
func NewMySQL(db *sql.DB) *MySQL { return &MySQL{db: db} }

func (c *MySQL) GetShow(ctx context.Context, showID uint64) (*model.Show, error) {
	show := &model.Show{ID: showID, Seats: make(map[string]uint32)}
	err := c.db.QueryRowContext(ctx,
		`SELECT title, starts_at FROM shows WHERE id = ?`, showID,
	).Scan(&show.Title, &show.StartsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load show %d: %w", showID, err)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT CONCAT(s.row_label, s.seat_number), ss.price_cents
           FROM show_seats ss
           JOIN seats s ON s.id = ss.seat_id
          WHERE ss.show_id = ? AND s.is_active = 1`, showID)
	if err != nil {
		return nil, fmt.Errorf("load seats for show %d: %w", showID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var price uint32
		if err := rows.Scan(&label, &price); err != nil {
			return nil, err
		}
		show.Seats[label] = price
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return show, nil
}
