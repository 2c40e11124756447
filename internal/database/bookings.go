package database

import (
	"context"
	"database/sql"
	"fmt"

	"innkeeper/internal/models"
)

func (db *DB) CountBookedRooms(ctx context.Context, date string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE date = ?`, date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count booked rooms: %w", err)
	}
	return count, nil
}

// Reserve finds a free room for date and inserts the booking as one
// transaction. The seam search and the insert share the transaction, so no
// two sessions can be handed the same room for a date; the UNIQUE(date, room)
// constraint backstops the invariant regardless. Returns the assigned room
// or ErrNoRooms.
func (db *DB) Reserve(ctx context.Context, user, date, dateKey, code string, capacity int) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `SELECT room FROM bookings WHERE date = ?`, date)
	if err != nil {
		return 0, fmt.Errorf("failed to query occupied rooms: %w", err)
	}
	occupied := make([]int, 0, capacity)
	for rows.Next() {
		var room int
		if err := rows.Scan(&room); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan room: %w", err)
		}
		occupied = append(occupied, room)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("failed to iterate rooms: %w", err)
	}
	rows.Close()

	room, ok := nextRoom(occupied, capacity)
	if !ok {
		return 0, ErrNoRooms
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bookings (user, date, date_key, room, code) VALUES (?, ?, ?, ?, ?)`,
		user, date, dateKey, room, code,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reservation: %w", err)
	}
	return room, nil
}

// ListForUser returns the user's bookings ordered by date then room.
func (db *DB) ListForUser(ctx context.Context, user string) ([]*models.Booking, error) {
	query := `SELECT id, user, date, date_key, room, code, created_at
              FROM bookings WHERE user = ? ORDER BY date_key, room`
	rows, err := db.QueryContext(ctx, query, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

// AllBookings returns every booking ordered by date then room.
func (db *DB) AllBookings(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT id, user, date, date_key, room, code, created_at
              FROM bookings ORDER BY date_key, room`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list all bookings: %w", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

func scanBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		b := &models.Booking{}
		err := rows.Scan(&b.ID, &b.User, &b.Date, &b.DateKey, &b.Room, &b.Code, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

// Release deletes the booking matching the exact tuple. A single conditional
// DELETE keeps the operation idempotent: a second release of the same tuple
// finds no row and reports ErrNotFound.
func (db *DB) Release(ctx context.Context, user, date string, room int, code string) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM bookings WHERE user = ? AND date = ? AND room = ? AND code = ?`,
		user, date, room, code,
	)
	if err != nil {
		return fmt.Errorf("failed to release booking: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
