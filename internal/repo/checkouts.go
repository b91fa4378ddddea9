package repo

import (
	"context"
	"database/sql"

	"creetonbiz/internal/domain"
)

const checkoutColumns = `id,user_id,pack,status,created_at`

func scanCheckout(row interface{ Scan(...any) error }) (domain.CheckoutSession, error) {
	var s domain.CheckoutSession
	err := row.Scan(&s.ID, &s.UserID, &s.Pack, &s.Status, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r *Repo) CreateCheckoutSession(ctx context.Context, tx *sql.Tx, s domain.CheckoutSession) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO checkout_sessions(`+checkoutColumns+`) VALUES (?,?,?,?,?)`,
		s.ID, s.UserID, s.Pack, s.Status, s.CreatedAt)
	return err
}

func (r *Repo) GetCheckoutSession(ctx context.Context, id string) (domain.CheckoutSession, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+checkoutColumns+` FROM checkout_sessions WHERE id=?`, id)
	return scanCheckout(row)
}

func (r *Repo) MarkCheckoutPaid(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `UPDATE checkout_sessions SET status='paid' WHERE id=?`, id)
	if err != nil {
		return err
	}
	return oneRow(res)
}
