package repo

import (
	"context"
	"database/sql"

	"creetonbiz/internal/domain"
)

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	var customerID, subscriptionID, sessionID sql.NullString
	var isAdmin int
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Plan, &u.StartnowCredits, &isAdmin,
		&customerID, &subscriptionID, &sessionID, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.IsAdmin = isAdmin != 0
	u.StripeCustomerID = fromNull(customerID)
	u.StripeSubscriptionID = fromNull(subscriptionID)
	u.LastCheckoutSessionID = fromNull(sessionID)
	return u, nil
}

const userColumns = `id,email,password_hash,plan,startnow_credits,is_admin,stripe_customer_id,stripe_subscription_id,last_checkout_session_id,created_at`

func (r *Repo) CreateUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	isAdmin := 0
	if u.IsAdmin {
		isAdmin = 1
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Email, u.PasswordHash, u.Plan, u.StartnowCredits, isAdmin,
		nullable(u.StripeCustomerID), nullable(u.StripeSubscriptionID), nullable(u.LastCheckoutSessionID), u.CreatedAt)
	return err
}

func (r *Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return scanUser(row)
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, email)
	return scanUser(row)
}

func (r *Repo) UpdateUserPassword(ctx context.Context, id, hash string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET password_hash=? WHERE id=?`, hash, id)
	if err != nil {
		return err
	}
	return oneRow(res)
}

// UpdateUserBilling replaces the plan, credits and Stripe identifiers in one
// statement so entitlement grants stay atomic.
func (r *Repo) UpdateUserBilling(ctx context.Context, tx *sql.Tx, u domain.User) error {
	res, err := tx.ExecContext(ctx, `UPDATE users SET plan=?, startnow_credits=?, stripe_customer_id=?, stripe_subscription_id=?, last_checkout_session_id=? WHERE id=?`,
		u.Plan, u.StartnowCredits, nullable(u.StripeCustomerID), nullable(u.StripeSubscriptionID), nullable(u.LastCheckoutSessionID), u.ID)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (r *Repo) ConsumeStartnowCredit(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `UPDATE users SET startnow_credits=startnow_credits-1 WHERE id=? AND startnow_credits>0`, id)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (r *Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserAccess sets the entitlement fields an operator may change.
func (r *Repo) UpdateUserAccess(ctx context.Context, tx *sql.Tx, u domain.User) error {
	isAdmin := 0
	if u.IsAdmin {
		isAdmin = 1
	}
	res, err := tx.ExecContext(ctx, `UPDATE users SET plan=?, startnow_credits=?, is_admin=? WHERE id=?`,
		u.Plan, u.StartnowCredits, isAdmin, u.ID)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (r *Repo) DeleteUser(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
