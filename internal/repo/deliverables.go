package repo

import (
	"context"
	"database/sql"

	"creetonbiz/internal/domain"
)

const deliverableColumns = `id,user_id,project_id,kind,title,content_json,file_path,created_at`

func scanDeliverable(row interface{ Scan(...any) error }) (domain.Deliverable, error) {
	var d domain.Deliverable
	var kind string
	var filePath sql.NullString
	err := row.Scan(&d.ID, &d.UserID, &d.ProjectID, &kind, &d.Title, &d.ContentJSON, &filePath, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	d.Kind = domain.DeliverableKind(kind)
	d.FilePath = fromNullPtr(filePath)
	return d, nil
}

func (r *Repo) CreateDeliverable(ctx context.Context, tx *sql.Tx, d domain.Deliverable) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO deliverables(`+deliverableColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		d.ID, d.UserID, d.ProjectID, string(d.Kind), d.Title, d.ContentJSON, nullablePtr(d.FilePath), d.CreatedAt)
	return err
}

func (r *Repo) GetDeliverable(ctx context.Context, userID, id string) (domain.Deliverable, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+deliverableColumns+` FROM deliverables WHERE id=? AND user_id=?`, id, userID)
	return scanDeliverable(row)
}

// LatestDeliverable returns the newest deliverable of a kind for a project.
// Re-generation appends rows; reads always see the latest one.
func (r *Repo) LatestDeliverable(ctx context.Context, userID, projectID string, kind domain.DeliverableKind) (domain.Deliverable, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+deliverableColumns+` FROM deliverables
		WHERE user_id=? AND project_id=? AND kind=? ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID, projectID, string(kind))
	return scanDeliverable(row)
}

func (r *Repo) ListDeliverables(ctx context.Context, userID, projectID string, kind domain.DeliverableKind) ([]domain.Deliverable, error) {
	query := `SELECT ` + deliverableColumns + ` FROM deliverables WHERE user_id=?`
	args := []any{userID}
	if projectID != "" {
		query += ` AND project_id=?`
		args = append(args, projectID)
	}
	if kind != "" {
		query += ` AND kind=?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	deliverables := []domain.Deliverable{}
	for rows.Next() {
		d, err := scanDeliverable(rows)
		if err != nil {
			return nil, err
		}
		deliverables = append(deliverables, d)
	}
	return deliverables, rows.Err()
}

func (r *Repo) CountProjectDeliverables(ctx context.Context, tx *sql.Tx, projectID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM deliverables WHERE project_id=?`, projectID).Scan(&n)
	return n, err
}

func (r *Repo) UpdateDeliverableContent(ctx context.Context, tx *sql.Tx, id, contentJSON string, filePath *string) error {
	res, err := tx.ExecContext(ctx, `UPDATE deliverables SET content_json=?, file_path=? WHERE id=?`,
		contentJSON, nullablePtr(filePath), id)
	if err != nil {
		return err
	}
	return oneRow(res)
}
