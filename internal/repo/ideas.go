package repo

import (
	"context"
	"database/sql"

	"creetonbiz/internal/domain"
)

const ideaColumns = `id,user_id,sector,objective,skills_json,summary,persona,name,slogan,rating,created_at`

func scanIdea(row interface{ Scan(...any) error }) (domain.Idea, error) {
	var i domain.Idea
	var skills string
	err := row.Scan(&i.ID, &i.UserID, &i.Sector, &i.Objective, &skills,
		&i.Summary, &i.Persona, &i.Name, &i.Slogan, &i.Rating, &i.CreatedAt)
	if err == sql.ErrNoRows {
		return i, ErrNotFound
	}
	if err != nil {
		return i, err
	}
	i.Skills = unmarshalSkills(skills)
	return i, nil
}

func (r *Repo) CreateIdea(ctx context.Context, tx *sql.Tx, i domain.Idea) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO ideas(`+ideaColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		i.ID, i.UserID, i.Sector, i.Objective, marshalSkills(i.Skills),
		i.Summary, i.Persona, i.Name, i.Slogan, i.Rating, i.CreatedAt)
	return err
}

func (r *Repo) GetIdea(ctx context.Context, userID, id string) (domain.Idea, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id=? AND user_id=?`, id, userID)
	return scanIdea(row)
}

func (r *Repo) ListIdeas(ctx context.Context, userID string) ([]domain.Idea, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE user_id=? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ideas := []domain.Idea{}
	for rows.Next() {
		i, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		ideas = append(ideas, i)
	}
	return ideas, rows.Err()
}

func (r *Repo) CountIdeas(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM ideas WHERE user_id=?`, userID).Scan(&n)
	return n, err
}

func (r *Repo) DeleteIdea(ctx context.Context, tx *sql.Tx, userID, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM ideas WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return err
	}
	return oneRow(res)
}
