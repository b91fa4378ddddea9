package repo

import (
	"context"
	"database/sql"

	"creetonbiz/internal/domain"
)

const projectColumns = `id,user_id,title,sector,objective,skills_json,idea_id,created_at`

func scanProject(row interface{ Scan(...any) error }) (domain.Project, error) {
	var p domain.Project
	var skills string
	var ideaID sql.NullString
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Sector, &p.Objective, &skills, &ideaID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Skills = unmarshalSkills(skills)
	p.IdeaID = fromNullPtr(ideaID)
	return p, nil
}

func (r *Repo) CreateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(`+projectColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.UserID, p.Title, p.Sector, p.Objective, marshalSkills(p.Skills), nullablePtr(p.IdeaID), p.CreatedAt)
	return err
}

func (r *Repo) GetProject(ctx context.Context, userID, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=? AND user_id=?`, id, userID)
	return scanProject(row)
}

func (r *Repo) GetProjectByIdea(ctx context.Context, userID, ideaID string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE idea_id=? AND user_id=?`, ideaID, userID)
	return scanProject(row)
}

func (r *Repo) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE user_id=? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	projects := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *Repo) RenameProject(ctx context.Context, tx *sql.Tx, userID, id, title string) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET title=? WHERE id=? AND user_id=?`, title, id, userID)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (r *Repo) DeleteProject(ctx context.Context, tx *sql.Tx, userID, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return err
	}
	return oneRow(res)
}
