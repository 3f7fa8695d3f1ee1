package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

type Department struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type DepartmentsStore interface {
	CreateDepartment(ctx context.Context, d *Department) (int64, error)
	GetDepartment(ctx context.Context, id int64) (*Department, error)
	ListDepartments(ctx context.Context, activeOnly bool) ([]Department, error)
	UpdateDepartment(ctx context.Context, d *Department) error
	DeactivateDepartment(ctx context.Context, id int64) error
}

type departmentsStore struct {
	db *sql.DB
}

func NewDepartmentsStore(db *sql.DB) DepartmentsStore {
	return &departmentsStore{db: db}
}

func (s *departmentsStore) CreateDepartment(ctx context.Context, d *Department) (int64, error) {
	d.Name = strings.TrimSpace(d.Name)
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM departments WHERE name=?`, d.Name).Scan(&exists); err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, ErrConflict
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO departments(name, description, active, created_at, updated_at)
		VALUES(?,?,?,?,?)`, d.Name, d.Description, 1, now, now)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	d.ID = id
	d.Active = true
	d.CreatedAt = now
	d.UpdatedAt = now
	return id, nil
}

func (s *departmentsStore) GetDepartment(ctx context.Context, id int64) (*Department, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, active, created_at, updated_at FROM departments WHERE id=?`, id)
	var d Department
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *departmentsStore) ListDepartments(ctx context.Context, activeOnly bool) ([]Department, error) {
	query := `SELECT id, name, description, active, created_at, updated_at FROM departments`
	if activeOnly {
		query += ` WHERE active=1`
	}
	query += ` ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Active, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *departmentsStore) UpdateDepartment(ctx context.Context, d *Department) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE departments SET name=?, description=?, updated_at=? WHERE id=? AND active=1`,
		strings.TrimSpace(d.Name), d.Description, now, d.ID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	d.UpdatedAt = now
	return nil
}

func (s *departmentsStore) DeactivateDepartment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE departments SET active=0, updated_at=? WHERE id=? AND active=1`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	return nil
}
