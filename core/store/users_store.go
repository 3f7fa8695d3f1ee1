package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	DepartmentID *int64    `json:"department_id,omitempty"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UserFilter struct {
	Role         string
	DepartmentID *int64
	ActiveOnly   bool
	Search       string
	Limit        int
	Offset       int
}

type UsersStore interface {
	CreateUser(ctx context.Context, u *User) (int64, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]User, int64, error)
	UpdateUser(ctx context.Context, u *User) error
	SetPassword(ctx context.Context, id int64, hash, salt string) error
	DeactivateUser(ctx context.Context, id int64) error
}

type usersStore struct {
	db *sql.DB
}

func NewUsersStore(db *sql.DB) UsersStore {
	return &usersStore{db: db}
}

const userColumns = `id, username, email, full_name, role, department_id, password_hash, salt, active, created_at, updated_at`

func (s *usersStore) CreateUser(ctx context.Context, u *User) (int64, error) {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE username=? OR email=?`, u.Username, u.Email).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, ErrConflict
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users(username, email, full_name, role, department_id, password_hash, salt, active, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?)`,
		u.Username, u.Email, u.FullName, u.Role, nullableID(u.DepartmentID), u.PasswordHash, u.Salt, 1, now, now)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	u.ID = id
	u.Active = true
	u.CreatedAt = now
	u.UpdatedAt = now
	return id, nil
}

func (s *usersStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return scanUser(row)
}

func (s *usersStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username=?`,
		strings.ToLower(strings.TrimSpace(username)))
	return scanUser(row)
}

func (s *usersStore) ListUsers(ctx context.Context, filter UserFilter) ([]User, int64, error) {
	var clauses []string
	var args []any
	if filter.ActiveOnly {
		clauses = append(clauses, "active=1")
	}
	if filter.Role != "" {
		clauses = append(clauses, "role=?")
		args = append(args, filter.Role)
	}
	if filter.DepartmentID != nil {
		clauses = append(clauses, "department_id=?")
		args = append(args, *filter.DepartmentID)
	}
	if filter.Search != "" {
		clauses = append(clauses, "(username LIKE ? OR full_name LIKE ? OR email LIKE ?)")
		q := "%" + filter.Search + "%"
		args = append(args, q, q, q)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY username`
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

func (s *usersStore) UpdateUser(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET email=?, full_name=?, role=?, department_id=?, updated_at=?
		WHERE id=? AND active=1`,
		strings.ToLower(strings.TrimSpace(u.Email)), u.FullName, u.Role, nullableID(u.DepartmentID), now, u.ID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	u.UpdatedAt = now
	return nil
}

func (s *usersStore) SetPassword(ctx context.Context, id int64, hash, salt string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash=?, salt=?, updated_at=? WHERE id=?`,
		hash, salt, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *usersStore) DeactivateUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET active=0, updated_at=? WHERE id=? AND active=1`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserFrom(sc rowScanner) (*User, error) {
	var u User
	var dept sql.NullInt64
	err := sc.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role, &dept,
		&u.PasswordHash, &u.Salt, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.DepartmentID = scanNullID(dept)
	return &u, nil
}

func scanUser(row *sql.Row) (*User, error) { return scanUserFrom(row) }

func scanUserRows(rows *sql.Rows) (*User, error) { return scanUserFrom(rows) }
