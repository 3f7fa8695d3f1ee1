package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

type AssetType struct {
	ID           int64     `json:"id"`
	DepartmentID int64     `json:"department_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Asset struct {
	ID           int64     `json:"id"`
	AssetTypeID  int64     `json:"asset_type_id"`
	DepartmentID int64     `json:"department_id"`
	Tag          string    `json:"tag"`
	Name         string    `json:"name"`
	Location     string    `json:"location,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type AssetFilter struct {
	DepartmentID *int64
	AssetTypeID  *int64
	Status       string
	Search       string
	Limit        int
	Offset       int
}

type AssetsStore interface {
	CreateAssetType(ctx context.Context, at *AssetType) (int64, error)
	ListAssetTypes(ctx context.Context, departmentID *int64) ([]AssetType, error)
	GetAssetType(ctx context.Context, id int64) (*AssetType, error)

	CreateAsset(ctx context.Context, a *Asset) (int64, error)
	GetAsset(ctx context.Context, id int64) (*Asset, error)
	ListAssets(ctx context.Context, filter AssetFilter) ([]Asset, int64, error)
	UpdateAsset(ctx context.Context, a *Asset) error
	RetireAsset(ctx context.Context, id int64) error
}

type assetsStore struct {
	db *sql.DB
}

func NewAssetsStore(db *sql.DB) AssetsStore {
	return &assetsStore{db: db}
}

func (s *assetsStore) CreateAssetType(ctx context.Context, at *AssetType) (int64, error) {
	at.Name = strings.TrimSpace(at.Name)
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM asset_types WHERE department_id=? AND name=?`,
		at.DepartmentID, at.Name).Scan(&exists); err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, ErrConflict
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO asset_types(department_id, name, description, created_at)
		VALUES(?,?,?,?)`, at.DepartmentID, at.Name, at.Description, now)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	at.ID = id
	at.CreatedAt = now
	return id, nil
}

func (s *assetsStore) ListAssetTypes(ctx context.Context, departmentID *int64) ([]AssetType, error) {
	query := `SELECT id, department_id, name, description, created_at FROM asset_types`
	var args []any
	if departmentID != nil {
		query += ` WHERE department_id=?`
		args = append(args, *departmentID)
	}
	query += ` ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AssetType
	for rows.Next() {
		var at AssetType
		if err := rows.Scan(&at.ID, &at.DepartmentID, &at.Name, &at.Description, &at.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, at)
	}
	return out, rows.Err()
}

func (s *assetsStore) GetAssetType(ctx context.Context, id int64) (*AssetType, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, department_id, name, description, created_at FROM asset_types WHERE id=?`, id)
	var at AssetType
	err := row.Scan(&at.ID, &at.DepartmentID, &at.Name, &at.Description, &at.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}

const assetColumns = `id, asset_type_id, department_id, tag, name, location, status, created_at, updated_at`

func (s *assetsStore) CreateAsset(ctx context.Context, a *Asset) (int64, error) {
	a.Tag = strings.ToUpper(strings.TrimSpace(a.Tag))
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM assets WHERE tag=?`, a.Tag).Scan(&exists); err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, ErrConflict
	}
	if strings.TrimSpace(a.Status) == "" {
		a.Status = "active"
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO assets(asset_type_id, department_id, tag, name, location, status, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		a.AssetTypeID, a.DepartmentID, a.Tag, a.Name, a.Location, a.Status, now, now)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now
	return id, nil
}

func (s *assetsStore) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id=?`, id)
	var a Asset
	err := row.Scan(&a.ID, &a.AssetTypeID, &a.DepartmentID, &a.Tag, &a.Name, &a.Location, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *assetsStore) ListAssets(ctx context.Context, filter AssetFilter) ([]Asset, int64, error) {
	var clauses []string
	var args []any
	if filter.DepartmentID != nil {
		clauses = append(clauses, "department_id=?")
		args = append(args, *filter.DepartmentID)
	}
	if filter.AssetTypeID != nil {
		clauses = append(clauses, "asset_type_id=?")
		args = append(args, *filter.AssetTypeID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		clauses = append(clauses, "(tag LIKE ? OR name LIKE ? OR location LIKE ?)")
		q := "%" + filter.Search + "%"
		args = append(args, q, q, q)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM assets`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + assetColumns + ` FROM assets` + where + ` ORDER BY tag`
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.AssetTypeID, &a.DepartmentID, &a.Tag, &a.Name, &a.Location, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (s *assetsStore) UpdateAsset(ctx context.Context, a *Asset) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE assets SET name=?, location=?, status=?, asset_type_id=?, updated_at=?
		WHERE id=?`, a.Name, a.Location, a.Status, a.AssetTypeID, now, a.ID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	a.UpdatedAt = now
	return nil
}

func (s *assetsStore) RetireAsset(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE assets SET status='retired', updated_at=? WHERE id=? AND status!='retired'`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	return nil
}
