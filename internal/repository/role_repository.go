package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-notice-api/internal/models"
)

// RoleRepository provides persistence for roles.
type RoleRepository struct {
	db *sqlx.DB
}

// NewRoleRepository creates the repository.
func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// List returns every role sorted by name.
func (r *RoleRepository) List(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.SelectContext(ctx, &roles, "SELECT id, name, created_at, updated_at FROM roles ORDER BY name ASC"); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// GetByID returns a role by identifier.
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	var role models.Role
	if err := r.db.GetContext(ctx, &role, "SELECT id, name, created_at, updated_at FROM roles WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &role, nil
}

// GetByName returns a role by its unique name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	if err := r.db.GetContext(ctx, &role, "SELECT id, name, created_at, updated_at FROM roles WHERE name = $1", name); err != nil {
		return nil, err
	}
	return &role, nil
}

// FindByNames resolves role names to roles. Names with no matching role are
// simply absent from the result.
func (r *RoleRepository) FindByNames(ctx context.Context, names []string) ([]models.Role, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var roles []models.Role
	const query = `SELECT id, name, created_at, updated_at FROM roles WHERE name = ANY($1)`
	if err := r.db.SelectContext(ctx, &roles, query, pq.Array(names)); err != nil {
		return nil, fmt.Errorf("find roles by names: %w", err)
	}
	return roles, nil
}

// FindByIDs resolves role ids to roles. Unknown ids are absent from the
// result.
func (r *RoleRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var roles []models.Role
	const query = `SELECT id, name, created_at, updated_at FROM roles WHERE id = ANY($1)`
	if err := r.db.SelectContext(ctx, &roles, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find roles by ids: %w", err)
	}
	return roles, nil
}

// ExistsByName reports whether a role with the name already exists.
func (r *RoleRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)", name); err != nil {
		return false, fmt.Errorf("check role name: %w", err)
	}
	return exists, nil
}

// Create inserts a new role.
func (r *RoleRepository) Create(ctx context.Context, role *models.Role) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now
	const query = `INSERT INTO roles (id, name, created_at, updated_at) VALUES (:id, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, role); err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

// Update renames a role.
func (r *RoleRepository) Update(ctx context.Context, id, name string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE roles SET name = $2, updated_at = $3 WHERE id = $1", id, name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check role update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a role.
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM roles WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check role delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
