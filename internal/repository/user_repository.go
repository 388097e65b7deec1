package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/store-rating/internal/model"
	"github.com/iliyamo/store-rating/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create hashes the password with bcrypt and inserts the user,
// returning its ID. Duplicate emails map to ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, name, email, address, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, address, password_hash, role) VALUES (?,?,?,?,?)",
		name, email, address, hash, role)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// CreateTx is Create inside an existing transaction, used by the
// admin create path so the audit row commits or rolls back with the
// user it records.
func (r *UserRepo) CreateTx(ctx context.Context, tx *sql.Tx, name, email, address, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (name, email, address, password_hash, role) VALUES (?,?,?,?,?)",
		name, email, address, hash, role)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,email,address,password_hash,role,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Name, &u.Email, &u.Address, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,email,address,password_hash,role,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Name, &u.Email, &u.Address, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// UpdatePassword re-hashes and stores a new password for the user.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", hash, id)
	return err
}

// Count returns the total number of users (admin dashboard).
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// UserQuery defines filters & pagination for the admin user listing.
type UserQuery struct {
	Search string
	Role   string
	Page   PageQuery
}

// AdminUserRow is one row of the admin user listing. RatingsGiven and
// StoresOwned are derived counts, not columns.
type AdminUserRow struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Address      string    `json:"address,omitempty"`
	Role         string    `json:"role"`
	RatingsGiven int64     `json:"ratings_given"`
	StoresOwned  int64     `json:"stores_owned"`
	CreatedAt    time.Time `json:"created_at"`
}

// List returns users matching the query plus the unpaginated total.
// Search is a case-insensitive substring match over name, email and
// address; an empty role matches every role. Newest first.
func (r *UserRepo) List(ctx context.Context, q UserQuery) ([]AdminUserRow, int64, error) {
	where := []string{}
	args := []any{}
	if s := strings.TrimSpace(q.Search); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		where = append(where, "(LOWER(u.name) LIKE ? OR LOWER(u.email) LIKE ? OR LOWER(u.address) LIKE ?)")
		args = append(args, pat, pat, pat)
	}
	if q.Role != "" {
		where = append(where, "u.role = ?")
		args = append(args, q.Role)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users u WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := q.Page.Normalize()
	dataSQL := `SELECT u.id, u.name, u.email, u.address, u.role, u.created_at,
			(SELECT COUNT(*) FROM ratings rt WHERE rt.user_id = u.id) AS ratings_given,
			(SELECT COUNT(*) FROM stores st WHERE st.owner_id = u.id) AS stores_owned
		FROM users u
		WHERE ` + cond + `
		ORDER BY u.created_at DESC
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), page.Limit, page.Offset())

	rows, err := r.DB.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]AdminUserRow, 0, page.Limit)
	for rows.Next() {
		var row AdminUserRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Email, &row.Address, &row.Role,
			&row.CreatedAt, &row.RatingsGiven, &row.StoresOwned); err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetDetail loads a single user with derived counts for the admin
// detail view. Returns sql.ErrNoRows when the user does not exist.
func (r *UserRepo) GetDetail(ctx context.Context, id uint64) (AdminUserRow, error) {
	const q = `SELECT u.id, u.name, u.email, u.address, u.role, u.created_at,
			(SELECT COUNT(*) FROM ratings rt WHERE rt.user_id = u.id) AS ratings_given,
			(SELECT COUNT(*) FROM stores st WHERE st.owner_id = u.id) AS stores_owned
		FROM users u WHERE u.id = ?`
	var row AdminUserRow
	err := r.DB.QueryRowContext(ctx, q, id).Scan(&row.ID, &row.Name, &row.Email, &row.Address,
		&row.Role, &row.CreatedAt, &row.RatingsGiven, &row.StoresOwned)
	return row, err
}
