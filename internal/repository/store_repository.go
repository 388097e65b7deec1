package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/store-rating/internal/model"
)

// StoreRepo provides CRUD and aggregate access for stores. The
// (avg_rating, rating_count) pair is owned by this layer and is only
// written through UpdateAggregateTx inside the rating submission
// transaction.
type StoreRepo struct {
	db *sql.DB
}

// NewStoreRepo returns a new StoreRepo bound to the given database.
func NewStoreRepo(db *sql.DB) *StoreRepo { return &StoreRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// that span store, rating and audit statements.
func (r *StoreRepo) DB() *sql.DB { return r.db }

const storeCols = "id, name, email, address, owner_id, avg_rating, rating_count, created_at, updated_at"

func scanStore(row *sql.Row) (model.Store, error) {
	var s model.Store
	var ownerID sql.NullInt64
	err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Address, &ownerID,
		&s.AvgRating, &s.RatingCount, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return model.Store{}, err
	}
	if ownerID.Valid {
		oid := uint64(ownerID.Int64)
		s.OwnerID = &oid
	}
	return s, nil
}

// Create inserts a store and returns the persisted row. The owner is
// optional; a nil ownerID stores NULL.
func (r *StoreRepo) Create(ctx context.Context, name, email, address string, ownerID *uint64) (model.Store, error) {
	var owner any
	if ownerID != nil {
		owner = *ownerID
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO stores (name, email, address, owner_id) VALUES (?,?,?,?)",
		name, email, address, owner)
	if err != nil {
		return model.Store{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Store{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// CreateTx is Create inside an existing transaction, used by the
// admin create path so the audit row commits or rolls back with the
// store it records. The inserted row is read back through the same
// transaction.
func (r *StoreRepo) CreateTx(ctx context.Context, tx *sql.Tx, name, email, address string, ownerID *uint64) (model.Store, error) {
	var owner any
	if ownerID != nil {
		owner = *ownerID
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO stores (name, email, address, owner_id) VALUES (?,?,?,?)",
		name, email, address, owner)
	if err != nil {
		return model.Store{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Store{}, err
	}
	return scanStore(tx.QueryRowContext(ctx,
		"SELECT "+storeCols+" FROM stores WHERE id=? LIMIT 1", id))
}

// GetByID fetches a store by id. Returns ErrStoreNotFound when the
// row does not exist.
func (r *StoreRepo) GetByID(ctx context.Context, id uint64) (model.Store, error) {
	s, err := scanStore(r.db.QueryRowContext(ctx,
		"SELECT "+storeCols+" FROM stores WHERE id=? LIMIT 1", id))
	if err == sql.ErrNoRows {
		return model.Store{}, ErrStoreNotFound
	}
	return s, err
}

// GetForUpdateTx loads a store inside the given transaction with a
// row lock (SELECT ... FOR UPDATE). Concurrent rating submissions for
// the same store block here, so the aggregate each one reads is never
// stale. Returns ErrStoreNotFound when the row does not exist.
func (r *StoreRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Store, error) {
	s, err := scanStore(tx.QueryRowContext(ctx,
		"SELECT "+storeCols+" FROM stores WHERE id=? FOR UPDATE", id))
	if err == sql.ErrNoRows {
		return model.Store{}, ErrStoreNotFound
	}
	return s, err
}

// UpdateAggregateTx writes a recomputed (avg_rating, rating_count)
// pair within the submission transaction.
func (r *StoreRepo) UpdateAggregateTx(ctx context.Context, tx *sql.Tx, id uint64, avg float64, count int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE stores SET avg_rating=?, rating_count=? WHERE id=?", avg, count, id)
	return err
}

// Count returns the total number of stores (admin dashboard).
func (r *StoreRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stores").Scan(&n)
	return n, err
}

// StoreQuery defines filters & pagination for store listings.
type StoreQuery struct {
	Search string
	Page   PageQuery
}

// StoreRow is one row of a store listing, carrying the owner's public
// identity when the store has an owner.
type StoreRow struct {
	ID          uint64            `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email,omitempty"`
	Address     string            `json:"address,omitempty"`
	AvgRating   float64           `json:"avg_rating"`
	RatingCount int64             `json:"rating_count"`
	Owner       *model.PublicUser `json:"owner,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func scanStoreRows(rows *sql.Rows, capHint int) ([]StoreRow, error) {
	out := make([]StoreRow, 0, capHint)
	for rows.Next() {
		var row StoreRow
		var oid sql.NullInt64
		var oname, oemail sql.NullString
		if err := rows.Scan(&row.ID, &row.Name, &row.Email, &row.Address,
			&row.AvgRating, &row.RatingCount, &row.CreatedAt,
			&oid, &oname, &oemail); err != nil {
			return nil, err
		}
		if oid.Valid {
			row.Owner = &model.PublicUser{ID: uint64(oid.Int64), Name: oname.String, Email: oemail.String}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// List returns stores matching the query plus the unpaginated total.
// Search is a case-insensitive substring match over name, email and
// address. Newest first.
func (r *StoreRepo) List(ctx context.Context, q StoreQuery) ([]StoreRow, int64, error) {
	cond := "1=1"
	args := []any{}
	if s := strings.TrimSpace(q.Search); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		cond = "(LOWER(s.name) LIKE ? OR LOWER(s.email) LIKE ? OR LOWER(s.address) LIKE ?)"
		args = append(args, pat, pat, pat)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM stores s WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := q.Page.Normalize()
	dataSQL := `SELECT s.id, s.name, s.email, s.address, s.avg_rating, s.rating_count, s.created_at,
			u.id, u.name, u.email
		FROM stores s
		LEFT JOIN users u ON u.id = s.owner_id
		WHERE ` + cond + `
		ORDER BY s.created_at DESC
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), page.Limit, page.Offset())

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out, err := scanStoreRows(rows, page.Limit)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListByOwner returns the stores owned by a user, newest first.
func (r *StoreRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]StoreRow, error) {
	const q = `SELECT s.id, s.name, s.email, s.address, s.avg_rating, s.rating_count, s.created_at,
			u.id, u.name, u.email
		FROM stores s
		LEFT JOIN users u ON u.id = s.owner_id
		WHERE s.owner_id = ?
		ORDER BY s.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStoreRows(rows, 8)
}
