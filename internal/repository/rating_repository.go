package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/store-rating/internal/model"
)

// RatingRepo provides access to the ratings table. The write path
// only exposes Tx variants: creating or updating a rating is always
// part of the submission transaction that also rewrites the store
// aggregate and appends the audit row.
type RatingRepo struct {
	db *sql.DB
}

// NewRatingRepo returns a new RatingRepo bound to the given database.
func NewRatingRepo(db *sql.DB) *RatingRepo { return &RatingRepo{db: db} }

const ratingCols = "id, user_id, store_id, score, comment, created_at, updated_at"

func scanRating(scan func(dest ...any) error) (model.Rating, error) {
	var rt model.Rating
	var comment sql.NullString
	err := scan(&rt.ID, &rt.UserID, &rt.StoreID, &rt.Score, &comment, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return model.Rating{}, err
	}
	if comment.Valid {
		c := comment.String
		rt.Comment = &c
	}
	return rt, nil
}

// GetByUserAndStore fetches a user's rating for a store, or
// sql.ErrNoRows when the user has not rated it.
func (r *RatingRepo) GetByUserAndStore(ctx context.Context, userID, storeID uint64) (model.Rating, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+ratingCols+" FROM ratings WHERE user_id=? AND store_id=? LIMIT 1",
		userID, storeID)
	return scanRating(row.Scan)
}

// GetByUserAndStoreTx is GetByUserAndStore inside the submission
// transaction, so the decision between insert and update is made on a
// row that cannot change underneath it.
func (r *RatingRepo) GetByUserAndStoreTx(ctx context.Context, tx *sql.Tx, userID, storeID uint64) (model.Rating, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+ratingCols+" FROM ratings WHERE user_id=? AND store_id=? LIMIT 1",
		userID, storeID)
	return scanRating(row.Scan)
}

// CreateTx inserts a new rating within the transaction and reads the
// full row back to populate timestamps.
func (r *RatingRepo) CreateTx(ctx context.Context, tx *sql.Tx, userID, storeID uint64, score int, comment *string) (model.Rating, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO ratings (user_id, store_id, score, comment) VALUES (?,?,?,?)",
		userID, storeID, score, comment)
	if err != nil {
		return model.Rating{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Rating{}, err
	}
	row := tx.QueryRowContext(ctx,
		"SELECT "+ratingCols+" FROM ratings WHERE id=?", id)
	return scanRating(row.Scan)
}

// UpdateTx rewrites the score and comment of an existing rating
// within the transaction and reads the full row back.
func (r *RatingRepo) UpdateTx(ctx context.Context, tx *sql.Tx, id uint64, score int, comment *string) (model.Rating, error) {
	if _, err := tx.ExecContext(ctx,
		"UPDATE ratings SET score=?, comment=? WHERE id=?", score, comment, id); err != nil {
		return model.Rating{}, err
	}
	row := tx.QueryRowContext(ctx,
		"SELECT "+ratingCols+" FROM ratings WHERE id=?", id)
	return scanRating(row.Scan)
}

// Count returns the total number of ratings (admin dashboard).
func (r *RatingRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ratings").Scan(&n)
	return n, err
}

// RatingWithUser is a rating joined with the rater's public identity
// for owner and admin views. The password hash never crosses this
// boundary.
type RatingWithUser struct {
	ID        uint64           `json:"id"`
	Score     int              `json:"score"`
	Comment   *string          `json:"comment,omitempty"`
	User      model.PublicUser `json:"user"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ListByStore returns a store's ratings newest first, each carrying
// the rater's public identity. A limit of 0 returns all rows.
func (r *RatingRepo) ListByStore(ctx context.Context, storeID uint64, limit int) ([]RatingWithUser, error) {
	q := `SELECT rt.id, rt.score, rt.comment, rt.created_at, rt.updated_at,
			u.id, u.name, u.email
		FROM ratings rt
		JOIN users u ON u.id = rt.user_id
		WHERE rt.store_id = ?
		ORDER BY rt.created_at DESC`
	args := []any{storeID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RatingWithUser, 0, 16)
	for rows.Next() {
		var row RatingWithUser
		var comment sql.NullString
		if err := rows.Scan(&row.ID, &row.Score, &comment, &row.CreatedAt, &row.UpdatedAt,
			&row.User.ID, &row.User.Name, &row.User.Email); err != nil {
			return nil, err
		}
		if comment.Valid {
			c := comment.String
			row.Comment = &c
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
