package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/store-rating/internal/repository"
)

func newRatingTestHandler(t *testing.T) (*RatingHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	h := NewRatingHandler(
		repository.NewStoreRepo(db),
		repository.NewRatingRepo(db),
		repository.NewAuditRepo(db),
		repository.NewUserRepo(db),
	)
	return h, mock, func() { db.Close() }
}

// submitContext builds an echo context for POST /v1/stores/:id/ratings
// with the JWT claims already in place, the way JWTAuth leaves them.
func submitContext(body string, userID float64, storeID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/stores/"+storeID+"/ratings", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(storeID)
	c.Set("user_id", userID) // numeric JWT claims decode as float64
	c.Set("role", "USER")
	return c, rec
}

func mockStoreRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "address", "owner_id",
		"avg_rating", "rating_count", "created_at", "updated_at",
	})
}

func mockRatingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "store_id", "score", "comment", "created_at", "updated_at",
	})
}

func mockUserRow(id int64, name, email, role string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "name", "email", "address", "password_hash", "role", "created_at", "updated_at",
	}).AddRow(id, name, email, "", "x", role, now, now)
}

func TestSubmitFirstRating(t *testing.T) {
	h, mock, done := newRatingTestHandler(t)
	defer done()
	now := time.Now().UTC()

	mock.ExpectBegin()
	// Store locked with zero ratings so far, owned by someone else.
	mock.ExpectQuery("SELECT .+ FROM stores WHERE id=. FOR UPDATE").
		WithArgs(int64(10)).
		WillReturnRows(mockStoreRows().AddRow(int64(10), "Corner Books", "", "", int64(2), 0.0, int64(0), now, now))
	mock.ExpectQuery("SELECT .+ FROM ratings WHERE user_id=. AND store_id=.").
		WithArgs(int64(7), int64(10)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO ratings").
		WithArgs(int64(7), int64(10), 5, nil).
		WillReturnResult(sqlmock.NewResult(31, 1))
	mock.ExpectQuery("SELECT .+ FROM ratings WHERE id=.").
		WithArgs(int64(31)).
		WillReturnRows(mockRatingRows().AddRow(int64(31), int64(7), int64(10), 5, nil, now, now))
	// First rating of 5 lands the aggregate on (5.0, 1).
	mock.ExpectExec("UPDATE stores SET avg_rating=., rating_count=.").
		WithArgs(5.0, int64(1), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(int64(7), "CREATE", "RATING", int64(31), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	// Rater identity for the response body.
	mock.ExpectQuery("SELECT .+ FROM users WHERE id=.").
		WithArgs(int64(7)).
		WillReturnRows(mockUserRow(7, "Alice", "alice@example.com", "USER"))

	c, rec := submitContext(`{"score":5}`, 7, "10")
	require.NoError(t, h.Submit(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID      uint64 `json:"id"`
		StoreID uint64 `json:"store_id"`
		Score   int    `json:"score"`
		User    struct {
			Name string `json:"name"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(31), resp.ID)
	assert.Equal(t, uint64(10), resp.StoreID)
	assert.Equal(t, 5, resp.Score)
	assert.Equal(t, "Alice", resp.User.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitRepeatRatingUpdatesInPlace(t *testing.T) {
	h, mock, done := newRatingTestHandler(t)
	defer done()
	now := time.Now().UTC()

	mock.ExpectBegin()
	// Two ratings averaging 4; this user's existing 3 becomes a 5.
	mock.ExpectQuery("SELECT .+ FROM stores WHERE id=. FOR UPDATE").
		WithArgs(int64(10)).
		WillReturnRows(mockStoreRows().AddRow(int64(10), "Corner Books", "", "", int64(2), 4.0, int64(2), now, now))
	mock.ExpectQuery("SELECT .+ FROM ratings WHERE user_id=. AND store_id=.").
		WithArgs(int64(7), int64(10)).
		WillReturnRows(mockRatingRows().AddRow(int64(31), int64(7), int64(10), 3, nil, now, now))
	mock.ExpectExec("UPDATE ratings SET score=., comment=.").
		WithArgs(5, nil, int64(31)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .+ FROM ratings WHERE id=.").
		WithArgs(int64(31)).
		WillReturnRows(mockRatingRows().AddRow(int64(31), int64(7), int64(10), 5, nil, now, now))
	// (4*2 - 3 + 5) / 2 = 5, count stays at 2.
	mock.ExpectExec("UPDATE stores SET avg_rating=., rating_count=.").
		WithArgs(5.0, int64(2), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(int64(7), "UPDATE", "RATING", int64(31), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT .+ FROM users WHERE id=.").
		WithArgs(int64(7)).
		WillReturnRows(mockUserRow(7, "Alice", "alice@example.com", "USER"))

	c, rec := submitContext(`{"score":5}`, 7, "10")
	require.NoError(t, h.Submit(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitOwnStoreForbidden(t *testing.T) {
	h, mock, done := newRatingTestHandler(t)
	defer done()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM stores WHERE id=. FOR UPDATE").
		WithArgs(int64(10)).
		WillReturnRows(mockStoreRows().AddRow(int64(10), "My Shop", "", "", int64(7), 3.0, int64(4), now, now))
	mock.ExpectRollback()

	c, rec := submitContext(`{"score":5}`, 7, "10")
	require.NoError(t, h.Submit(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "your own store")
	// Nothing was written: expectations stop at the rollback.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitStoreNotFound(t *testing.T) {
	h, mock, done := newRatingTestHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM stores WHERE id=. FOR UPDATE").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	c, rec := submitContext(`{"score":4}`, 7, "99")
	require.NoError(t, h.Submit(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitRejectsOutOfRangeScore(t *testing.T) {
	h, mock, done := newRatingTestHandler(t)
	defer done()

	for _, score := range []string{"0", "6", "-1"} {
		c, rec := submitContext(`{"score":`+score+`}`, 7, "10")
		require.NoError(t, h.Submit(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "score %s", score)
	}
	// The request never reaches the database.
	assert.NoError(t, mock.ExpectationsWereMet())
}

// readContext builds an echo context for the owner/admin rating read
// endpoints with the JWT claims already in place.
func readContext(path string, userID float64, role, storeID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(storeID)
	c.Set("user_id", userID)
	c.Set("role", role)
	return c, rec
}

func TestListForStoreRejectsOtherOwner(t *testing.T) {
	h, mock, done := newRatingTestHandler(t)
	defer done()
	now := time.Now().UTC()

	// Store 10 belongs to user 2; user 8 is an owner, just not of
	// this store.
	mock.ExpectQuery("SELECT .+ FROM stores WHERE id=. LIMIT 1").
		WithArgs(int64(10)).
		WillReturnRows(mockStoreRows().AddRow(int64(10), "Corner Books", "", "", int64(2), 4.0, int64(2), now, now))

	c, rec := readContext("/v1/stores/10/ratings", 8, "STORE_OWNER", "10")
	require.NoError(t, h.ListForStore(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "your own stores")
	// The ratings query never ran.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListForStoreAsOwner(t *testing.T) {
	h, mock, done := newRatingTestHandler(t)
	defer done()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM stores WHERE id=. LIMIT 1").
		WithArgs(int64(10)).
		WillReturnRows(mockStoreRows().AddRow(int64(10), "Corner Books", "", "", int64(2), 4.0, int64(2), now, now))
	mock.ExpectQuery("SELECT .+ FROM ratings rt JOIN users u").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "score", "comment", "created_at", "updated_at", "u.id", "u.name", "u.email",
		}).AddRow(int64(31), 5, nil, now, now, int64(7), "Alice", "alice@example.com").
			AddRow(int64(29), 3, "fine", now.Add(-time.Hour), now.Add(-time.Hour), int64(9), "Bob", "bob@example.com"))

	c, rec := readContext("/v1/stores/10/ratings", 2, "STORE_OWNER", "10")
	require.NoError(t, h.ListForStore(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Store struct {
			Name string `json:"name"`
		} `json:"store"`
		Ratings []struct {
			Score int `json:"score"`
			User  struct {
				Name string `json:"name"`
			} `json:"user"`
		} `json:"ratings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Corner Books", resp.Store.Name)
	require.Len(t, resp.Ratings, 2)
	assert.Equal(t, 5, resp.Ratings[0].Score)
	assert.Equal(t, "Alice", resp.Ratings[0].User.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListForStoreAsAdmin(t *testing.T) {
	h, mock, done := newRatingTestHandler(t)
	defer done()
	now := time.Now().UTC()

	// The admin is not the owner; the role alone grants the read.
	mock.ExpectQuery("SELECT .+ FROM stores WHERE id=. LIMIT 1").
		WithArgs(int64(10)).
		WillReturnRows(mockStoreRows().AddRow(int64(10), "Corner Books", "", "", int64(2), 4.0, int64(2), now, now))
	mock.ExpectQuery("SELECT .+ FROM ratings rt JOIN users u").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "score", "comment", "created_at", "updated_at", "u.id", "u.name", "u.email",
		}))

	c, rec := readContext("/v1/stores/10/ratings", 1, "ADMIN", "10")
	require.NoError(t, h.ListForStore(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryAuthorization(t *testing.T) {
	h, mock, done := newRatingTestHandler(t)
	defer done()
	now := time.Now().UTC()

	// Owner of the store sees the aggregate.
	mock.ExpectQuery("SELECT .+ FROM stores WHERE id=. LIMIT 1").
		WithArgs(int64(10)).
		WillReturnRows(mockStoreRows().AddRow(int64(10), "Corner Books", "", "", int64(2), 4.5, int64(6), now, now))

	c, rec := readContext("/v1/stores/10/ratings/summary", 2, "STORE_OWNER", "10")
	require.NoError(t, h.Summary(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AvgRating   float64 `json:"avg_rating"`
		RatingCount int64   `json:"rating_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4.5, resp.AvgRating)
	assert.Equal(t, int64(6), resp.RatingCount)

	// A different owner does not.
	mock.ExpectQuery("SELECT .+ FROM stores WHERE id=. LIMIT 1").
		WithArgs(int64(10)).
		WillReturnRows(mockStoreRows().AddRow(int64(10), "Corner Books", "", "", int64(2), 4.5, int64(6), now, now))

	c, rec = readContext("/v1/stores/10/ratings/summary", 8, "STORE_OWNER", "10")
	require.NoError(t, h.Summary(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitRollsBackWhenAggregateWriteFails(t *testing.T) {
	h, mock, done := newRatingTestHandler(t)
	defer done()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM stores WHERE id=. FOR UPDATE").
		WithArgs(int64(10)).
		WillReturnRows(mockStoreRows().AddRow(int64(10), "Corner Books", "", "", nil, 0.0, int64(0), now, now))
	mock.ExpectQuery("SELECT .+ FROM ratings WHERE user_id=. AND store_id=.").
		WithArgs(int64(7), int64(10)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO ratings").
		WithArgs(int64(7), int64(10), 4, nil).
		WillReturnResult(sqlmock.NewResult(31, 1))
	mock.ExpectQuery("SELECT .+ FROM ratings WHERE id=.").
		WithArgs(int64(31)).
		WillReturnRows(mockRatingRows().AddRow(int64(31), int64(7), int64(10), 4, nil, now, now))
	mock.ExpectExec("UPDATE stores SET avg_rating=., rating_count=.").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	c, rec := submitContext(`{"score":4}`, 7, "10")
	require.NoError(t, h.Submit(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
