package wasterecords

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	created := time.Date(2025, 5, 5, 5, 5, 5, 0, time.UTC)
	rec := &models.WasteRecord{
		ID: "r-1", DeviceID: "bin-7", AccountID: "acc-1",
		Weights: models.Weights{Organic: 1.5, Recyclable: 2, Hazardous: 0}, Reward: 45,
	}

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+waste_records\s*\(id,\s*device_id,\s*account_id,\s*organic,\s*recyclable,\s*hazardous,\s*reward\).*RETURNING\s+created_at$`).
		WithArgs("r-1", "bin-7", "acc-1", 1.5, 2.0, 0.0, int64(45)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	got, err := repo.Create(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`INSERT\s+INTO\s+waste_records`).WillReturnError(errors.New("fk violation"))

	_, err := repo.Create(context.Background(), &models.WasteRecord{})
	assert.ErrorContains(t, err, "db error: fk violation")
}

func TestGet(t *testing.T) {
	cols := []string{"id", "device_id", "account_id", "organic", "recyclable", "hazardous", "reward", "created_at"}
	created := time.Date(2025, 5, 5, 5, 5, 5, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(`(?s)FROM\s+waste_records\s+WHERE\s+id\s*=\s*\$1$`).
			WithArgs("r-1").
			WillReturnRows(sqlmock.NewRows(cols).AddRow("r-1", "bin-7", "acc-1", 1.5, 2.0, 0.0, int64(45), created))

		rec, err := repo.Get(context.Background(), "r-1")
		require.NoError(t, err)
		assert.Equal(t, &models.WasteRecord{
			ID: "r-1", DeviceID: "bin-7", AccountID: "acc-1",
			Weights: models.Weights{Organic: 1.5, Recyclable: 2}, Reward: 45, CreatedAt: created,
		}, rec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(`FROM\s+waste_records`).WithArgs("r-9").WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(context.Background(), "r-9")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(`FROM\s+waste_records`).WithArgs("r-1").WillReturnError(errors.New("conn reset"))

		_, err := repo.Get(context.Background(), "r-1")
		assert.ErrorContains(t, err, "db error: conn reset")
		assert.Nil(t, common.KindOf(err))
	})
}

func TestListByAccount(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)FROM\s+waste_records\s+WHERE\s+account_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC$`).
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "device_id", "account_id", "organic", "recyclable", "hazardous", "reward", "created_at"}).
			AddRow("r-2", "bin-7", "acc-1", 0.0, 3.0, 0.0, int64(45), now).
			AddRow("r-1", "bin-7", "acc-1", 1.0, 0.0, 0.0, int64(10), now.Add(-time.Hour)))

	list, err := repo.ListByAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 3.0, list[0].Weights.Recyclable)
	assert.Equal(t, int64(10), list[1].Reward)
}

func TestTotals(t *testing.T) {
	cols := []string{"organic", "recyclable", "hazardous", "count"}

	t.Run("all", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(`(?s)^SELECT\s+COALESCE\(SUM\(organic\),\s*0\).*FROM\s+waste_records$`).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(10.0, 20.0, 1.0, int64(4)))

		tot, err := repo.Totals(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, models.Totals{Weights: models.Weights{Organic: 10, Recyclable: 20, Hazardous: 1}, Entries: 4}, tot)
	})

	t.Run("one account", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(`(?s)FROM\s+waste_records\s+WHERE\s+account_id\s*=\s*\$1$`).
			WithArgs("acc-1").
			WillReturnRows(sqlmock.NewRows(cols).AddRow(0.0, 0.0, 0.0, int64(0)))

		tot, err := repo.Totals(context.Background(), "acc-1")
		require.NoError(t, err)
		assert.Zero(t, tot.Entries)
	})
}

func TestListRecyclables(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)JOIN\s+accounts\s+a\s+ON\s+a\.id\s*=\s*w\.account_id\s+WHERE\s+w\.recyclable\s*>\s*0`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "recyclable", "created_at", "name", "email"}).
			AddRow("r-1", 2.5, now, "Alice", "a@x.com"))

	list, err := repo.ListRecyclables(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Alice", list[0].UserName)
	assert.Equal(t, 2.5, list[0].Recyclable)
}

func TestRecyclableStats(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`^SELECT\s+COALESCE\(SUM\(recyclable\),\s*0\),\s*COUNT\(\*\)\s+FROM\s+waste_records\s+WHERE\s+recyclable\s*>\s*0$`).
		WillReturnRows(sqlmock.NewRows([]string{"sum", "count"}).AddRow(7.5, int64(3)))
	mock.ExpectQuery(`(?s)date_trunc\('month',\s*created_at\).*GROUP\s+BY\s+month`).
		WillReturnRows(sqlmock.NewRows([]string{"month", "sum"}).
			AddRow(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 5.0).
			AddRow(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), 2.5))

	stats, err := repo.RecyclableStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7.5, stats.TotalWeight)
	assert.Equal(t, int64(3), stats.TotalEntries)
	assert.Equal(t, []models.MonthlyWeight{{Month: "2025-01", Weight: 5}, {Month: "2025-02", Weight: 2.5}}, stats.Monthly)
}
