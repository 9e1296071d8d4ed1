package postgres

import (
	"bytes"
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/stl-revenue-crawler/internal/crawler"
)

func TestPutObjectInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewBlobStoreWithPool(mock, "item_records")
	require.NoError(t, err)

	data := []byte(`{"title": "dragon"}`)
	mock.ExpectExec("INSERT INTO item_records").
		WithArgs("abc_2024_03.json", "application/json", data).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	uri, err := store.PutObject(context.Background(), "abc_2024_03.json", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "postgres://item_records/abc_2024_03.json", uri)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutObjectConflict(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewBlobStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO item_records").
		WithArgs("k.json", "application/json", []byte("{}")).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	_, err = store.PutObject(context.Background(), "k.json", "application/json", bytes.NewReader([]byte("{}")))
	require.ErrorIs(t, err, crawler.ErrObjectExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExists(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewBlobStoreWithPool(mock, "item_records")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM item_records`).
		WithArgs("present.json").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM item_records`).
		WithArgs("absent.json").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := store.Exists(context.Background(), "present.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(context.Background(), "absent.json")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewBlobStoreWithPool(mock, "records")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS records").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewBlobStoreWithPool(mock, "records; DROP TABLE x")
	require.Error(t, err)
	_, err = NewBlobStore(context.Background(), BlobStoreConfig{})
	require.Error(t, err)
}
