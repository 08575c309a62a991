package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-shop/internal/logger"
)

func setupPostgresEventStore(t *testing.T, pub Publisher) (*PostgresEventStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresEventStore(db, pub, logger.Discard()), mock
}

var eventColumns = []string{"id", "aggregate_id", "aggregate_type", "event_type", "data", "version", "created_at"}

func TestPostgresEventStore_Append_Success(t *testing.T) {
	pub := &recordingPublisher{}
	es, mock := setupPostgresEventStore(t, pub)

	mock.ExpectExec("INSERT INTO events").
		WithArgs(sqlmock.AnyArg(), "order-1", "Order", "OrderPlaced", sqlmock.AnyArg(), 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event, err := es.Append(context.Background(), "order-1", "Order", "OrderPlaced", 2, map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, 3, event.Version)
	assert.Len(t, pub.events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventStore_Append_UniqueViolationIsConflict(t *testing.T) {
	pub := &recordingPublisher{}
	es, mock := setupPostgresEventStore(t, pub)

	mock.ExpectExec("INSERT INTO events").
		WillReturnError(&pq.Error{Code: uniqueViolation})

	_, err := es.Append(context.Background(), "order-1", "Order", "OrderPlaced", 0, struct{}{})
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Empty(t, pub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventStore_Append_OtherError(t *testing.T) {
	es, mock := setupPostgresEventStore(t, nil)

	mock.ExpectExec("INSERT INTO events").WillReturnError(errors.New("connection refused"))

	_, err := es.Append(context.Background(), "order-1", "Order", "OrderPlaced", 0, struct{}{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrVersionConflict)
	assert.Contains(t, err.Error(), "insert event")
}

func TestPostgresEventStore_GetEvents(t *testing.T) {
	es, mock := setupPostgresEventStore(t, nil)
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM events WHERE aggregate_id = \\$1 ORDER BY version").
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow("e1", "order-1", "Order", "OrderPlaced", []byte(`{"a":1}`), 1, now).
			AddRow("e2", "order-1", "Order", "OrderStatusUpdated", []byte(`{"b":2}`), 2, now))

	events, err := es.GetEvents(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "OrderStatusUpdated", events[1].EventType)
	assert.JSONEq(t, `{"a":1}`, string(events[0].Data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventStore_GetEventsFromVersion(t *testing.T) {
	es, mock := setupPostgresEventStore(t, nil)

	mock.ExpectQuery("SELECT .+ FROM events WHERE aggregate_id = \\$1 AND version > \\$2").
		WithArgs("order-1", 10).
		WillReturnRows(sqlmock.NewRows(eventColumns))

	events, err := es.GetEventsFromVersion(context.Background(), "order-1", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventStore_GetAllEvents_QueryError(t *testing.T) {
	es, mock := setupPostgresEventStore(t, nil)

	mock.ExpectQuery("SELECT .+ FROM events ORDER BY").WillReturnError(errors.New("boom"))

	_, err := es.GetAllEvents(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query events")
}

func TestPostgresEventStore_GetSnapshot_None(t *testing.T) {
	es, mock := setupPostgresEventStore(t, nil)

	mock.ExpectQuery("SELECT .+ FROM snapshots").
		WithArgs("order-1").
		WillReturnError(sql.ErrNoRows)

	snap, err := es.GetSnapshot(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestPostgresEventStore_SaveAndGetSnapshot(t *testing.T) {
	es, mock := setupPostgresEventStore(t, nil)
	now := time.Now()

	mock.ExpectExec("INSERT INTO snapshots").
		WithArgs("order-1", "Order", 10, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .+ FROM snapshots").
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"aggregate_id", "aggregate_type", "version", "state", "created_at"}).
			AddRow("order-1", "Order", 10, []byte(`{"id":"order-1"}`), now))

	require.NoError(t, es.SaveSnapshot(context.Background(), &Snapshot{
		AggregateID: "order-1", AggregateType: "Order", Version: 10, State: []byte(`{"id":"order-1"}`), CreatedAt: now,
	}))

	snap, err := es.GetSnapshot(context.Background(), "order-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 10, snap.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReadStore_RoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rs := NewPostgresReadStore(db)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO read_models").
		WithArgs("orders", "o1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT data FROM read_models WHERE collection = \\$1 AND id = \\$2").
		WithArgs("orders", "o1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"o1","total":115}`)))
	mock.ExpectQuery("SELECT data FROM read_models WHERE collection = \\$1 AND id = \\$2").
		WithArgs("orders", "missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT data FROM read_models WHERE collection = \\$1 ORDER BY id").
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"o1"}`)).AddRow([]byte(`{"id":"o2"}`)))
	mock.ExpectExec("DELETE FROM read_models").
		WithArgs("orders", "o1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, rs.Set(ctx, "orders", "o1", doc{ID: "o1", Total: 115}))

	var got doc
	found, err := rs.Get(ctx, "orders", "o1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 115, got.Total)

	found, err = rs.Get(ctx, "orders", "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	docs, err := rs.List(ctx, "orders")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	require.NoError(t, rs.Delete(ctx, "orders", "o1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
