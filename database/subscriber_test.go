/*
Copyright 2026 Presslane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/presslane/newswire/internal/apierror"
	"github.com/presslane/newswire/model"
)

func TestCreateSubscriber_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	sub := model.Subscriber{
		Name:           "Daily Bugle",
		SubscriberType: model.SubscriberTypeWire,
		Email:          "desk@bugle.example",
		Codes:          "a1,b2",
		Products:       []string{"prd_1"},
		Destinations: []model.Destination{
			{Name: "main-ftp", Format: "ninjs", DeliveryType: model.DeliveryTypeFTP},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO subscribers").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO subscriber_products").
		WithArgs(sqlmock.AnyArg(), "prd_1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	created, err := ds.CreateSubscriber(context.Background(), sub)
	assert.NoError(t, err)
	assert.NotEmpty(t, created.SubscriberID)
	assert.True(t, created.IsActive)
	assert.Equal(t, 1, created.SequenceNumSettings.Min)
	assert.Equal(t, 9999, created.SequenceNumSettings.Max)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSubscriber_UniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO subscribers").
		WillReturnError(&pq.Error{Code: "23505", Message: "unique_violation"})
	mock.ExpectRollback()

	_, err = ds.CreateSubscriber(context.Background(), model.Subscriber{Name: "Daily Bugle"})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func subscriberRows(t *testing.T, ids ...string) *sqlmock.Rows {
	t.Helper()
	seqJSON, err := json.Marshal(model.SequenceNumSettings{Min: 1, Max: 9999})
	assert.NoError(t, err)
	destJSON, err := json.Marshal([]model.Destination{
		{Name: "main-ftp", Format: "ninjs", DeliveryType: model.DeliveryTypeFTP},
	})
	assert.NoError(t, err)

	rows := sqlmock.NewRows([]string{
		"subscriber_id", "name", "subscriber_type", "is_active", "email",
		"sequence_num_settings", "critical_errors", "global_filters", "codes",
		"destinations", "last_closed", "created_at", "updated_at", "product_ids",
	})
	for _, id := range ids {
		rows.AddRow(id, "Subscriber "+id, "all", true, nil,
			seqJSON, []byte(`{"6000":true}`), []byte(`{}`), "a1",
			destJSON, nil, time.Now(), time.Now(), pq.StringArray{"prd_1"})
	}
	return rows
}

func TestGetSubscriberByID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT(.|\\n)+FROM subscribers").
		WithArgs("sub_1").
		WillReturnRows(subscriberRows(t, "sub_1"))

	sub, err := ds.GetSubscriberByID(context.Background(), "sub_1")
	assert.NoError(t, err)
	assert.Equal(t, "Subscriber sub_1", sub.Name)
	assert.Equal(t, []string{"prd_1"}, sub.Products)
	assert.True(t, sub.CriticalErrors["6000"])
	assert.Len(t, sub.Destinations, 1)
}

func TestGetSubscriberByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT(.|\\n)+FROM subscribers").
		WithArgs("sub_missing").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetSubscriberByID(context.Background(), "sub_missing")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestGetActiveSubscribers(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT(.|\\n)+FROM subscribers").
		WillReturnRows(subscriberRows(t, "sub_1", "sub_2"))

	subs, err := ds.GetActiveSubscribers(context.Background())
	assert.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestDeactivateSubscriber(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE subscribers").
		WithArgs("sub_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.DeactivateSubscriber(context.Background(), "sub_1", "critical transmission error 6000")
	assert.NoError(t, err)
}

func TestDeactivateSubscriber_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE subscribers").
		WithArgs("sub_missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.DeactivateSubscriber(context.Background(), "sub_missing", "reason")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestNextSequenceNumber(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("INSERT INTO subscriber_sequences").
		WithArgs("sub_1", 1, 9999).
		WillReturnRows(sqlmock.NewRows([]string{"seq_num"}).AddRow(42))

	seq, err := ds.NextSequenceNumber(context.Background(), "sub_1", 1, 9999)
	assert.NoError(t, err)
	assert.Equal(t, 42, seq)
}

func TestNextSequenceNumber_DefaultBounds(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	// Zero bounds fall back to 1..9999
	mock.ExpectQuery("INSERT INTO subscriber_sequences").
		WithArgs("sub_1", 1, 9999).
		WillReturnRows(sqlmock.NewRows([]string{"seq_num"}).AddRow(1))

	seq, err := ds.NextSequenceNumber(context.Background(), "sub_1", 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, 1, seq)
}
