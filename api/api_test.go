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

package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/presslane/newswire"
	"github.com/presslane/newswire/config"
	"github.com/presslane/newswire/database/mocks"
	"github.com/presslane/newswire/internal/blobstore"
	"github.com/presslane/newswire/model"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	if s.Response != nil {
		err := json.NewDecoder(resp.Body).Decode(&s.Response)
		if err != nil {
			return resp, err
		}
	}
	return resp, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *mocks.MockDataSource) {
	t.Helper()
	enabled := true
	config.MockConfig(&config.Configuration{
		ProjectName: "Newswire Test",
		Delivery: config.DeliveryConfig{
			MaxRetryAttempts:        4,
			RetryDelaySeconds:       180,
			RetryDelayCapSeconds:    3600,
			ExponentialBackoff:      &enabled,
			MaxPackageDepth:         5,
			InlinePayloadLimitBytes: 256 * 1024,
			WarnOnUnqueued:          true,
		},
	})

	ds := &mocks.MockDataSource{}
	engine := newswire.NewWithStores(ds, nil, blobstore.NewMemoryStore(), nil)
	return NewAPI(engine).Router(), ds
}

func validSubscriberBody() map[string]interface{} {
	return map[string]interface{}{
		"name":            gofakeit.Company(),
		"subscriber_type": model.SubscriberTypeAll,
		"codes":           "prm",
		"products":        []string{"prd_news"},
		"destinations": []map[string]interface{}{
			{"name": "main", "format": "ninjs", "delivery_type": model.DeliveryTypeHTTPPush},
		},
	}
}

func TestCreateSubscriberAPI(t *testing.T) {
	router, ds := setupRouter(t)

	ds.On("CreateSubscriber", mock.Anything, mock.Anything).Return(model.Subscriber{
		SubscriberID: "sub_" + gofakeit.UUID(),
		IsActive:     true,
		CreatedAt:    time.Now(),
	}, nil)

	payload, _ := json.Marshal(validSubscriberBody())
	var response model.Subscriber
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  bytes.NewBuffer(payload),
		Router:   router,
		Response: &response,
		Method:   "POST",
		Route:    "/subscribers",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.NotEmpty(t, response.SubscriberID)
}

func TestCreateSubscriberAPI_ValidationErrors(t *testing.T) {
	router, ds := setupRouter(t)

	body := validSubscriberBody()
	body["destinations"] = []map[string]interface{}{
		{"name": "main", "format": "ninjs", "delivery_type": "carrier-pigeon"},
	}
	payload, _ := json.Marshal(body)

	resp, err := SetUpTestRequest(TestRequest{
		Payload: bytes.NewBuffer(payload),
		Router:  router,
		Method:  "POST",
		Route:   "/subscribers",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	ds.AssertNotCalled(t, "CreateSubscriber", mock.Anything, mock.Anything)
}

func TestGetSubscriberAPI_NotFound(t *testing.T) {
	router, ds := setupRouter(t)
	ds.On("GetSubscriberByID", mock.Anything, "sub_missing").Return(nil, nil)

	resp, err := SetUpTestRequest(TestRequest{
		Router: router,
		Method: "GET",
		Route:  "/subscribers/sub_missing",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCreateProductAPI_RequiresValidFilterRef(t *testing.T) {
	router, ds := setupRouter(t)

	payload, _ := json.Marshal(map[string]interface{}{
		"name":           gofakeit.ProductName(),
		"content_filter": map[string]string{"filter_id": "flt_1", "filter_type": "sideways"},
	})
	resp, err := SetUpTestRequest(TestRequest{
		Payload: bytes.NewBuffer(payload),
		Router:  router,
		Method:  "POST",
		Route:   "/products",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	ds.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
}

func TestPublishAPI(t *testing.T) {
	router, ds := setupRouter(t)

	ds.On("FiltersLastModified", mock.Anything).Return(time.Now(), nil)
	ds.On("GetAllContentFilters", mock.Anything).Return([]model.ContentFilter{}, nil)
	ds.On("GetAllFilterConditions", mock.Anything).Return([]model.FilterCondition{}, nil)
	ds.On("GetActiveSubscribers", mock.Anything).Return([]model.Subscriber{}, nil)

	payload, _ := json.Marshal(map[string]interface{}{
		"action": model.ActionPublish,
		"item": map[string]interface{}{
			"item_id": "urn:newswire:story-1",
			"version": 1,
			"type":    model.ContentTypeText,
			"state":   model.StatePublished,
		},
	})
	var response newswire.PublishResult
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  bytes.NewBuffer(payload),
		Router:   router,
		Response: &response,
		Method:   "POST",
		Route:    "/publish",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Zero(t, response.Queued)
}

func TestPublishAPI_RejectsUnknownAction(t *testing.T) {
	router, _ := setupRouter(t)

	payload, _ := json.Marshal(map[string]interface{}{
		"action": "unpublish-ish",
		"item": map[string]interface{}{
			"item_id": "urn:newswire:story-1",
			"version": 1,
			"type":    model.ContentTypeText,
		},
	})
	resp, err := SetUpTestRequest(TestRequest{
		Payload: bytes.NewBuffer(payload),
		Router:  router,
		Method:  "POST",
		Route:   "/publish",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestResendAPI(t *testing.T) {
	router, ds := setupRouter(t)

	sub := model.Subscriber{
		SubscriberID:   "sub_1",
		SubscriberType: model.SubscriberTypeAll,
		IsActive:       true,
		Destinations: []model.Destination{
			{Name: "main", Format: "ninjs", DeliveryType: model.DeliveryTypeHTTPPush},
		},
	}
	ds.On("GetSubscribersByIDs", mock.Anything, []string{"sub_1"}).Return([]model.Subscriber{sub}, nil)
	ds.On("NextSequenceNumber", mock.Anything, "sub_1", 1, 9999).Return(3, nil)
	ds.On("EnqueueItem", mock.Anything, mock.Anything).Return(true, nil)

	payload, _ := json.Marshal(map[string]interface{}{
		"item": map[string]interface{}{
			"item_id": "urn:newswire:story-1",
			"version": 2,
			"type":    model.ContentTypeText,
			"state":   model.StatePublished,
		},
		"subscriber_ids": []string{"sub_1"},
	})
	var response newswire.PublishResult
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  bytes.NewBuffer(payload),
		Router:   router,
		Response: &response,
		Method:   "POST",
		Route:    "/resend",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, 1, response.Queued)
}

func TestResendAPI_RequiresSubscriberIDs(t *testing.T) {
	router, ds := setupRouter(t)

	payload, _ := json.Marshal(map[string]interface{}{
		"item": map[string]interface{}{
			"item_id": "urn:newswire:story-1",
			"version": 2,
			"type":    model.ContentTypeText,
		},
	})
	resp, err := SetUpTestRequest(TestRequest{
		Payload: bytes.NewBuffer(payload),
		Router:  router,
		Method:  "POST",
		Route:   "/resend",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	ds.AssertNotCalled(t, "GetSubscribersByIDs", mock.Anything, mock.Anything)
}

func TestResendQueueItemAPI(t *testing.T) {
	router, ds := setupRouter(t)

	clone := &model.QueueItem{QueueID: "dq_2", ItemID: "urn:newswire:story-1", State: model.StatePending}
	ds.On("RequeueItem", mock.Anything, "dq_1").Return(clone, nil)

	var response model.QueueItem
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &response,
		Method:   "POST",
		Route:    "/queue/dq_1/resend",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "dq_2", response.QueueID)
	assert.Equal(t, model.StatePending, response.State)
}

func TestCancelTransmissionsAPI(t *testing.T) {
	router, ds := setupRouter(t)
	ds.On("CancelTransmissions", mock.Anything, "urn:newswire:story-1").Return(int64(3), nil)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Response: &response,
		Method:   "POST",
		Route:    "/queue/items/urn:newswire:story-1/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, float64(3), response["canceled"])
}

func TestDeleteQueueItemsAPI_RemovesOffloadedPayloads(t *testing.T) {
	enabled := true
	config.MockConfig(&config.Configuration{
		ProjectName: "Newswire Test",
		Delivery:    config.DeliveryConfig{MaxRetryAttempts: 4, ExponentialBackoff: &enabled},
	})

	ds := &mocks.MockDataSource{}
	blobs := blobstore.NewMemoryStore()
	engine := newswire.NewWithStores(ds, nil, blobs, nil)
	router := NewAPI(engine).Router()

	ctx := httptest.NewRequest("GET", "/", nil).Context()
	require.NoError(t, blobs.Put(ctx, "blob-1", []byte("payload")))
	ds.On("DeleteQueueItemsByItem", mock.Anything, "urn:newswire:story-1").Return([]string{"blob-1"}, nil)

	resp, err := SetUpTestRequest(TestRequest{
		Router: router,
		Method: "DELETE",
		Route:  "/queue/items/urn:newswire:story-1",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)

	_, err = blobs.Get(ctx, "blob-1")
	assert.Error(t, err)
}

func TestTestContentFilterAPI(t *testing.T) {
	router, ds := setupRouter(t)

	conditions := []model.FilterCondition{
		{ConditionID: "fc_sports", Field: "subject", Operator: model.OperatorIn, Value: "15000000"},
	}
	ds.On("FiltersLastModified", mock.Anything).Return(time.Now(), nil)
	ds.On("GetAllContentFilters", mock.Anything).Return([]model.ContentFilter{}, nil)
	ds.On("GetAllFilterConditions", mock.Anything).Return(conditions, nil)

	payload, _ := json.Marshal(map[string]interface{}{
		"filter": map[string]interface{}{
			"name":           "sports preview",
			"content_filter": []map[string]interface{}{{"fc": []string{"fc_sports"}}},
		},
		"item": map[string]interface{}{
			"item_id": "urn:newswire:story-1",
			"version": 1,
			"type":    model.ContentTypeText,
			"subject": []map[string]string{{"qcode": "15000000"}},
		},
	})
	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  bytes.NewBuffer(payload),
		Router:   router,
		Response: &response,
		Method:   "POST",
		Route:    "/content-filters/test",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, true, response["matched"])
}
