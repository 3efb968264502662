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

package transmitter

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presslane/newswire/model"
)

func TestHTTPPushTransmit_Success(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://push.example.com/items",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "s3cret", req.Header.Get("x-newswire-token"))
			return httpmock.NewStringResponse(201, `{"ok":true}`), nil
		})

	entry := queueEntry(model.DeliveryTypeHTTPPush, map[string]interface{}{
		"resource_url": "https://push.example.com/items",
		"secret_token": "s3cret",
	})

	tr := &HTTPPushTransmitter{}
	err := tr.Transmit(context.Background(), entry, []byte(`{"guid":"urn:newswire:story-1"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestHTTPPushTransmit_ClientErrorIsTerminal(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://push.example.com/items",
		httpmock.NewStringResponder(403, "forbidden"))

	entry := queueEntry(model.DeliveryTypeHTTPPush, map[string]interface{}{
		"resource_url": "https://push.example.com/items",
	})

	tr := &HTTPPushTransmitter{}
	err := tr.Transmit(context.Background(), entry, []byte("{}"))
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, ErrCodeHTTPPushClient, ErrorCode(err))
}

func TestHTTPPushTransmit_ServerErrorIsRetryable(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://push.example.com/items",
		httpmock.NewStringResponder(503, "down"))

	entry := queueEntry(model.DeliveryTypeHTTPPush, map[string]interface{}{
		"resource_url": "https://push.example.com/items",
	})

	tr := &HTTPPushTransmitter{}
	err := tr.Transmit(context.Background(), entry, []byte("{}"))
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrCodeHTTPPush, ErrorCode(err))
}

func TestHTTPPushTransmit_MissingURL(t *testing.T) {
	entry := queueEntry(model.DeliveryTypeHTTPPush, nil)

	tr := &HTTPPushTransmitter{}
	err := tr.Transmit(context.Background(), entry, []byte("{}"))
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}
