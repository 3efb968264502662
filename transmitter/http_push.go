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
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/presslane/newswire/model"
)

// HTTPPushTransmitter POSTs the payload to the destination's resource URL.
// Destination config keys: resource_url, secret_token. A client-class
// response (4xx) is terminal: resending the same payload cannot succeed.
type HTTPPushTransmitter struct {
	Client *http.Client
}

func (t *HTTPPushTransmitter) Transmit(ctx context.Context, entry *model.QueueItem, payload []byte) error {
	resourceURL := entry.Destination.ConfigString("resource_url")
	if resourceURL == "" {
		return Terminal(ErrCodeHTTPPush, errors.New("http_push destination has no resource_url"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resourceURL, bytes.NewReader(payload))
	if err != nil {
		return Terminal(ErrCodeHTTPPush, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := entry.Destination.ConfigString("secret_token"); token != "" {
		req.Header.Set("x-newswire-token", token)
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Retryable(ErrCodeHTTPPush, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Terminal(ErrCodeHTTPPushClient, errors.Errorf("push to %s rejected with status %d", resourceURL, resp.StatusCode))
	default:
		return Retryable(ErrCodeHTTPPush, errors.Errorf("push to %s failed with status %d", resourceURL, resp.StatusCode))
	}
}
