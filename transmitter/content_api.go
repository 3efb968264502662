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

	"github.com/presslane/newswire/config"
	"github.com/presslane/newswire/model"
)

// ContentAPITransmitter pushes the payload into the shared content API, the
// read side self-serve subscribers consume from. The endpoint comes from the
// engine configuration, not from the destination.
type ContentAPITransmitter struct {
	Client *http.Client
}

func (t *ContentAPITransmitter) Transmit(ctx context.Context, entry *model.QueueItem, payload []byte) error {
	conf, err := config.Fetch()
	if err != nil {
		return Terminal(ErrCodeContentAPI, err)
	}
	if conf.ContentAPI.Url == "" {
		return Terminal(ErrCodeContentAPI, errors.New("content api url is not configured"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conf.ContentAPI.Url, bytes.NewReader(payload))
	if err != nil {
		return Terminal(ErrCodeContentAPI, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-subscriber-id", entry.SubscriberID)
	for key, value := range conf.ContentAPI.Headers {
		req.Header.Set(key, value)
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Retryable(ErrCodeContentAPI, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Retryable(ErrCodeContentAPI, errors.Errorf("content api returned status %d", resp.StatusCode))
	}
	return nil
}
