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

package formatter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presslane/newswire/model"
)

func testItem() *model.Item {
	return &model.Item{
		ItemID:         "urn:newswire:story-1",
		Version:        3,
		Type:           model.ContentTypeText,
		State:          model.StatePublished,
		Headline:       "Market rallies on rate cut",
		Slugline:       "markets-rates",
		Source:         "NWR",
		Urgency:        3,
		Body:           "<p>Stocks rose sharply.</p><p>Bonds &amp; currencies followed.</p>",
		Subject:        []model.Subject{{Qcode: "04000000", Name: "economy"}},
		VersionCreated: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRegistryLookup(t *testing.T) {
	f, err := Get("ninjs")
	require.NoError(t, err)
	assert.Equal(t, "ninjs", f.Name())

	f, err = Get("text")
	require.NoError(t, err)
	assert.Equal(t, "txt", f.FileExtension())

	_, err = Get("newsml12")
	assert.Error(t, err)
}

func TestNinJSFormat(t *testing.T) {
	f := &NinJSFormatter{}
	item := testItem()

	payload, err := f.Format(item, nil, []string{"a1", "b2"})
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.Equal(t, "urn:newswire:story-1", doc["guid"])
	assert.Equal(t, "usable", doc["pubstatus"])
	assert.Equal(t, "2026-03-01T12:00:00Z", doc["versioncreated"])
	assert.Equal(t, []interface{}{"a1", "b2"}, doc["products"])
}

func TestNinJSFormat_KilledItem(t *testing.T) {
	f := &NinJSFormatter{}
	item := testItem()
	item.State = model.StateKilled

	payload, err := f.Format(item, nil, nil)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.Equal(t, "canceled", doc["pubstatus"])
}

func TestNinJSFormat_Associations(t *testing.T) {
	f := &NinJSFormatter{}
	item := testItem()
	item.Associations = map[string]*model.Item{
		"featuremedia": {ItemID: "urn:newswire:pic-1", Type: model.ContentTypePicture, Headline: "Trading floor"},
	}

	payload, err := f.Format(item, nil, nil)
	require.NoError(t, err)

	var doc struct {
		Associations map[string]struct {
			GUID string `json:"guid"`
			Type string `json:"type"`
		} `json:"associations"`
	}
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.Equal(t, "urn:newswire:pic-1", doc.Associations["featuremedia"].GUID)
	assert.Equal(t, "picture", doc.Associations["featuremedia"].Type)
}

func TestTextFormat(t *testing.T) {
	f := &TextFormatter{}
	item := testItem()

	payload, err := f.Format(item, nil, []string{"a1"})
	require.NoError(t, err)

	text := string(payload)
	assert.Contains(t, text, "Market rallies on rate cut\n")
	assert.Contains(t, text, "a1\n")
	assert.Contains(t, text, "Stocks rose sharply.")
	assert.Contains(t, text, "Bonds & currencies followed.")
	assert.NotContains(t, text, "<p>")
}

func TestTextFormat_RejectsNonTextual(t *testing.T) {
	f := &TextFormatter{}
	item := testItem()
	item.Type = model.ContentTypePicture

	assert.False(t, f.CanFormat(item))
}
