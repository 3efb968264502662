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
	"time"

	"github.com/presslane/newswire/model"
)

// NinJSFormatter renders items as ninjs, the JSON news exchange format most
// digital destinations consume.
type NinJSFormatter struct{}

type ninjsSubject struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

type ninjsAssociation struct {
	GUID     string `json:"guid"`
	Type     string `json:"type"`
	Headline string `json:"headline,omitempty"`
	Version  string `json:"version,omitempty"`
}

type ninjsDoc struct {
	GUID               string                      `json:"guid"`
	Version            string                      `json:"version"`
	Type               string                      `json:"type"`
	Headline           string                      `json:"headline,omitempty"`
	Slugline           string                      `json:"slugline,omitempty"`
	Source             string                      `json:"source,omitempty"`
	Urgency            int                         `json:"urgency,omitempty"`
	Priority           int                         `json:"priority,omitempty"`
	PubStatus          string                      `json:"pubstatus"`
	VersionCreated     string                      `json:"versioncreated"`
	Subject            []ninjsSubject              `json:"subject,omitempty"`
	Place              []ninjsSubject              `json:"place,omitempty"`
	BodyHTML           string                      `json:"body_html,omitempty"`
	Associations       map[string]ninjsAssociation `json:"associations,omitempty"`
	Products           []string                    `json:"products,omitempty"`
	EmbargoedUntil     string                      `json:"embargoed,omitempty"`
	EvolvedFrom        string                      `json:"evolvedfrom,omitempty"`
	PublishedInPackage string                      `json:"published_in_package,omitempty"`
}

func (f *NinJSFormatter) Name() string { return "ninjs" }

func (f *NinJSFormatter) FileExtension() string { return "json" }

func (f *NinJSFormatter) CanFormat(item *model.Item) bool {
	return item != nil
}

func (f *NinJSFormatter) Format(item *model.Item, _ *model.Subscriber, codes []string) ([]byte, error) {
	doc := ninjsDoc{
		GUID:               item.ItemID,
		Version:            versionString(item.Version),
		Type:               item.Type,
		Headline:           item.Headline,
		Slugline:           item.Slugline,
		Source:             item.Source,
		Urgency:            item.Urgency,
		Priority:           item.Priority,
		PubStatus:          pubStatus(item.State),
		VersionCreated:     item.VersionCreated.UTC().Format(time.RFC3339),
		Subject:            ninjsSubjects(item.Subject),
		Place:              ninjsSubjects(item.Place),
		BodyHTML:           item.Body,
		Products:           codes,
		EvolvedFrom:        item.RewriteOf,
		PublishedInPackage: item.PublishedInPackage,
	}
	if item.EmbargoedAt != nil {
		doc.EmbargoedUntil = item.EmbargoedAt.UTC().Format(time.RFC3339)
	}
	if len(item.Associations) > 0 {
		doc.Associations = make(map[string]ninjsAssociation, len(item.Associations))
		for slot, assoc := range item.Associations {
			if assoc == nil {
				continue
			}
			doc.Associations[slot] = ninjsAssociation{
				GUID:     assoc.ItemID,
				Type:     assoc.Type,
				Headline: assoc.Headline,
				Version:  versionString(assoc.Version),
			}
		}
	}
	return json.Marshal(doc)
}

func ninjsSubjects(subjects []model.Subject) []ninjsSubject {
	if len(subjects) == 0 {
		return nil
	}
	out := make([]ninjsSubject, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, ninjsSubject{Code: s.Qcode, Name: s.Name})
	}
	return out
}

// pubStatus maps an editorial state to the ninjs pubstatus vocabulary.
func pubStatus(state string) string {
	switch state {
	case model.StateKilled, model.StateRecalled:
		return "canceled"
	case model.StateUnpublished:
		return "withheld"
	default:
		return "usable"
	}
}

func versionString(v int) string {
	b, _ := json.Marshal(v)
	return string(b)
}
