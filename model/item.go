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

package model

import (
	"strings"
	"time"
)

// Content types an item can carry. Composite items reference other items
// through groups and are fanned out recursively.
const (
	ContentTypeText         = "text"
	ContentTypePreformatted = "preformatted"
	ContentTypePicture      = "picture"
	ContentTypeVideo        = "video"
	ContentTypeAudio        = "audio"
	ContentTypeComposite    = "composite"
)

// Lifecycle states of an item. The engine only reads these; the editorial
// subsystem owns the transitions between them.
const (
	StateDraft       = "draft"
	StatePublished   = "published"
	StateCorrected   = "corrected"
	StateKilled      = "killed"
	StateRecalled    = "recalled"
	StateUnpublished = "unpublished"
	StateScheduled   = "scheduled"
)

// Publishing actions that trigger fan-out.
const (
	ActionPublish  = "publish"
	ActionCorrect  = "correct"
	ActionKill     = "kill"
	ActionTakedown = "takedown"
	ActionResend   = "resend"
)

// RootGroup is the group id of a package's table of contents; its refs point
// at other groups, not at items.
const RootGroup = "root"

// Target is one entry of an item's type or region targeting list.
type Target struct {
	Qcode string `json:"qcode"`
	Allow bool   `json:"allow"`
}

// TargetSubscriber explicitly names a subscriber an item is directed at.
type TargetSubscriber struct {
	ID string `json:"_id"`
}

// Subject is a controlled vocabulary code attached to an item.
type Subject struct {
	Qcode string `json:"qcode"`
	Name  string `json:"name"`
}

// Ref is a reference from a package group to a child item.
type Ref struct {
	ResidRef string `json:"residref"`
	IDRef    string `json:"idref,omitempty"`
	Version  int    `json:"item_version,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Group is an ordered set of references within a composite item.
type Group struct {
	ID   string `json:"id"`
	Role string `json:"role,omitempty"`
	Refs []Ref  `json:"refs"`
}

// Item is an editorial content unit. The engine treats it as read-only input
// and tags delivery metadata onto copies only.
type Item struct {
	ItemID       string    `json:"item_id"`
	Version      int       `json:"version"`
	Type         string    `json:"type"`
	State        string    `json:"state"`
	Headline     string    `json:"headline,omitempty"`
	Slugline     string    `json:"slugline,omitempty"`
	UniqueName   string    `json:"unique_name,omitempty"`
	Source       string    `json:"source,omitempty"`
	Urgency      int       `json:"urgency,omitempty"`
	Priority     int       `json:"priority,omitempty"`
	Genre        string    `json:"genre,omitempty"`
	AnpaCategory string    `json:"anpa_category,omitempty"`
	Place        []Subject `json:"place,omitempty"`
	Subject      []Subject `json:"subject,omitempty"`

	RewriteOf          string `json:"rewrite_of,omitempty"`
	PublishedInPackage string `json:"published_in_package,omitempty"`

	TargetSubscribers []TargetSubscriber `json:"target_subscribers,omitempty"`
	TargetTypes       []Target           `json:"target_types,omitempty"`
	TargetRegions     []Target           `json:"target_regions,omitempty"`

	EmbargoedAt    *time.Time `json:"embargoed_at,omitempty"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	VersionCreated time.Time  `json:"versioncreated"`

	// Associations maps a named slot (e.g. "featuremedia") to a related item.
	Associations map[string]*Item `json:"associations,omitempty"`

	// Groups is set on composite items only.
	Groups []Group `json:"groups,omitempty"`

	Body string `json:"body_html,omitempty"`

	// Extra carries fields the engine does not model explicitly; the filter
	// evaluator falls back to it.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// IsComposite reports whether the item is a package.
func (i *Item) IsComposite() bool {
	return i.Type == ContentTypeComposite
}

// IsTextual reports whether the item is a plain text story. Wire subscribers
// receive textual stories only.
func (i *Item) IsTextual() bool {
	return i.Type == ContentTypeText || i.Type == ContentTypePreformatted
}

// IsTargeted reports whether the named targeting list carries any entries.
func (i *Item) IsTargeted(field string) bool {
	switch field {
	case "target_subscribers":
		return len(i.TargetSubscribers) > 0
	case "target_types":
		return len(i.TargetTypes) > 0
	case "target_regions":
		return len(i.TargetRegions) > 0
	}
	return false
}

// ResidRefs returns the item ids referenced by a composite item, in group
// order, skipping the root group's group-to-group links.
func (i *Item) ResidRefs() []string {
	var refs []string
	for _, group := range i.Groups {
		if group.ID == RootGroup {
			continue
		}
		for _, ref := range group.Refs {
			if ref.ResidRef != "" {
				refs = append(refs, ref.ResidRef)
			}
		}
	}
	return refs
}

// RemoveRef drops every reference to the given item id from the package
// groups and reports whether any refs are left.
func (i *Item) RemoveRef(itemID string) bool {
	remaining := 0
	for gi := range i.Groups {
		if i.Groups[gi].ID == RootGroup {
			continue
		}
		kept := i.Groups[gi].Refs[:0]
		for _, ref := range i.Groups[gi].Refs {
			if ref.ResidRef != itemID {
				kept = append(kept, ref)
			}
		}
		i.Groups[gi].Refs = kept
		remaining += len(kept)
	}
	return remaining > 0
}

// FieldValue resolves an item field by its filter-condition name. Collection
// fields resolve to a list of codes; unknown names fall back to Extra.
func (i *Item) FieldValue(field string) (interface{}, bool) {
	switch strings.ToLower(field) {
	case "type":
		return i.Type, true
	case "state":
		return i.State, true
	case "headline":
		return i.Headline, true
	case "slugline":
		return i.Slugline, true
	case "source":
		return i.Source, true
	case "body_html":
		return i.Body, true
	case "urgency":
		return i.Urgency, i.Urgency != 0
	case "priority":
		return i.Priority, i.Priority != 0
	case "genre":
		return i.Genre, i.Genre != ""
	case "anpa_category":
		return i.AnpaCategory, i.AnpaCategory != ""
	case "subject":
		return subjectCodes(i.Subject), len(i.Subject) > 0
	case "place":
		return subjectCodes(i.Place), len(i.Place) > 0
	}
	if i.Extra != nil {
		v, ok := i.Extra[field]
		return v, ok
	}
	return nil, false
}

func subjectCodes(subjects []Subject) []string {
	codes := make([]string, 0, len(subjects))
	for _, s := range subjects {
		codes = append(codes, s.Qcode)
	}
	return codes
}

// Copy returns a deep enough copy of the item for fan-out mutation: groups
// and refs are cloned so removing refs per subscriber never touches the
// caller's item.
func (i *Item) Copy() *Item {
	clone := *i
	if i.Groups != nil {
		clone.Groups = make([]Group, len(i.Groups))
		for gi, group := range i.Groups {
			clone.Groups[gi] = group
			clone.Groups[gi].Refs = append([]Ref(nil), group.Refs...)
		}
	}
	if i.Associations != nil {
		clone.Associations = make(map[string]*Item, len(i.Associations))
		for k, v := range i.Associations {
			clone.Associations[k] = v
		}
	}
	return &clone
}
