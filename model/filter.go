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
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Filter condition operators.
const (
	OperatorIn         = "in"
	OperatorNotIn      = "nin"
	OperatorEq         = "eq"
	OperatorNe         = "ne"
	OperatorGt         = "gt"
	OperatorGte        = "gte"
	OperatorLt         = "lt"
	OperatorLte        = "lte"
	OperatorLike       = "like"
	OperatorNotLike    = "notlike"
	OperatorStartsWith = "startswith"
	OperatorEndsWith   = "endswith"
	OperatorMatch      = "match"
)

// Filter types. A permitting filter accepts an item on match; a blocking
// filter rejects it. Global filters always behave as blocking.
const (
	FilterTypePermitting = "permitting"
	FilterTypeBlocking   = "blocking"
)

// FilterCondition is a single field test. Value holds a comma separated list
// for membership operators and a scalar for the rest.
type FilterCondition struct {
	ConditionID string    `json:"condition_id"`
	Name        string    `json:"name"`
	Field       string    `json:"field"`
	Operator    string    `json:"operator"`
	Value       string    `json:"value"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FilterStatement is one OR branch of a content filter: every referenced
// condition and nested filter must match for the statement to match.
type FilterStatement struct {
	ConditionIDs []string `json:"fc,omitempty"`
	FilterIDs    []string `json:"pf,omitempty"`
}

// ContentFilter is a boolean expression tree over item fields. Statements are
// OR'd together; the references inside one statement are AND'd.
type ContentFilter struct {
	FilterID   string            `json:"filter_id"`
	Name       string            `json:"name"`
	IsGlobal   bool              `json:"is_global"`
	Statements []FilterStatement `json:"content_filter"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Matches evaluates the condition against the given item. Comparisons are
// case insensitive, mirroring how editorial vocabularies are matched.
func (fc *FilterCondition) Matches(item *Item) bool {
	raw, ok := item.FieldValue(fc.Field)
	if !ok {
		return false
	}

	switch fc.Operator {
	case OperatorIn:
		return anyValueIn(raw, fc.valueList())
	case OperatorNotIn:
		return !anyValueIn(raw, fc.valueList())
	case OperatorEq:
		return compare(raw, fc.Value, func(c int) bool { return c == 0 })
	case OperatorNe:
		return compare(raw, fc.Value, func(c int) bool { return c != 0 })
	case OperatorGt:
		return compare(raw, fc.Value, func(c int) bool { return c > 0 })
	case OperatorGte:
		return compare(raw, fc.Value, func(c int) bool { return c >= 0 })
	case OperatorLt:
		return compare(raw, fc.Value, func(c int) bool { return c < 0 })
	case OperatorLte:
		return compare(raw, fc.Value, func(c int) bool { return c <= 0 })
	case OperatorLike, OperatorMatch:
		return strings.Contains(lower(raw), strings.ToLower(fc.Value))
	case OperatorNotLike:
		return !strings.Contains(lower(raw), strings.ToLower(fc.Value))
	case OperatorStartsWith:
		return strings.HasPrefix(lower(raw), strings.ToLower(fc.Value))
	case OperatorEndsWith:
		return strings.HasSuffix(lower(raw), strings.ToLower(fc.Value))
	}
	return false
}

func (fc *FilterCondition) valueList() []string {
	values := SplitCodes(fc.Value)
	for i := range values {
		values[i] = strings.ToLower(values[i])
	}
	return values
}

func anyValueIn(raw interface{}, values []string) bool {
	switch v := raw.(type) {
	case []string:
		for _, elem := range v {
			if contains(values, strings.ToLower(elem)) {
				return true
			}
		}
		return false
	default:
		return contains(values, lower(raw))
	}
}

func contains(values []string, needle string) bool {
	for _, v := range values {
		if v == needle {
			return true
		}
	}
	return false
}

func lower(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return strings.ToLower(v)
	case []string:
		return strings.ToLower(strings.Join(v, ","))
	default:
		return strings.ToLower(fmt.Sprintf("%v", v))
	}
}

// compare applies an ordered comparison, numerically when both sides parse as
// numbers and lexically otherwise.
func compare(raw interface{}, filterValue string, test func(int) bool) bool {
	articleValue := lower(raw)
	filterValue = strings.ToLower(filterValue)

	av, aerr := strconv.ParseFloat(articleValue, 64)
	fv, ferr := strconv.ParseFloat(filterValue, 64)
	if aerr == nil && ferr == nil {
		switch {
		case av < fv:
			return test(-1)
		case av > fv:
			return test(1)
		default:
			return test(0)
		}
	}
	return test(strings.Compare(articleValue, filterValue))
}
