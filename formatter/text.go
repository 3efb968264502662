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
	"regexp"
	"strings"

	"github.com/presslane/newswire/model"
)

// TextFormatter renders plain text wire copy: a headline line, the routing
// codes, then the body with markup stripped. Only textual items qualify.
type TextFormatter struct{}

var (
	tagPattern   = regexp.MustCompile(`<[^>]+>`)
	paraPattern  = regexp.MustCompile(`(?i)</p>|<br\s*/?>`)
	spacePattern = regexp.MustCompile(`[ \t]+`)
)

func (f *TextFormatter) Name() string { return "text" }

func (f *TextFormatter) FileExtension() string { return "txt" }

func (f *TextFormatter) CanFormat(item *model.Item) bool {
	return item != nil && item.IsTextual()
}

func (f *TextFormatter) Format(item *model.Item, _ *model.Subscriber, codes []string) ([]byte, error) {
	var b strings.Builder
	b.WriteString(item.Headline)
	b.WriteString("\n")
	if len(codes) > 0 {
		b.WriteString(strings.Join(codes, " "))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(stripMarkup(item.Body))
	b.WriteString("\n")
	return []byte(b.String()), nil
}

func stripMarkup(body string) string {
	text := paraPattern.ReplaceAllString(body, "\n")
	text = tagPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = spacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
