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

// Package formatter renders published items into the wire formats
// destinations ask for. Formatters register themselves by name; the queue
// writer looks them up per destination.
package formatter

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/presslane/newswire/model"
)

// Formatter renders one item for one subscriber destination.
type Formatter interface {
	// Name is the format identifier destinations reference.
	Name() string
	// FileExtension is used by file based transports when naming the
	// published artifact.
	FileExtension() string
	// CanFormat reports whether this formatter can render the item.
	CanFormat(item *model.Item) bool
	// Format renders the item. The codes are the routing codes resolved for
	// the receiving subscriber.
	Format(item *model.Item, subscriber *model.Subscriber, codes []string) ([]byte, error)
}

var (
	mu       sync.RWMutex
	registry = map[string]Formatter{}
)

// Register adds a formatter under its name. Later registrations replace
// earlier ones, which lets deployments override the built-ins.
func Register(f Formatter) {
	mu.Lock()
	defer mu.Unlock()
	registry[f.Name()] = f
}

// Get returns the formatter registered under the given name.
func Get(name string) (Formatter, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("no formatter registered for format %s", name)
	}
	return f, nil
}

// Names lists the registered format names.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

func init() {
	Register(&NinJSFormatter{})
	Register(&TextFormatter{})
}
