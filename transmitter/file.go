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
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/presslane/newswire/model"
)

// FileTransmitter drops the payload into a local directory, typically a
// mounted share a downstream system watches. Destination config keys:
// file_path, extension.
type FileTransmitter struct{}

func (t *FileTransmitter) Transmit(_ context.Context, entry *model.QueueItem, payload []byte) error {
	dir := entry.Destination.ConfigString("file_path")
	if dir == "" {
		return Terminal(ErrCodeFile, errors.New("file destination has no file_path"))
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Terminal(ErrCodeFile, errors.Errorf("file destination path %s is not a directory", dir))
	}

	name := PublishFileName(entry, entry.Destination.ConfigString("extension"))
	target := filepath.Join(dir, name)

	// Write to a temp name first so the watcher never sees a partial file.
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return Retryable(ErrCodeFile, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return Retryable(ErrCodeFile, err)
	}
	return nil
}
