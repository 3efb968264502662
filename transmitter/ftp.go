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
	"fmt"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/pkg/errors"

	"github.com/presslane/newswire/model"
)

// FTPTransmitter uploads the payload to a destination FTP server. Destination
// config keys: host, port, username, password, path, passive, extension.
type FTPTransmitter struct {
	// DialFunc is swapped in tests.
	DialFunc func(addr string, options ...ftp.DialOption) (*ftp.ServerConn, error)
}

func (t *FTPTransmitter) Transmit(ctx context.Context, entry *model.QueueItem, payload []byte) error {
	host := entry.Destination.ConfigString("host")
	if host == "" {
		return Terminal(ErrCodeFTP, errors.New("ftp destination has no host"))
	}
	port := entry.Destination.ConfigString("port")
	if port == "" {
		port = "21"
	}

	dial := t.DialFunc
	if dial == nil {
		dial = ftp.Dial
	}

	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(30 * time.Second),
	}
	if !entry.Destination.ConfigBool("passive") {
		opts = append(opts, ftp.DialWithDisabledEPSV(true))
	}

	conn, err := dial(fmt.Sprintf("%s:%s", host, port), opts...)
	if err != nil {
		return Retryable(ErrCodeFTP, err)
	}
	defer func() {
		_ = conn.Quit()
	}()

	username := entry.Destination.ConfigString("username")
	if username != "" {
		if err := conn.Login(username, entry.Destination.ConfigString("password")); err != nil {
			return Terminal(ErrCodeFTP, errors.Wrap(err, "ftp login failed"))
		}
	}

	if path := entry.Destination.ConfigString("path"); path != "" {
		if err := conn.ChangeDir(path); err != nil {
			return Terminal(ErrCodeFTP, errors.Wrapf(err, "ftp path %s unavailable", path))
		}
	}

	name := PublishFileName(entry, entry.Destination.ConfigString("extension"))
	if err := conn.Stor(name, bytes.NewReader(payload)); err != nil {
		return Retryable(ErrCodeFTP, errors.Wrapf(err, "ftp upload of %s failed", name))
	}
	return nil
}
