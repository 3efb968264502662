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
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"

	"github.com/presslane/newswire/model"
)

// EmailTransmitter mails the payload to the destination's recipient list.
// Destination config keys: smtp_server, smtp_port, username, password, from,
// recipients (comma separated), html.
type EmailTransmitter struct {
	// SendFunc is swapped in tests.
	SendFunc func(d *gomail.Dialer, m *gomail.Message) error
}

func (t *EmailTransmitter) Transmit(_ context.Context, entry *model.QueueItem, payload []byte) error {
	server := entry.Destination.ConfigString("smtp_server")
	if server == "" {
		return Terminal(ErrCodeEmail, errors.New("email destination has no smtp_server"))
	}
	recipients := splitRecipients(entry.Destination.ConfigString("recipients"))
	if len(recipients) == 0 {
		return Terminal(ErrCodeEmail, errors.New("email destination has no recipients"))
	}

	port := 587
	if p := entry.Destination.ConfigString("smtp_port"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			return Terminal(ErrCodeEmail, errors.Wrapf(err, "invalid smtp_port %q", p))
		}
		port = parsed
	}

	from := entry.Destination.ConfigString("from")
	if from == "" {
		from = "newswire@localhost"
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", subjectLine(entry))
	if entry.Destination.ConfigBool("html") {
		m.SetBody("text/html", string(payload))
	} else {
		m.SetBody("text/plain", string(payload))
	}

	d := gomail.NewDialer(server, port,
		entry.Destination.ConfigString("username"),
		entry.Destination.ConfigString("password"))

	send := t.SendFunc
	if send == nil {
		send = func(d *gomail.Dialer, m *gomail.Message) error {
			return d.DialAndSend(m)
		}
	}
	if err := send(d, m); err != nil {
		return Retryable(ErrCodeEmail, err)
	}
	return nil
}

func subjectLine(entry *model.QueueItem) string {
	if entry.Headline != "" {
		return entry.Headline
	}
	return entry.ItemID
}

func splitRecipients(recipients string) []string {
	var out []string
	for _, r := range strings.Split(recipients, ",") {
		r = strings.TrimSpace(r)
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}
