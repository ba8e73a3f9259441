/*
LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean)

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
)

// TimeStore tracks the last time a notification of a given kind was
// sent, so repeated soft errors of the same kind don't flood the
// recipient. Optional; a nil store sends every notification.
type TimeStore interface {
	Set(kind string, t time.Time) error   // Set the time a kind was last sent.
	Get(kind string) (time.Time, error) // Get the time a kind was last sent.
}

// Option is a functional option supplied to New.
type Option func(*Notifier)

// WithStore applies a TimeStore for notification de-duplication.
func WithStore(store TimeStore) Option {
	return func(n *Notifier) { n.store = store }
}

// WithMinInterval sets the minimum interval between two notifications
// of the same kind when a TimeStore is configured. Default 0 (always
// sendable).
func WithMinInterval(d time.Duration) Option {
	return func(n *Notifier) { n.minInterval = d }
}

// Notifier composes and sends SMTP messages, matching spec.md §6/§7's
// "SMTP (STARTTLS, auth)" external interface exactly: server, port,
// from address, password, recipient and subject are all explicit
// configuration, not a third-party transactional-email API.
type Notifier struct {
	mutex sync.Mutex // Lock access.

	Server   string
	Port     int
	From     string
	Password string
	To       string
	Subject  string

	log         logging.Logger
	store       TimeStore
	minInterval time.Duration
}

// New returns a Notifier. An empty To means "no recipient configured",
// which makes Notify degrade to logging only (spec.md §7).
func New(server string, port int, from, password, to, subject string, log logging.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		Server:   server,
		Port:     port,
		From:     from,
		Password: password,
		To:       to,
		Subject:  subject,
		log:      log,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends message as an SMTP mail with the given kind used both as
// the TimeStore de-duplication key and appended to the subject line.
// If To is empty, or the SMTP transport fails (socket error, auth
// failure), Notify degrades to logging at error level and returns nil:
// transport failure is itself a soft error (spec.md §7 kind f).
func (n *Notifier) Notify(ctx context.Context, kind, message string) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if n.To == "" {
		n.logOnly(kind, message)
		return nil
	}

	if n.store != nil {
		sendable, err := n.sendable(kind)
		if err != nil && n.log != nil {
			n.log.Warning("could not check notification time store", "error", err)
		}
		if !sendable {
			if n.log != nil {
				n.log.Debug("suppressing repeat notification", "kind", kind)
			}
			return nil
		}
	}

	if err := n.send(kind, message); err != nil {
		if n.log != nil {
			n.log.Error("could not send notification, degrading to log", "kind", kind, "error", err)
		}
		n.logOnly(kind, message)
		return nil
	}

	if n.store != nil {
		if err := n.store.Set(kind, time.Now()); err != nil && n.log != nil {
			n.log.Warning("could not record notification time", "error", err)
		}
	}
	return nil
}

func (n *Notifier) sendable(kind string) (bool, error) {
	t, err := n.store.Get(kind)
	if err != nil {
		return true, err
	}
	return time.Since(t) >= n.minInterval, nil
}

func (n *Notifier) logOnly(kind, message string) {
	if n.log != nil {
		n.log.Error("notification", "kind", kind, "message", message)
	}
}

func (n *Notifier) send(kind, message string) error {
	addr := fmt.Sprintf("%s:%d", n.Server, n.Port)
	auth := smtp.PlainAuth("", n.From, n.Password, n.Server)

	subject := n.Subject
	if subject == "" {
		subject = "playout notification"
	}
	subject = strings.TrimSpace(subject + " - " + kind)

	body := fmt.Sprintf("Date: %s\r\nFrom: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		time.Now().Format(time.RFC1123Z), n.From, n.To, subject, message)

	client, err := smtp.Dial(addr)
	if err != nil {
		return errors.Wrapf(err, "could not dial smtp server %s", addr)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: n.Server}); err != nil {
			return errors.Wrap(err, "could not start tls")
		}
	}

	if err := client.Auth(auth); err != nil {
		return errors.Wrap(err, "could not authenticate")
	}
	if err := client.Mail(n.From); err != nil {
		return errors.Wrap(err, "could not set sender")
	}
	if err := client.Rcpt(n.To); err != nil {
		return errors.Wrap(err, "could not set recipient")
	}
	w, err := client.Data()
	if err != nil {
		return errors.Wrap(err, "could not open data writer")
	}
	if _, err := w.Write([]byte(body)); err != nil {
		return errors.Wrap(err, "could not write message body")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "could not close data writer")
	}
	return client.Quit()
}
