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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pastTime() time.Time { return time.Now().Add(-time.Hour) }

const (
	kind    = "test"
	message = "This is a test."
)

// TestNotifyWithoutRecipientLogsOnly verifies that an unconfigured
// recipient degrades Notify to logging only, without error, per
// spec.md §7.
func TestNotifyWithoutRecipientLogsOnly(t *testing.T) {
	n := New("", 0, "", "", "", "", nil)
	err := n.Notify(context.Background(), kind, message)
	require.NoError(t, err)
}

// TestNotifyTransportFailureDegradesToLog verifies that an unreachable
// SMTP server downgrades to logging rather than returning an error
// (spec.md §7 kind f).
func TestNotifyTransportFailureDegradesToLog(t *testing.T) {
	n := New("127.0.0.1", 1, "from@example.com", "pw", "to@example.com", "subj", nil)
	err := n.Notify(context.Background(), kind, message)
	assert.NoError(t, err)
}

// TestMemStoreDeduplicates verifies the in-memory TimeStore suppresses
// a repeat notification of the same kind inside the configured
// interval, and allows it again once the interval elapses.
func TestMemStoreDeduplicates(t *testing.T) {
	store := NewMemStore()
	assert.NoError(t, store.Set(kind, pastTime()))
	t1, err := store.Get(kind)
	require.NoError(t, err)
	assert.False(t, t1.IsZero())

	// Last sent an hour ago: suppressed under a two-hour interval.
	n := New("", 0, "", "", "to@example.com", "", nil, WithStore(store), WithMinInterval(2*time.Hour))
	sendable, err := n.sendable(kind)
	require.NoError(t, err)
	assert.False(t, sendable)

	// Allowed again once the interval has elapsed.
	n.minInterval = 30 * time.Minute
	sendable, err = n.sendable(kind)
	require.NoError(t, err)
	assert.True(t, sendable)
}

