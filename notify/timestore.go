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
	"sync"
	"time"
)

// memStore implements TimeStore in-process, sufficient for a single
// playout daemon instance where notification de-duplication does not
// need to survive a restart.
type memStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemStore returns a TimeStore backed by an in-memory map.
func NewMemStore() TimeStore {
	return &memStore{seen: make(map[string]time.Time)}
}

func (s *memStore) Get(kind string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[kind], nil
}

func (s *memStore) Set(kind string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[kind] = t
	return nil
}
