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

// Package playlist locates, loads and caches a day's JSON playlist, and
// spawns a best-effort background validator on every reload.
package playlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
)

// ClipNode is a single playlist entry.
type ClipNode struct {
	Source   string  `json:"source"`
	In       float64 `json:"in"`
	Out      float64 `json:"out"`
	Duration float64 `json:"duration"`
}

// rawPlaylist mirrors the on-disk JSON schema (spec.md §6).
type rawPlaylist struct {
	Begin   string     `json:"begin,omitempty"`
	Length  string     `json:"length,omitempty"`
	Program []ClipNode `json:"program"`
}

// Playlist is a parsed day's program.
type Playlist struct {
	HasBegin  bool
	Begin     float64 // Seconds-of-day, valid only if HasBegin.
	HasLength bool
	Length    float64 // Seconds, valid only if HasLength.
	Program   []ClipNode
}

// ErrNotFound is returned by Store.Load when no playlist file exists for
// the requested date.
var ErrNotFound = errors.New("playlist not found")

// Remap is an optional source-extension substring substitution applied
// to every node's source before any filesystem or probe check, so a
// single playlist can be served by sources with differing extensions
// in different environments (spec.md §4.2).
type Remap struct {
	From, To string
}

func (r Remap) apply(source string) string {
	if r.From == "" {
		return source
	}
	return strings.ReplaceAll(source, r.From, r.To)
}

// Store locates and loads a day's playlist by date, caches it by mtime,
// and triggers an async Validator on every reload.
type Store struct {
	Root  string // Playlist root directory.
	Remap Remap

	log       logging.Logger
	validator *Validator

	mu          sync.Mutex
	cachedDate  string
	cachedMTime time.Time
	cached      *Playlist
}

// NewStore returns a Store rooted at root, using log for diagnostics and
// validator for asynchronous playlist validation.
func NewStore(root string, remap Remap, log logging.Logger, validator *Validator) *Store {
	return &Store{Root: root, Remap: remap, log: log, validator: validator}
}

// PathFor returns the on-disk path for the playlist of the given date,
// following the <root>/<YYYY>/<MM>/<YYYY-MM-DD>.json layout.
func (s *Store) PathFor(date time.Time) string {
	return filepath.Join(
		s.Root,
		fmt.Sprintf("%04d", date.Year()),
		fmt.Sprintf("%02d", date.Month()),
		date.Format("2006-01-02")+".json",
	)
}

// ResetCache forces the next Load to reparse, regardless of mtime. The
// Scheduler calls this after forcing a reload across a day rollover
// (spec.md §4.3 step 4).
func (s *Store) ResetCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachedMTime = time.Time{}
}

// Load returns the Playlist for date, reparsing only if the file's
// mtime has advanced since the last Load for that date (spec.md §8 law
// 6, idempotent reload).
func (s *Store) Load(date time.Time) (*Playlist, error) {
	path := s.PathFor(date)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "could not stat playlist %s", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dateKey := date.Format("2006-01-02")
	if dateKey == s.cachedDate && !info.ModTime().After(s.cachedMTime) && s.cached != nil {
		return s.cached, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read playlist %s", path)
	}

	var raw rawPlaylist
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "could not parse playlist %s", path)
	}

	for i := range raw.Program {
		raw.Program[i].Source = s.Remap.apply(raw.Program[i].Source)
	}

	pl := &Playlist{Program: raw.Program}
	if raw.Begin != "" {
		if secs, ok := parseHMS(raw.Begin); ok {
			pl.HasBegin = true
			pl.Begin = secs
		}
	}
	if raw.Length != "" {
		if secs, ok := parseHMS(raw.Length); ok {
			pl.HasLength = true
			pl.Length = secs
		}
	}

	s.cached = pl
	s.cachedDate = dateKey
	s.cachedMTime = info.ModTime()

	if s.log != nil {
		s.log.Info("loaded playlist", "path", path)
	}
	if s.validator != nil {
		s.validator.Validate(pl, path)
	}

	return pl, nil
}

// parseHMS parses an "HH:MM:SS" time-of-day string into seconds,
// returning ok=false if any component fails to parse as a float, which
// the spec treats identically to the field being absent.
func parseHMS(s string) (float64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	var total float64
	mult := [3]float64{3600, 60, 1}
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, false
		}
		total += v * mult[i]
	}
	return total, true
}
