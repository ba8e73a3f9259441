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

// Package config loads the typed configuration surface of the playout
// daemon (spec.md §6, §9 DESIGN NOTE "Re-architect as a Config value").
// There is no package-level mutable configuration state; a Config
// value is constructed once and passed explicitly into every
// component constructor.
package config

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Mail holds the SMTP notification configuration.
type Mail struct {
	Subject  string `json:"subject"`
	Server   string `json:"smtp_server"`
	Port     int    `json:"smtp_port"`
	Sender   string `json:"sender_addr"`
	Password string `json:"sender_pass"`
	Recip    string `json:"recipient"`
}

// Logging holds the log sink configuration.
type Logging struct {
	Path     string `json:"log_file"`
	Level    string `json:"log_level"` // One of debug, info, warning, error, fatal.
	MaxSize  int    `json:"log_max_size_mb"`
	MaxAge   int    `json:"log_max_age_days"`
	MaxFiles int    `json:"log_max_backups"`
}

// PreCompress holds the encoder/target configuration used to build the
// render command's encoder arguments in compress mode (spec.md §6).
type PreCompress struct {
	Width         int      `json:"width"`
	Height        int      `json:"height"`
	FPS           int      `json:"fps"`
	VideoBitrate  int      `json:"v_bitrate"`
	CopyMode      bool     `json:"copy_mode"`
	LiveProtocols []string `json:"live_protocols"`
	CopySettings  []string `json:"ffmpeg_copy_settings"`
}

// Aspect returns width/height as a float, for the -aspect argument.
func (p PreCompress) Aspect() float64 {
	if p.Height == 0 {
		return 0
	}
	return float64(p.Width) / float64(p.Height)
}

// EncoderTrailer returns the mode-dependent encoder/output arguments to
// append to every render subprocess just before its terminal output (spec.md
// §6): the configured ffmpeg_copy_settings verbatim in copy mode (original
// ffplayout.py's _pre_comp.copy_settings), or the literal MPEG-TS encode
// trailer built from Width/Height/FPS/VideoBitrate in compress mode
// (original ffplayout.py's ff_pre_settings, lines 760-772). bufsize is
// literally half the configured video bitrate, matching the original's
// v_bufsize=v_bitrate arithmetic.
func (p PreCompress) EncoderTrailer() []string {
	if p.CopyMode {
		return append([]string{}, p.CopySettings...)
	}
	bitrate := strconv.Itoa(p.VideoBitrate) + "k"
	bufsize := strconv.Itoa(p.VideoBitrate/2) + "k"
	return []string{
		"-s", strconv.Itoa(p.Width) + "x" + strconv.Itoa(p.Height),
		"-aspect", strconv.FormatFloat(p.Aspect(), 'f', -1, 64),
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(p.FPS),
		"-c:v", "mpeg2video",
		"-intra",
		"-b:v", bitrate,
		"-minrate", bitrate,
		"-maxrate", bitrate,
		"-bufsize", bufsize,
		"-c:a", "s302m",
		"-strict", "-2",
		"-ar", "48000",
		"-ac", "2",
		"-threads", "2",
		"-f", "mpegts",
	}
}

// Playlist holds the playlist-location and broadcast-day configuration.
type Playlist struct {
	Path      string `json:"playlist_path"`
	DayStart  int    `json:"day_start"`
	Filler    string `json:"filler_clip"`
	Blackclip string `json:"blackclip"`
	ShiftSec  int    `json:"time_shift_seconds"`
	MapFrom   string `json:"map_extension_from"`
	MapTo     string `json:"map_extension_to"`
}

// Buffer holds the jitter-buffer process configuration.
type Buffer struct {
	LengthSec float64  `json:"buffer_length"`
	Tolerance float64  `json:"buffer_tolerance"`
	CLI       string   `json:"buffer_cli"`
	Cmd       []string `json:"buffer_cmd"`
}

// Out holds the output/streamer process configuration.
type Out struct {
	Preview         bool     `json:"preview"`
	ServiceName     string   `json:"service_name"`
	ServiceProvider string   `json:"service_provider"`
	Addr            string   `json:"out_addr"`
	PostCompVideo   []string `json:"post_comp_video"`
	PostCompAudio   []string `json:"post_comp_audio"`
	PostCompExtra   []string `json:"post_comp_extra"`
	PostCompCopy    []string `json:"post_comp_copy"`
	Logo            string   `json:"logo"`
	LogoOverlayExpr string   `json:"logo_overlay_expr"`
}

// Config is the complete, typed configuration surface enumerated in
// spec.md §6.
type Config struct {
	Mail        Mail        `json:"mail"`
	Logging     Logging     `json:"logging"`
	PreCompress PreCompress `json:"pre_compress"`
	Playlist    Playlist    `json:"playlist"`
	Buffer      Buffer      `json:"buffer"`
	Out         Out         `json:"out"`
}

// Load reads and strictly decodes the JSON configuration file at path.
// Unknown fields are rejected so a typo fails fast instead of silently
// defaulting (spec.md §9 DESIGN NOTE, "typed configuration fields
// parsed by a strict loader").
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open config file %s", path)
	}
	defer f.Close()

	var cfg Config
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "could not decode config file %s", path)
	}
	return &cfg, nil
}
