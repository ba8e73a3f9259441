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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `{
	"mail": {"subject": "playout", "smtp_server": "smtp.example.com", "smtp_port": 587, "sender_addr": "a@example.com", "sender_pass": "x", "recipient": "ops@example.com"},
	"logging": {"log_file": "/var/log/playout/playout.log", "log_level": "info", "log_max_size_mb": 50, "log_max_age_days": 28, "log_max_backups": 5},
	"pre_compress": {"width": 1280, "height": 720, "fps": 25, "v_bitrate": 3000, "copy_mode": false, "live_protocols": ["rtmp", "rtsp"], "ffmpeg_copy_settings": []},
	"playlist": {"playlist_path": "/var/lib/playout/playlists", "day_start": 6, "filler_clip": "/media/filler.mp4", "blackclip": "/media/black.mp4", "time_shift_seconds": 0},
	"buffer": {"buffer_length": 10, "buffer_tolerance": 2, "buffer_cli": "mbuffer", "buffer_cmd": ["-q"]},
	"out": {"preview": false, "service_name": "Demo", "service_provider": "AusOcean", "out_addr": "rtmp://example.com/live"}
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "playout.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Playlist.DayStart)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.InDelta(t, float64(1280)/float64(720), cfg.PreCompress.Aspect(), 1e-9)
	assert.Equal(t, []string{"rtmp", "rtsp"}, cfg.PreCompress.LiveProtocols)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `{"mail": {"subject": "x"}, "unexpected_field": true}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestEncoderTrailerCompressModeBuildsLiteralArgs(t *testing.T) {
	p := PreCompress{Width: 1280, Height: 720, FPS: 25, VideoBitrate: 3000, CopyMode: false}
	got := p.EncoderTrailer()
	assert.Equal(t, []string{
		"-s", "1280x720",
		"-aspect", "1.7777777777777777",
		"-pix_fmt", "yuv420p",
		"-r", "25",
		"-c:v", "mpeg2video",
		"-intra",
		"-b:v", "3000k",
		"-minrate", "3000k",
		"-maxrate", "3000k",
		"-bufsize", "1500k",
		"-c:a", "s302m",
		"-strict", "-2",
		"-ar", "48000",
		"-ac", "2",
		"-threads", "2",
		"-f", "mpegts",
	}, got)
}

func TestEncoderTrailerCopyModeReturnsConfiguredSettings(t *testing.T) {
	p := PreCompress{CopyMode: true, CopySettings: []string{"-c", "copy", "-f", "mpegts"}}
	assert.Equal(t, []string{"-c", "copy", "-f", "mpegts"}, p.EncoderTrailer())
}

func TestEncoderTrailerCopyModeEmptySettingsReturnsEmptySlice(t *testing.T) {
	p := PreCompress{CopyMode: true}
	assert.Equal(t, []string{}, p.EncoderTrailer())
}
