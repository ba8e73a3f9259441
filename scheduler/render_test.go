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

package scheduler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, logo *LogoOverlay) *renderer {
	t.Helper()
	return &renderer{
		cfg:  renderConfig{Width: 1280, Height: 720, FPS: 25},
		logo: logo,
	}
}

func TestSrcOrDummyAddsLogoInputAndMapsItsOutputPad(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	logo, err := NewLogoOverlay("/media/logo.png", `"[0:v][1:v]overlay=0:0[v]"`)
	require.NoError(t, err)
	r := newTestRenderer(t, logo)

	cmd := r.srcOrDummy(nil, src, 10, 0, 10, 0)
	require.NotNil(t, cmd)

	assert.Contains(t, cmd.Args, "/media/logo.png")
	idx := indexOf(cmd.Args, "/media/logo.png")
	require.GreaterOrEqual(t, idx, 1)
	assert.Equal(t, "-i", cmd.Args[idx-1])
	assert.Equal(t, "-thread_queue_size", cmd.Args[idx-3])

	joined := strings.Join(cmd.Args, " ")
	assert.Contains(t, joined, "[0:v][1:v]overlay=0:0[v]")
	assert.Contains(t, cmd.Args, "[v]")
	mapIdx := indexOf(cmd.Args, "-map")
	require.GreaterOrEqual(t, mapIdx, 0)
	assert.Equal(t, "[v]", cmd.Args[mapIdx+1])
}

func TestSrcOrDummyWithoutLogoNeverAddsSecondInput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	r := newTestRenderer(t, nil)
	cmd := r.srcOrDummy(nil, src, 10, 0, 10, 0)
	require.NotNil(t, cmd)

	assert.NotContains(t, cmd.Args, "-thread_queue_size")
	assert.Equal(t, "0:v", cmd.Args[indexOf(cmd.Args, "-map")+1])
}

func TestSeekInCutEndTruncatedClipWithLogoLabelsOutputOnce(t *testing.T) {
	logo, err := NewLogoOverlay("/media/logo.png", `"[0:v][1:v]overlay=0:0[v]"`)
	require.NoError(t, err)
	r := newTestRenderer(t, logo)

	args := r.seekInCutEnd("/media/clip.mp4", 100, 0, 50)

	assert.Contains(t, args, "/media/logo.png")
	filterIdx := indexOf(args, "-filter_complex")
	require.GreaterOrEqual(t, filterIdx, 0)
	filter := args[filterIdx+1]

	// The fade-out's own pad must be relabelled off "[v]" so the overlay
	// is the only stage declaring the final "[v]" output.
	assert.Equal(t, 1, strings.Count(filter, "[v]"))
	assert.Contains(t, filter, "[vfade]")
	assert.Contains(t, filter, "[vfade][1:v]overlay=0:0[v]")

	mapIdx := indexOf(args, "-map")
	require.GreaterOrEqual(t, mapIdx, 0)
	assert.Equal(t, "[v]", args[mapIdx+1])
}

func TestSeekInCutEndTruncatedClipWithoutLogoKeepsSingleFadeLabel(t *testing.T) {
	r := newTestRenderer(t, nil)

	args := r.seekInCutEnd("/media/clip.mp4", 100, 0, 50)

	assert.NotContains(t, args, "-thread_queue_size")
	filterIdx := indexOf(args, "-filter_complex")
	require.GreaterOrEqual(t, filterIdx, 0)
	filter := args[filterIdx+1]

	assert.NotContains(t, filter, "[vfade]")
	assert.Equal(t, 1, strings.Count(filter, "[v]"))
}

func indexOf(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return -1
}
