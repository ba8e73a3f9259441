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
	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"
)

// LogoOverlay evaluates the configured logo filter expression against
// a clip's target dimensions, producing the ffmpeg filtergraph
// fragment to append when an overlay is configured (spec.md §6 "optional
// logo overlay (file path + filter expression)"; SPEC_FULL.md §4.3
// "logo overlay filter expression" domain-stack addition, grounded on
// model/sensor.go's use of github.com/Knetic/govaluate for
// user-supplied formulas). By contract, the evaluated expression reads
// the clip's video as "[0:v]" and the logo file (always opened as
// input 1, see renderer.logoInput) as "[1:v]", and labels its final
// video output "[v]" -- the renderer rewrites the "[0:v]" reference
// when a preceding filter stage (e.g. a fade-out) has already
// relabelled the clip's video pad.
type LogoOverlay struct {
	Path       string
	Expression string

	compiled *govaluate.EvaluableExpression
}

// NewLogoOverlay compiles expr once; an empty path or expression
// disables the overlay (Render returns "", nil).
func NewLogoOverlay(path, expr string) (*LogoOverlay, error) {
	if path == "" || expr == "" {
		return &LogoOverlay{}, nil
	}
	compiled, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "could not compile logo overlay expression %q", expr)
	}
	return &LogoOverlay{Path: path, Expression: expr, compiled: compiled}, nil
}

// Render evaluates the compiled expression against the clip's target
// width, height and fps, returning the filtergraph fragment to splice
// into -filter_complex. Returns "" when no overlay is configured.
func (l *LogoOverlay) Render(width, height, fps int) (string, error) {
	if l.compiled == nil {
		return "", nil
	}
	result, err := l.compiled.Evaluate(map[string]interface{}{
		"w":   float64(width),
		"h":   float64(height),
		"fps": float64(fps),
	})
	if err != nil {
		return "", errors.Wrap(err, "could not evaluate logo overlay expression")
	}
	fragment, ok := result.(string)
	if !ok {
		return "", errors.Errorf("logo overlay expression must evaluate to a string, got %T", result)
	}
	return fragment, nil
}
