// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineRing(t *testing.T) {
	r := NewLineRing(3)

	_, _ = fmt.Fprintf(r, "line1\n")
	_, _ = fmt.Fprintf(r, "line2\n")
	assert.Equal(t, []string{"line1", "line2"}, r.LastN(10))

	_, _ = fmt.Fprintf(r, "line3\n")
	assert.Equal(t, []string{"line1", "line2", "line3"}, r.LastN(10))

	// Wrap
	_, _ = fmt.Fprintf(r, "line4\n")
	assert.Equal(t, []string{"line2", "line3", "line4"}, r.LastN(10))
	assert.Equal(t, []string{"line3", "line4"}, r.LastN(2))
	assert.Empty(t, r.LastN(0))
}

func TestLineRing_SplitWrites(t *testing.T) {
	r := NewLineRing(5)
	_, _ = r.Write([]byte("[libvpx @ 0x1] fai"))
	assert.Empty(t, r.LastN(5), "unterminated line is held back")

	_, _ = r.Write([]byte("led to set\r\nnext\n\n"))
	assert.Equal(t, []string{"[libvpx @ 0x1] failed to set", "next"}, r.LastN(5))
}

func TestLineRing_OverlongLineIsFlushed(t *testing.T) {
	r := NewLineRing(2)
	_, _ = r.Write([]byte(strings.Repeat("x", maxPartialLine+1)))
	got := r.LastN(1)
	if assert.Len(t, got, 1) {
		assert.Len(t, got[0], maxPartialLine+1)
	}
}
