// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"strconv"
)

func baseArgs() []string {
	return []string{"-hide_banner", "-loglevel", "error"}
}

func size(width, height int) string {
	return strconv.Itoa(width) + "x" + strconv.Itoa(height)
}

// EncoderArgs reads raw rgb24 frames from stdin and writes realtime VP8 in an
// IVF container to stdout.
func EncoderArgs(width, height, fps, bitrateKbps int) []string {
	gop := fps * 2
	if gop < 1 {
		gop = 1
	}
	args := baseArgs()
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", size(width, height),
		"-r", strconv.Itoa(fps),
		"-i", "pipe:0",
		"-an",
		"-c:v", "libvpx",
		"-b:v", strconv.Itoa(bitrateKbps)+"k",
		"-deadline", "realtime",
		"-cpu-used", "8",
		"-lag-in-frames", "0",
		"-error-resilient", "1",
		"-auto-alt-ref", "0",
		"-g", strconv.Itoa(gop),
		"-pix_fmt", "yuv420p",
		"-f", "ivf",
		"pipe:1",
	)
	return args
}

// DecoderArgs reads VP8 in IVF from stdin and writes rgb24 frames of the
// given size to stdout.
func DecoderArgs(width, height int) []string {
	args := baseArgs()
	args = append(args,
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-f", "ivf",
		"-i", "pipe:0",
		"-an",
		"-vf", "scale="+strconv.Itoa(width)+":"+strconv.Itoa(height),
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"pipe:1",
	)
	return args
}

// MediaArgs loops path forever at fps, scaled to width x height, as rgb24.
func MediaArgs(path string, width, height, fps int) []string {
	args := baseArgs()
	args = append(args,
		"-nostdin",
		"-stream_loop", "-1",
		"-re",
		"-i", path,
		"-an",
		"-vf", "fps="+strconv.Itoa(fps)+",scale="+strconv.Itoa(width)+":"+strconv.Itoa(height),
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"pipe:1",
	)
	return args
}
