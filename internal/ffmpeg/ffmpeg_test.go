// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/rtcrelay/internal/media"
)

// fakeBinary writes an executable shell script that ignores its arguments.
func fakeBinary(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func ivfBytes(frames ...[]byte) []byte {
	var buf bytes.Buffer
	hdr := make([]byte, 32)
	copy(hdr, "DKIF")
	binary.LittleEndian.PutUint16(hdr[6:], 32)
	copy(hdr[8:], "VP80")
	binary.LittleEndian.PutUint16(hdr[12:], 64)
	binary.LittleEndian.PutUint16(hdr[14:], 64)
	binary.LittleEndian.PutUint32(hdr[16:], 30)
	binary.LittleEndian.PutUint32(hdr[20:], 1)
	binary.LittleEndian.PutUint32(hdr[24:], uint32(len(frames)))
	buf.Write(hdr)
	for i, f := range frames {
		fh := make([]byte, 12)
		binary.LittleEndian.PutUint32(fh, uint32(len(f)))
		binary.LittleEndian.PutUint64(fh[4:], uint64(i))
		buf.Write(fh)
		buf.Write(f)
	}
	return buf.Bytes()
}

func TestArgs(t *testing.T) {
	enc := EncoderArgs(640, 360, 30, 1500)
	assert.Contains(t, enc, "640x360")
	assert.Contains(t, enc, "1500k")
	assert.Contains(t, enc, "libvpx")
	assert.Equal(t, "pipe:1", enc[len(enc)-1])
	assert.NotContains(t, enc, "-nostdin")

	dec := DecoderArgs(320, 240)
	assert.Contains(t, dec, "scale=320:240")
	assert.Contains(t, dec, "ivf")

	med := MediaArgs("/tmp/loop.mp4", 64, 32, 15)
	assert.Contains(t, med, "-stream_loop")
	assert.Contains(t, med, "/tmp/loop.mp4")
	assert.Contains(t, med, "fps=15,scale=64:32")
	assert.Contains(t, med, "-nostdin")
}

func TestProcess_EchoAndStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, err := Start(context.Background(), Spec{Binary: "sh", Args: []string{"-c", "cat; echo done >&2"}, Role: "test", Stdin: true})
	require.NoError(t, err)

	_, err = p.Stdin().Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, p.CloseStdin())

	out, err := io.ReadAll(p.Stdout())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	assert.NoError(t, p.Err())
	assert.Equal(t, []string{"done"}, p.Stderr(5))
	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
}

func TestProcess_ContextCancelStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	p, err := Start(ctx, Spec{Binary: "sleep", Args: []string{"30"}, Role: "test", Grace: 500 * time.Millisecond})
	require.NoError(t, err)
	cancel()

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process survived context cancellation")
	}
	assert.Error(t, p.Err())
}

func TestProcess_MissingBinary(t *testing.T) {
	_, err := Start(context.Background(), Spec{Binary: filepath.Join(t.TempDir(), "nope"), Role: "test"})
	assert.Error(t, err)
}

func TestEncoder_ParsesIVFOutput(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	ivf := filepath.Join(dir, "out.ivf")
	require.NoError(t, os.WriteFile(ivf, ivfBytes([]byte{1, 2, 3}, []byte{4, 5}), 0o600))
	bin := fakeBinary(t, "cat '"+ivf+"'; cat >/dev/null")

	enc, err := StartEncoder(context.Background(), EncoderConfig{Binary: bin, Width: 2, Height: 2, FPS: 10})
	require.NoError(t, err)

	assert.True(t, enc.Submit(media.Blank(4, 4)))

	var got [][]byte
	timeout := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case s := <-enc.Samples():
			got = append(got, s)
		case <-timeout:
			t.Fatalf("received %d samples", len(got))
		}
	}
	assert.Equal(t, [][]byte{{1, 2, 3}, {4, 5}}, got)
	require.NoError(t, enc.Close())
	assert.False(t, enc.Submit(media.Blank(2, 2)))
}

func TestMediaReader_KeepsLatestFrame(t *testing.T) {
	defer goleak.VerifyNone(t)

	// 2x2 rgb24 = 12 bytes per frame.
	bin := fakeBinary(t, "printf 'AAAAAAAAAAAABBBBBBBBBBBB'; sleep 30")
	m, err := OpenMedia(context.Background(), MediaConfig{Binary: bin, Path: "x.mp4", Width: 2, Height: 2, FPS: 30})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		f, ok := m.Latest()
		return ok && f.Data[0] == 'B'
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, m.Alive())
	require.NoError(t, m.Close())
	assert.False(t, m.Alive())
}

func TestDecoder_EmitsFramesAndRejectsAfterExit(t *testing.T) {
	defer goleak.VerifyNone(t)

	bin := fakeBinary(t, "head -c 32 >/dev/null; printf 'CCCCCCCCCCCC'")
	frames := make(chan media.Frame, 4)
	d, err := StartDecoder(context.Background(), DecoderConfig{Binary: bin, Width: 2, Height: 2}, func(f media.Frame) {
		frames <- f
	})
	require.NoError(t, err)

	select {
	case f := <-frames:
		assert.Equal(t, media.FormatRGB24, f.Format)
		assert.Equal(t, bytes.Repeat([]byte{'C'}, 12), f.Data)
	case <-time.After(5 * time.Second):
		t.Fatal("no decoded frame")
	}

	<-d.Done()
	assert.ErrorIs(t, d.WriteRTP(nil), ErrNotRunning)
	require.NoError(t, d.Close())
}

func TestConfigValidation(t *testing.T) {
	_, err := StartEncoder(context.Background(), EncoderConfig{Width: 0, Height: 2, FPS: 1})
	assert.Error(t, err)
	_, err = StartDecoder(context.Background(), DecoderConfig{}, func(media.Frame) {})
	assert.Error(t, err)
	_, err = OpenMedia(context.Background(), MediaConfig{Width: 2, Height: 2, FPS: 1})
	assert.Error(t, err)
}
