// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package framesource

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/rtcrelay/internal/log"
	"github.com/ManuGH/rtcrelay/internal/media"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".bmp":  true,
}

type imageEntry struct {
	path    string
	modTime time.Time
}

type decodedImage struct {
	modTime time.Time
	frame   media.Frame
	bad     bool
}

const emptyRescanInterval = time.Second

// images cycles through the still images of a directory, oldest first. The
// listing is refreshed each time the cycle wraps, so new files join the
// rotation on the next pass. A pass that yields no usable image (empty
// directory or only unreadable files) is rescanned at most once per rescan
// interval.
type images struct {
	dir    string
	width  int
	height int
	rescan time.Duration

	mu       sync.Mutex
	entries  []imageEntry
	index    int
	decoded  map[string]decodedImage
	lastScan time.Time
	starved  bool
}

// NewImages cycles the images in dir, scaled to width x height.
func NewImages(dir string, width, height int) Strategy {
	return &images{dir: dir, width: width, height: height, rescan: emptyRescanInterval, decoded: map[string]decodedImage{}}
}

func (im *images) Kind() Kind { return KindFallbackImages }

func (im *images) TryFrame() (media.Frame, bool) {
	im.mu.Lock()
	defer im.mu.Unlock()

	if im.index >= len(im.entries) {
		if im.starved && time.Since(im.lastScan) < im.rescan {
			return media.Frame{}, false
		}
		im.refresh()
	}
	// Each file is tried at most once per call; unreadable ones are skipped.
	for attempts := len(im.entries); attempts > 0; attempts-- {
		e := im.entries[im.index]
		im.index++
		if f, ok := im.load(e); ok {
			im.starved = false
			return f, true
		}
		if im.index >= len(im.entries) {
			im.index = 0
		}
	}
	im.index = len(im.entries)
	im.starved = true
	return media.Frame{}, false
}

func (im *images) refresh() {
	im.index = 0
	im.lastScan = time.Now()
	dirents, err := os.ReadDir(im.dir)
	if err != nil {
		im.entries = nil
		return
	}
	entries := make([]imageEntry, 0, len(dirents))
	seen := make(map[string]bool, len(dirents))
	for _, d := range dirents {
		if d.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(im.dir, d.Name())
		entries = append(entries, imageEntry{path: path, modTime: info.ModTime()})
		seen[path] = true
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].path < entries[j].path
		}
		return entries[i].modTime.Before(entries[j].modTime)
	})
	im.entries = entries
	for path := range im.decoded {
		if !seen[path] {
			delete(im.decoded, path)
		}
	}
}

func (im *images) load(e imageEntry) (media.Frame, bool) {
	if d, ok := im.decoded[e.path]; ok && d.modTime.Equal(e.modTime) {
		return d.frame, !d.bad
	}
	f, err := os.Open(e.path)
	if err != nil {
		return media.Frame{}, false
	}
	defer func() { _ = f.Close() }()

	frame, err := media.DecodeImage(f)
	if err == nil {
		frame, err = media.Scale(frame, im.width, im.height)
	}
	if err != nil {
		log.L().Warn().
			Str(log.FieldEvent, "framesource.image_invalid").
			Str("path", e.path).
			Err(err).
			Msg("skipping unreadable fallback image")
		im.decoded[e.path] = decodedImage{modTime: e.modTime, bad: true}
		return media.Frame{}, false
	}
	im.decoded[e.path] = decodedImage{modTime: e.modTime, frame: frame}
	return frame, true
}
