// Copyright 2024-2025 The evl Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package source reads, caches and addresses source files.
//
// Files are deduplicated twice: by normalized path (approximate but
// conservative: a hit implies the file is loaded) and by filesystem
// identity (device and inode where the backing filesystem provides them),
// so that importing one file through any equivalent path reuses its AST.
//
// Every byte of every loaded file has a stable 32-bit [ID]. A file owns
// the contiguous ID range [Base, Base+len]; diagnostics resolve an ID back
// to path, line and column through [Reader.Location].
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/tidwall/btree"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ID is a position inside some loaded source file: the file's base plus
// the byte offset. The zero value means "no position" and is used for
// synthesized nodes such as the prelude bootstrap.
type ID uint32

// Nil reports whether this is the reserved no-position ID.
func (id ID) Nil() bool {
	return id == 0
}

// maxFileSize keeps a file's ID range addressable.
const maxFileSize = 1<<32 - 2

// File is one deduplicated source file.
type File struct {
	// Path is the normalized path the file was first opened under.
	Path string

	// Base is the ID of the file's first byte. The IDs
	// [Base, Base+len(Content)] all belong to this file.
	Base ID

	// Content is the file's bytes followed by a single NUL sentinel, which
	// the lexer relies on to avoid bounds checks at end of input.
	Content []byte

	// CachedRoot holds the finalized AST root handle once the importer has
	// parsed this file; zero until then. It is stored as a raw handle to
	// keep this package below the AST in the dependency order.
	CachedRoot uint32
}

// Text returns the file's content without the NUL sentinel.
func (f *File) Text() []byte {
	return f.Content[:len(f.Content)-1]
}

// Read is the result of [Reader.Read]: the cache entry plus whether this
// call actually loaded the file from the filesystem. When Fresh is false,
// the file was already cached and the caller may reuse f.CachedRoot.
type Read struct {
	File  *File
	Fresh bool
}

// identity is a filesystem identity: (device, inode) where the platform
// provides them, the normalized absolute path otherwise. Never merges two
// distinct files.
type identity string

func identityOf(info os.FileInfo, normPath string) identity {
	if st, ok := info.Sys().(*syscall.Stat_t); ok && st != nil {
		return identity(fmt.Sprintf("dev=%d ino=%d", uint64(st.Dev), st.Ino))
	}
	return identity("path=" + normPath)
}

// Reader loads and caches source files.
//
// The semantic pipeline calls Read synchronously; Prefetch may warm the
// cache from multiple goroutines ahead of time, so the cache maps are
// guarded by the singleflight group and a small critical section in flight.
type Reader struct {
	fs  afero.Fs
	log logrus.FieldLogger

	// mu guards the maps below. The semantic pipeline itself is
	// single-threaded, but Prefetch may race Read on the cache.
	mu sync.Mutex

	// byPath maps normalized path to file identity; byIdentity owns the
	// files. Both are ordered so that debug dumps are deterministic.
	byPath     btree.Map[string, identity]
	byIdentity btree.Map[identity, *File]

	// byBase locates the file owning a given ID: the greatest Base <= id.
	byBase btree.Map[ID, *File]

	nextBase ID

	flight singleflight.Group
}

// NewReader returns a reader over the given filesystem.
func NewReader(fs afero.Fs, log logrus.FieldLogger) *Reader {
	if log == nil {
		logger := logrus.New()
		logger.SetLevel(logrus.WarnLevel)
		log = logger
	}
	return &Reader{fs: fs, log: log, nextBase: 1}
}

// Normalize cleans path into its canonical cache key.
func Normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// Read returns the cached file for path, loading it on first sight.
//
// Returns an error for any filesystem failure or when the file exceeds the
// addressable size; per the error model these are fatal to the pipeline
// and the caller does not attempt recovery.
func (r *Reader) Read(path string) (Read, error) {
	norm := Normalize(path)

	// Path lookup first. Approximate but conservative: a hit means the
	// file is loaded.
	r.mu.Lock()
	ident, hit := r.byPath.Get(norm)
	var cached *File
	if hit {
		var ok bool
		cached, ok = r.byIdentity.Get(ident)
		if !ok {
			r.mu.Unlock()
			panic(fmt.Sprintf("source: path cache names unknown identity for %q", norm))
		}
	}
	r.mu.Unlock()
	if hit {
		return Read{File: cached}, nil
	}

	v, err, _ := r.flight.Do(norm, func() (any, error) {
		return r.load(norm)
	})
	if err != nil {
		return Read{}, err
	}
	return v.(Read), nil
}

func (r *Reader) load(norm string) (Read, error) {
	info, err := r.fs.Stat(norm)
	if err != nil {
		return Read{}, fmt.Errorf("source: stat %s: %w", norm, err)
	}
	if info.Size() > maxFileSize {
		return Read{}, fmt.Errorf("source: %s: size %d exceeds the supported maximum of %d bytes", norm, info.Size(), maxFileSize)
	}

	ident := identityOf(info, norm)

	// Identity lookup. Exact: a hit means the same file was loaded under
	// another path.
	r.mu.Lock()
	file, ok := r.byIdentity.Get(ident)
	if ok {
		r.byPath.Set(norm, ident)
	}
	r.mu.Unlock()
	if ok {
		r.log.WithFields(logrus.Fields{"path": norm, "canonical": file.Path}).
			Debug("source file aliased by identity")
		return Read{File: file}, nil
	}

	raw, err := afero.ReadFile(r.fs, norm)
	if err != nil {
		return Read{}, fmt.Errorf("source: read %s: %w", norm, err)
	}

	content := make([]byte, len(raw)+1)
	copy(content, raw)

	r.mu.Lock()
	file = &File{
		Path:    norm,
		Base:    r.nextBase,
		Content: content,
	}
	r.nextBase += ID(len(content))

	r.byPath.Set(norm, ident)
	r.byIdentity.Set(ident, file)
	r.byBase.Set(file.Base, file)
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{"path": norm, "bytes": len(raw), "base": uint32(file.Base)}).
		Debug("source file loaded")

	return Read{File: file, Fresh: true}, nil
}

// Prefetch warms the cache for the given paths concurrently. Errors are
// returned but the cache keeps whatever loaded successfully.
func (r *Reader) Prefetch(paths ...string) error {
	var g errgroup.Group
	for _, path := range paths {
		path := path
		g.Go(func() error {
			_, err := r.Read(path)
			return err
		})
	}
	return g.Wait()
}

// FileOf returns the file owning id, or nil for the reserved no-position
// ID and for ids past the loaded range.
func (r *Reader) FileOf(id ID) *File {
	if id.Nil() {
		return nil
	}
	var found *File
	r.mu.Lock()
	r.byBase.Descend(id, func(_ ID, f *File) bool {
		found = f
		return false
	})
	r.mu.Unlock()
	if found == nil || uint32(id) >= uint32(found.Base)+uint32(len(found.Content)) {
		return nil
	}
	return found
}

// Location is a resolved source position.
type Location struct {
	Path    string
	Line    uint32 // 1-based
	Column  uint32 // 1-based, bytes
	Context string // the full source line containing the position
}

// Location resolves id into path, line, column and context line.
//
// The no-position ID and out-of-range ids resolve to a location with an
// empty path, which the diagnostic renderer shows as "<compiler>".
func (r *Reader) Location(id ID) Location {
	file := r.FileOf(id)
	if file == nil {
		return Location{}
	}

	offset := int(uint32(id) - uint32(file.Base))
	text := file.Text()
	if offset > len(text) {
		offset = len(text)
	}

	line := uint32(1)
	lineStart := 0
	for i := 0; i < offset; i++ {
		if text[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	lineEnd := lineStart
	for lineEnd < len(text) && text[lineEnd] != '\n' {
		lineEnd++
	}

	return Location{
		Path:    file.Path,
		Line:    line,
		Column:  uint32(offset-lineStart) + 1,
		Context: string(text[lineStart:lineEnd]),
	}
}
