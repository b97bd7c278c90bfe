// Package store keeps decoded boot code listings by name and mirrors them
// to a host directory.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"bootcode/pkg/asm"
	"bootcode/pkg/cpu"
)

// MaxStoreBytes caps the total source size of all stored listings (4MB).
const MaxStoreBytes = 4 << 20

// validName is the regex for sanitizing listing names.
var validName = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}(\.[a-z]{1,4})?$`)

var (
	ErrNotFound      = errors.New("listing not found")
	ErrInvalidName   = errors.New("invalid listing name")
	ErrQuotaExceeded = errors.New("store quota exceeded")
)

// Listing is a stored program. Source is the text as written; Program is
// its decoding, so a Listing in the store always decodes.
type Listing struct {
	Source  []byte
	Program cpu.Program
	// SourceMap gives the 1-based source line of each instruction.
	SourceMap map[int]int
	Created   time.Time
	Modified  time.Time
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	listings map[string]*Listing
	// pending holds names put or removed since the last Flush.
	pending map[string]bool
	used    int
}

func New() *Store {
	return &Store{
		listings: make(map[string]*Listing),
		pending:  make(map[string]bool),
	}
}

// ValidName reports whether name can be stored.
func ValidName(name string) bool {
	return validName.MatchString(name)
}

// Put decodes source and stores it under name, replacing any previous
// listing. A source that does not decode is rejected with the
// *asm.DecodeError wrapped with the name, and the store is left unchanged.
func (s *Store) Put(name string, source []byte) error {
	if !validName.MatchString(name) {
		return ErrInvalidName
	}
	if len(source) > MaxStoreBytes {
		return ErrQuotaExceeded
	}

	prog, sourceMap, err := asm.Assemble(string(source))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	src := make([]byte, len(source))
	copy(src, source)

	return s.put(name, &Listing{Source: src, Program: prog, SourceMap: sourceMap})
}

// PutProgram stores p in listing form.
func (s *Store) PutProgram(name string, p cpu.Program) error {
	if !validName.MatchString(name) {
		return ErrInvalidName
	}
	sourceMap := make(map[int]int, len(p))
	for i := range p {
		sourceMap[i] = i + 1
	}
	return s.put(name, &Listing{
		Source:    []byte(asm.Disassemble(p)),
		Program:   p.Clone(),
		SourceMap: sourceMap,
	})
}

func (s *Store) put(name string, l *Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldSize := 0
	old, exists := s.listings[name]
	if exists {
		oldSize = len(old.Source)
	}
	if s.used-oldSize+len(l.Source) > MaxStoreBytes {
		return ErrQuotaExceeded
	}

	now := time.Now()
	l.Created = now
	if exists {
		l.Created = old.Created
	}
	l.Modified = now

	s.listings[name] = l
	s.pending[name] = true
	s.used += len(l.Source) - oldSize
	return nil
}

func (s *Store) get(name string) (*Listing, error) {
	if !validName.MatchString(name) {
		return nil, ErrInvalidName
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[name]
	if !ok {
		return nil, ErrNotFound
	}
	return l, nil
}

// Has reports whether name is stored.
func (s *Store) Has(name string) bool {
	_, err := s.get(name)
	return err == nil
}

// Source returns a copy of the text stored under name.
func (s *Store) Source(name string) ([]byte, error) {
	l, err := s.get(name)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(l.Source))
	copy(out, l.Source)
	return out, nil
}

// Program returns a copy of the decoded program stored under name.
func (s *Store) Program(name string) (cpu.Program, error) {
	l, err := s.get(name)
	if err != nil {
		return nil, err
	}
	return l.Program.Clone(), nil
}

// Line returns the source line of instruction idx in the named listing.
func (s *Store) Line(name string, idx int) (int, bool) {
	l, err := s.get(name)
	if err != nil {
		return 0, false
	}
	line, ok := l.SourceMap[idx]
	return line, ok
}

func (s *Store) Remove(name string) error {
	if !validName.MatchString(name) {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[name]
	if !ok {
		return ErrNotFound
	}
	s.used -= len(l.Source)
	delete(s.listings, name)

	// Flush removes the host copy too.
	s.pending[name] = true
	return nil
}

// Names returns the stored names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.listings))
	for k := range s.listings {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Used returns the total source bytes held.
func (s *Store) Used() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

// Pending reports whether any put or remove has not been flushed.
func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending) > 0
}

// LoadDir decodes every regular file with a valid name in dir. Files that
// fail to decode are not stored; their errors come back keyed by name.
// Loaded listings are not pending. A missing directory is not an error.
func (s *Store) LoadDir(dir string) (map[string]error, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	rejected := make(map[string]error)
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !validName.MatchString(name) {
			continue
		}

		fullPath := filepath.Join(dir, name)
		raw, err := os.ReadFile(fullPath)
		if err != nil {
			return rejected, fmt.Errorf("load %s: %w", fullPath, err)
		}
		prog, sourceMap, err := asm.Assemble(string(raw))
		if err != nil {
			rejected[name] = err
			continue
		}

		l := &Listing{Source: raw, Program: prog, SourceMap: sourceMap}
		if info, err := de.Info(); err == nil {
			l.Created, l.Modified = info.ModTime(), info.ModTime()
		}
		if err := s.load(name, l); err != nil {
			return rejected, err
		}
	}
	return rejected, nil
}

func (s *Store) load(name string, l *Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldSize := 0
	if old, ok := s.listings[name]; ok {
		oldSize = len(old.Source)
	}
	if s.used-oldSize+len(l.Source) > MaxStoreBytes {
		return ErrQuotaExceeded
	}
	s.listings[name] = l
	s.used += len(l.Source) - oldSize
	delete(s.pending, name)
	return nil
}

// Flush writes pending listings to dir, creating it if needed, and removes
// host copies of removed ones. It returns the first error encountered;
// names that failed stay pending.
func (s *Store) Flush(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// Collect under the lock, then do I/O without it.
	type write struct {
		src      []byte
		modified time.Time
	}
	s.mu.Lock()
	writes := make(map[string]write)
	var removed []string
	for name := range s.pending {
		if l, ok := s.listings[name]; ok {
			writes[name] = write{src: l.Source, modified: l.Modified}
		} else {
			removed = append(removed, name)
		}
	}
	s.pending = make(map[string]bool)
	s.mu.Unlock()

	var firstErr error
	retry := func(name string, err error) {
		s.mu.Lock()
		s.pending[name] = true
		s.mu.Unlock()
		if firstErr == nil {
			firstErr = fmt.Errorf("flush %s: %w", name, err)
		}
	}

	for _, name := range removed {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			retry(name, err)
		}
	}
	for name, w := range writes {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, w.src, 0o644); err != nil {
			retry(name, err)
			continue
		}
		_ = os.Chtimes(path, time.Now(), w.modified)
	}

	return firstErr
}
