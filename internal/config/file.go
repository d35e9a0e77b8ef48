package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"

	"beads/internal/issue"
)

// File is the workspace's config.yaml: a flat map of dotted string keys
// (literal strings, not nested paths) persisted as YAML. yaml.Marshal on a
// map[string]string emits keys alphabetically, so rewrites stay diff-stable.
// Beyond raw Get/Set it carries typed accessors for every recognized key,
// each with the workspace default folded in, so callers never re-parse or
// re-default config values themselves.
type File struct {
	path string
	data map[string]string
}

// Open loads the config file at path. A missing or empty file yields an
// empty store; the file is created by the first Set.
func Open(path string) (*File, error) {
	f := &File{path: path}
	if err := f.reload(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) reload() error {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.data = make(map[string]string)
			return nil
		}
		return fmt.Errorf("config: read %s: %w", f.path, err)
	}
	fresh := make(map[string]string)
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &fresh); err != nil {
			return fmt.Errorf("config: parse %s: %w", f.path, err)
		}
	}
	if fresh == nil {
		fresh = make(map[string]string)
	}
	f.data = fresh
	return nil
}

// Get returns the raw value for key and whether it was found.
func (f *File) Get(key string) (string, bool) {
	v, ok := f.data[key]
	return v, ok
}

// Set writes key=value and persists to disk. Unknown keys round-trip
// untouched, so configs written by newer builds survive a rewrite.
func (f *File) Set(key, value string) error {
	return f.mutate(func() {
		f.data[key] = value
	})
}

// SetInMemory writes key=value without persisting, for runtime overrides
// (env vars) that must not end up in the file.
func (f *File) SetInMemory(key, value string) {
	f.data[key] = value
}

// Unset removes key and persists to disk.
func (f *File) Unset(key string) error {
	return f.mutate(func() {
		delete(f.data, key)
	})
}

// All returns a copy of every key-value pair.
func (f *File) All() map[string]string {
	out := make(map[string]string, len(f.data))
	for k, v := range f.data {
		out[k] = v
	}
	return out
}

// mutate serializes concurrent writers with an exclusive flock on a sibling
// .lock file, re-reads the file so another process's writes survive this
// read-modify-write, applies fn, and rewrites the file atomically.
func (f *File) mutate(fn func()) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	lock, err := os.OpenFile(f.path+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("config: open lock: %w", err)
	}
	defer lock.Close()
	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("config: acquire lock: %w", err)
	}
	defer unix.Flock(int(lock.Fd()), unix.LOCK_UN)

	if err := f.reload(); err != nil {
		return err
	}
	fn()

	raw, err := yaml.Marshal(f.data)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return writeAtomic(f.path, raw)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("config: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("config: rename into place: %w", err)
	}
	return nil
}

// Compile-time check that File implements Store.
var _ Store = (*File)(nil)

// IDPrefix returns the configured issue id prefix, default "bd".
func (f *File) IDPrefix() string {
	if v, ok := f.data[KeyIDPrefix]; ok && v != "" {
		return v
	}
	return "bd"
}

// HashLengthBounds returns the configured id hash length bounds. Either
// bound is 0 when unset or unparseable, which the generator treats as "use
// its own default".
func (f *File) HashLengthBounds() (min, max int) {
	return f.intValue(KeyIDMinHashLength), f.intValue(KeyIDMaxHashLength)
}

// DefaultPriority returns the priority applied when create omits one,
// default medium.
func (f *File) DefaultPriority() issue.Priority {
	if v, ok := f.data[KeyDefaultPriority]; ok {
		if p, err := issue.ParsePriority(v); err == nil {
			return p
		}
	}
	return issue.PriorityMedium
}

// DefaultIssueType returns the issue type applied when create omits one,
// default task. Unrecognized configured values fall back to task rather
// than leaking an invalid type into new issues.
func (f *File) DefaultIssueType() issue.IssueType {
	if v, ok := f.data[KeyDefaultIssueType]; ok {
		if t := issue.IssueType(v); issue.ValidTypes[t] {
			return t
		}
	}
	return issue.TypeTask
}

// AutoFlush reports whether commands flush the store on exit, default true.
func (f *File) AutoFlush() bool { return f.boolValue(KeySyncAutoFlush) }

// AutoImport reports whether commands reconcile from the snapshot before
// running, default true.
func (f *File) AutoImport() bool { return f.boolValue(KeySyncAutoImport) }

// ColorOutput reports whether the rendering collaborator should colorize,
// default true.
func (f *File) ColorOutput() bool { return f.boolValue(KeyOutputColor) }

// Actor returns the configured actor identity, or "" when unset or still
// holding the "${USER}" placeholder written at init.
func (f *File) Actor() string {
	v, ok := f.data[KeyActor]
	if !ok || v == "${USER}" {
		return ""
	}
	return v
}

func (f *File) boolValue(key string) bool {
	v, ok := f.data[key]
	return !ok || v != "false"
}

func (f *File) intValue(key string) int {
	v, ok := f.data[key]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
