// Package reconcile keeps an output directory consistent across runs. Every
// run records the filenames it produced in a newline-delimited manifest; the
// next run clears exactly those files before writing. Files the manifest does
// not name are never touched, except on the no-manifest path where the whole
// directory is assumed foreign and wiped.
package reconcile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/mdgen/internal/util/sets"
)

// ManifestName is the ledger file kept inside the output directory.
const ManifestName = ".build"

// Manifest is the ordered list of filenames a run produced. It is an explicit
// value: callers load it, compute against it, and write a new one; nothing is
// kept as ambient state.
type Manifest struct {
	Files []string
}

// Stale returns the manifest entries not present in produced, preserving
// manifest order. These are the files a new run must delete.
func (m Manifest) Stale(produced []string) []string {
	keep := sets.New(produced...)
	var stale []string
	for _, f := range m.Files {
		if !keep.Has(f) {
			stale = append(stale, f)
		}
	}
	return stale
}

// ReadManifest loads the manifest at path. ok is false when no manifest
// exists there.
func ReadManifest(path string) (Manifest, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, false, nil
		}
		return Manifest{}, false, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var files []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		files = append(files, line)
	}
	return Manifest{Files: files}, true, nil
}

// WriteManifest persists the produced filenames, one per line, in submission
// order.
func WriteManifest(path string, produced []string) error {
	content := strings.Join(produced, "\n")
	if content != "" {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}

// Reconciler manages the generated-file ledger for one output directory.
type Reconciler struct {
	dir          string
	manifestPath string
}

// New creates a reconciler for the output directory. The manifest lives at
// <dir>/.build.
func New(dir string) *Reconciler {
	return &Reconciler{dir: dir, manifestPath: filepath.Join(dir, ManifestName)}
}

// ManifestPath returns the manifest location inside the output directory.
func (r *Reconciler) ManifestPath() string { return r.manifestPath }

// Prepare clears the output directory before a run's write phase and returns
// the previous manifest when one existed.
//
// With a manifest present, every listed file not in produced is deleted,
// then the manifest itself; files the manifest does not name survive. The
// orchestrator passes an empty produced set here so the whole previous run
// is cleared before rewriting. Without a manifest the directory is treated
// as foreign: removed recursively and recreated empty.
//
// Filesystem errors are fatal to the run.
func (r *Reconciler) Prepare(produced []string) (Manifest, bool, error) {
	prev, ok, err := ReadManifest(r.manifestPath)
	if err != nil {
		return Manifest{}, false, err
	}

	if !ok {
		if err := os.RemoveAll(r.dir); err != nil {
			return Manifest{}, false, fmt.Errorf("clear output dir %s: %w", r.dir, err)
		}
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			return Manifest{}, false, fmt.Errorf("create output dir %s: %w", r.dir, err)
		}
		return Manifest{}, false, nil
	}

	for _, name := range prev.Stale(produced) {
		if !filepath.IsLocal(name) {
			return prev, true, fmt.Errorf("manifest entry %q escapes output directory", name)
		}
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return prev, true, fmt.Errorf("remove stale file %s: %w", name, err)
		}
	}
	if err := os.Remove(r.manifestPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return prev, true, fmt.Errorf("remove manifest: %w", err)
	}
	return prev, true, nil
}

// Commit writes the manifest for this run. It must be the last filesystem
// step: a run that failed earlier leaves no manifest behind.
func (r *Reconciler) Commit(produced []string) error {
	return WriteManifest(r.manifestPath, produced)
}
