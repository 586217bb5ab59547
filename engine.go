// Package codeintel provides deterministic, scope-aware multi-language code
// intelligence built on tree-sitter. It indexes TypeScript/JavaScript,
// Python, and Rust source into a per-file semantic index, resolves
// references into a project-wide registry, and assembles a call graph from
// which entry points and tree sizes can be queried.
package codeintel

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/CRJFisher/ariadne-sub017/internal/graph"
	"github.com/CRJFisher/ariadne-sub017/internal/index"
	"github.com/CRJFisher/ariadne-sub017/internal/lang"
	"github.com/CRJFisher/ariadne-sub017/internal/registry"
	"github.com/CRJFisher/ariadne-sub017/internal/resolve"
	"github.com/CRJFisher/ariadne-sub017/internal/store"
)

// Engine orchestrates the whole pipeline: file discovery, change detection,
// extraction, resolution, and query access (C8, the incremental
// coordinator). All state lives in an in-memory SQLite store; nothing is
// persisted to disk between process runs.
type Engine struct {
	store *store.Store

	// blastRadius accumulates file IDs that need re-resolution since the
	// last Resolve call. nil means "resolve everything" (first run or a
	// change whose ripple effects haven't been scoped yet).
	blastRadius map[int64]bool

	// allowedLangs restricts UpdateFile/Initialize to these lang.Profile
	// names when non-nil (the CLI's --lang flag); nil means every
	// registered language is indexed.
	allowedLangs map[string]bool
}

// SetLanguages restricts indexing to the named lang.Profile languages
// (e.g. "typescript", "python", "rust"). Passing nil or an empty slice
// clears the restriction.
func (e *Engine) SetLanguages(langs []string) {
	if len(langs) == 0 {
		e.allowedLangs = nil
		return
	}
	e.allowedLangs = make(map[string]bool, len(langs))
	for _, l := range langs {
		e.allowedLangs[l] = true
	}
}

// New creates an Engine backed by a fresh in-memory store.
func New() (*Engine, error) {
	st, err := store.NewStore()
	if err != nil {
		return nil, fmt.Errorf("codeintel: create store: %w", err)
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, fmt.Errorf("codeintel: migrate: %w", err)
	}
	return &Engine{store: st}, nil
}

// Close releases the Engine's in-memory database.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store exposes the underlying registry storage for direct query access
// (project.definitions/exports/references/resolutions/imports/scopes).
func (e *Engine) Store() *store.Store {
	return e.store
}

func (e *Engine) markDirty(fileIDs ...int64) {
	if e.blastRadius == nil {
		e.blastRadius = make(map[int64]bool)
	}
	for _, id := range fileIDs {
		e.blastRadius[id] = true
	}
}

// symbolKey identifies a definition's identity independent of its body, the
// same "what changed" classification the engine needs to scope
// re-resolution to the blast radius (§8, mirroring the tree-sitter-driven
// indexers' change-detection convention).
type symbolKey struct {
	Name       string
	Kind       string
	OwnerClass string
}

func captureSymbolKeys(st *store.Store, fileID int64) (map[symbolKey]string, error) {
	syms, err := st.SymbolsByFile(fileID)
	if err != nil {
		return nil, err
	}
	out := make(map[symbolKey]string, len(syms))
	for _, sym := range syms {
		out[symbolKey{Name: sym.Name, Kind: sym.Kind, OwnerClass: sym.OwnerClass}] = sym.SignatureHash
	}
	return out, nil
}

// UpdateFile implements the spec's update_file(path, src): it parses src
// with the language inferred from path's extension, replaces any prior
// index for that path, and scopes the next Resolve call to the files this
// change could affect. Unsupported extensions are silently skipped -- the
// engine never errors on an unrecognized file.
func (e *Engine) UpdateFile(path string, src []byte) error {
	profile, ok := lang.ForPath(path)
	if !ok || (e.allowedLangs != nil && !e.allowedLangs[profile.Name()]) {
		return nil
	}

	hash := fmt.Sprintf("%x", sha256.Sum256(src))
	existing, err := e.store.FileByPath(path)
	if err != nil {
		return fmt.Errorf("codeintel: lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		return nil // unchanged
	}

	var oldKeys map[symbolKey]string
	if existing != nil {
		oldKeys, err = captureSymbolKeys(e.store, existing.ID)
		if err != nil {
			return fmt.Errorf("codeintel: capture old symbols: %w", err)
		}
		if err := e.store.DeleteFileData(existing.ID); err != nil {
			return fmt.Errorf("codeintel: delete old data: %w", err)
		}
	}

	fi := index.Build(path, profile.Name(), src, profile)

	fileID, err := e.store.InsertFile(&store.File{
		Path: path, Language: profile.Name(), Hash: hash, Partial: fi.Partial,
	})
	if err != nil {
		return fmt.Errorf("codeintel: insert file: %w", err)
	}
	if err := index.Persist(e.store, fileID, fi); err != nil {
		return fmt.Errorf("codeintel: persist index: %w", err)
	}

	newKeys, err := captureSymbolKeys(e.store, fileID)
	if err != nil {
		return fmt.Errorf("codeintel: capture new symbols: %w", err)
	}

	dirty, err := e.computeBlastRadius(fileID, oldKeys, newKeys)
	if err != nil {
		return fmt.Errorf("codeintel: compute blast radius: %w", err)
	}
	e.markDirty(dirty...)
	return nil
}

// computeBlastRadius compares a file's symbol identities before and after a
// re-index and returns every file ID whose resolution could now be stale:
// the changed file itself, any file with a resolved reference targeting a
// signature-changed symbol, and (when symbols were added or removed) any
// file importing this one.
func (e *Engine) computeBlastRadius(fileID int64, oldKeys, newKeys map[symbolKey]string) ([]int64, error) {
	result := map[int64]bool{fileID: true}

	var affected []string
	hasAdded, hasRemoved := false, false
	for key, oldHash := range oldKeys {
		newHash, ok := newKeys[key]
		if !ok {
			hasRemoved = true
			continue
		}
		if newHash != oldHash {
			affected = append(affected, symbolIDFor(e.store, fileID, key))
		}
	}
	for key := range newKeys {
		if _, ok := oldKeys[key]; !ok {
			hasAdded = true
		}
	}

	if len(affected) > 0 {
		fids, err := e.store.FilesReferencingSymbols(affected)
		if err != nil {
			return nil, err
		}
		for _, fid := range fids {
			result[fid] = true
		}
	}

	if hasAdded || hasRemoved {
		p := pathOf(e.store, fileID)
		base := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		if base != "" {
			fids, err := e.store.FilesImportingSource(base)
			if err != nil {
				return nil, err
			}
			for _, fid := range fids {
				result[fid] = true
			}
		}
	}

	out := make([]int64, 0, len(result))
	for fid := range result {
		out = append(out, fid)
	}
	return out, nil
}

func pathOf(st *store.Store, fileID int64) string {
	files, err := st.AllFiles()
	if err != nil {
		return ""
	}
	for _, f := range files {
		if f.ID == fileID {
			return f.Path
		}
	}
	return ""
}

// symbolIDFor looks up the current SymbolId for a (name, kind, owner) key
// within fileID -- used to translate a removed/changed key from the old
// snapshot into a target id the store's resolved_references can match
// against (the old symbol's own id no longer exists once DeleteFileData ran).
func symbolIDFor(st *store.Store, fileID int64, key symbolKey) string {
	syms, err := st.SymbolsByFile(fileID)
	if err != nil {
		return ""
	}
	for _, sym := range syms {
		if sym.Name == key.Name && sym.Kind == key.Kind && sym.OwnerClass == key.OwnerClass {
			return sym.ID
		}
	}
	return ""
}

// RemoveFile implements remove_file(path): deletes every row owned by or
// derived from path and marks any file that referenced its symbols dirty.
func (e *Engine) RemoveFile(path string) error {
	f, err := e.store.FileByPath(path)
	if err != nil {
		return fmt.Errorf("codeintel: lookup file: %w", err)
	}
	if f == nil {
		return nil
	}
	oldKeys, err := captureSymbolKeys(e.store, f.ID)
	if err != nil {
		return fmt.Errorf("codeintel: capture symbols: %w", err)
	}
	var removedIDs []string
	for key := range oldKeys {
		if id := symbolIDFor(e.store, f.ID, key); id != "" {
			removedIDs = append(removedIDs, id)
		}
	}
	var dirty []int64
	if len(removedIDs) > 0 {
		fids, err := e.store.FilesReferencingSymbols(removedIDs)
		if err != nil {
			return fmt.Errorf("codeintel: find referencing files: %w", err)
		}
		dirty = fids
	}
	if err := e.store.DeleteFileData(f.ID); err != nil {
		return fmt.Errorf("codeintel: delete file data: %w", err)
	}
	e.markDirty(dirty...)
	return nil
}

var skipDirs = map[string]bool{
	"node_modules": true, "vendor": true, "__pycache__": true, ".git": true,
}

// IndexDirectory walks root and calls UpdateFile for every file with a
// supported extension. If root is inside a git repository, uses git
// ls-files so .gitignore is respected; otherwise falls back to a plain
// filesystem walk.
func (e *Engine) IndexDirectory(root string) error {
	return e.Initialize(root, nil)
}

// Initialize implements the spec's initialize(root_path, excluded_folders):
// it indexes every supported file under rootPath, skipping any whose path
// contains one of excludedFolders as a path segment. skipDirs's build/vendor
// directories are skipped only by the filesystem-walk fallback used when
// git ls-files fails; files listed by git are filtered by excludedFolders
// alone.
func (e *Engine) Initialize(rootPath string, excludedFolders []string) error {
	paths, err := gitListFiles(rootPath)
	if err != nil {
		paths, err = walkListFiles(rootPath)
		if err != nil {
			return err
		}
	}
	for _, p := range paths {
		if isExcluded(rootPath, p, excludedFolders) {
			continue
		}
		src, err := os.ReadFile(p)
		if err != nil {
			continue // unreadable file: skip, per §7's never-throw policy
		}
		if err := e.UpdateFile(p, src); err != nil {
			return fmt.Errorf("codeintel: index %s: %w", p, err)
		}
	}
	return nil
}

// isExcluded reports whether any path segment of p, relative to root,
// exactly matches one of excludedFolders.
func isExcluded(root, p string, excludedFolders []string) bool {
	if len(excludedFolders) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		rel = p
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, excluded := range excludedFolders {
			if seg == excluded {
				return true
			}
		}
	}
	return false
}

func gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}
	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		abs := filepath.Join(root, line)
		if _, ok := lang.ForPath(abs); ok {
			paths = append(paths, abs)
		}
	}
	return paths, nil
}

func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if strings.HasPrefix(name, ".") || skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := lang.ForPath(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// Resolve runs the reference resolver (C5/C6) over the accumulated blast
// radius, or the whole project on a first run. After Resolve returns, every
// query reflects all UpdateFile/RemoveFile calls made since the prior
// Resolve (§6's consistency guarantee).
func (e *Engine) Resolve() error {
	defer func() { e.blastRadius = nil }()

	if e.blastRadius != nil && len(e.blastRadius) == 0 {
		return nil
	}

	var fileIDs []int64
	if e.blastRadius != nil {
		for fid := range e.blastRadius {
			fileIDs = append(fileIDs, fid)
		}
	}
	return resolve.Project(e.store, fileIDs)
}

// CallGraph builds a fresh call-graph snapshot (C7) over the store's
// current resolved edges. Call after Resolve to see the latest graph.
func (e *Engine) CallGraph() (*graph.Graph, error) {
	return graph.Build(e.store)
}

// Snapshot loads a fresh project registry snapshot (C4) for direct query
// access (exports, imports, scopes, member index).
func (e *Engine) Snapshot() (*registry.Snapshot, error) {
	return registry.Load(e.store)
}

// Clear implements the spec's clear(): drops every indexed fact and
// resets the blast radius, leaving the Engine as if newly constructed.
func (e *Engine) Clear() error {
	files, err := e.store.AllFiles()
	if err != nil {
		return fmt.Errorf("codeintel: list files: %w", err)
	}
	for _, f := range files {
		if err := e.store.DeleteFileData(f.ID); err != nil {
			return fmt.Errorf("codeintel: clear file %s: %w", f.Path, err)
		}
	}
	e.blastRadius = nil
	return nil
}

// Stats summarizes the current index for the spec's get_stats().
type Stats struct {
	FileCount       int
	SymbolCount     int
	ReferenceCount  int
	ResolvedCount   int
	DiagnosticCount int
}

// Stats implements get_stats(): simple counts over the current store.
func (e *Engine) Stats() (Stats, error) {
	files, err := e.store.AllFiles()
	if err != nil {
		return Stats{}, err
	}
	symbols, err := e.store.AllSymbols()
	if err != nil {
		return Stats{}, err
	}
	refs, err := e.store.AllReferences()
	if err != nil {
		return Stats{}, err
	}
	resolved, err := e.store.AllResolvedReferences()
	if err != nil {
		return Stats{}, err
	}
	var diagCount int
	for _, f := range files {
		diags, err := e.store.DiagnosticsByFile(f.ID)
		if err != nil {
			return Stats{}, err
		}
		diagCount += len(diags)
	}
	return Stats{
		FileCount: len(files), SymbolCount: len(symbols), ReferenceCount: len(refs),
		ResolvedCount: len(resolved), DiagnosticCount: diagCount,
	}, nil
}
