package config

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/dynamic-mcp/domain/config"
	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/logging"
)

// Manifest is a file listing externally backed tools.
type Manifest struct {
	Tools []config.ExternalToolConfig `json:"tools" yaml:"tools"`
}

// LoadManifest reads and validates a tool manifest.
func (l *Loader) LoadManifest(path string) (*Manifest, error) {
	data, format, err := l.readFile(path)
	if err != nil {
		return nil, err
	}

	m := &Manifest{}
	if err := l.decode(data, format, m); err != nil {
		return nil, err
	}

	var errs config.ValidationErrors
	seen := make(map[string]bool, len(m.Tools))
	for i, ext := range m.Tools {
		for _, e := range config.ValidateExternalTool(ext) {
			errs = append(errs, config.ValidationError{Path: fmt.Sprintf("tools[%d].%s", i, e.Path), Message: e.Message})
		}
		if ext.Name != "" && seen[ext.Name] {
			errs = append(errs, config.ValidationError{Path: fmt.Sprintf("tools[%d].name", i), Message: "duplicate tool " + ext.Name})
		}
		seen[ext.Name] = true
	}
	if errs.HasErrors() {
		return nil, fmt.Errorf("%w: %v", config.ErrValidationFailed, errs)
	}
	return m, nil
}

// Registrar is the part of the registry a manifest drives.
type Registrar interface {
	Register(descs ...*tool.Descriptor) error
	Unregister(name string) (bool, error)
	Lookup(name string) (*tool.Descriptor, bool)
}

// ToolFactory turns a manifest entry into a descriptor.
type ToolFactory func(config.ExternalToolConfig) (*tool.Descriptor, error)

// ManifestSync keeps the registry in line with a manifest. It only removes
// tools it registered itself, and never replaces a tool that is not
// tagged tool.TagExternal.
type ManifestSync struct {
	registrar Registrar
	factory   ToolFactory
	forget    func(name string)

	mu      sync.Mutex
	applied map[string]string
}

// SyncOption configures a ManifestSync.
type SyncOption func(*ManifestSync)

// WithForget sets a hook called for every tool the sync unregisters.
func WithForget(fn func(name string)) SyncOption {
	return func(s *ManifestSync) {
		s.forget = fn
	}
}

// NewManifestSync creates a sync that builds tools with factory.
func NewManifestSync(registrar Registrar, factory ToolFactory, opts ...SyncOption) *ManifestSync {
	s := &ManifestSync{
		registrar: registrar,
		factory:   factory,
		forget:    func(string) {},
		applied:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply registers new or changed tools in one batch and unregisters tools
// that left the manifest. It returns the names registered and removed.
func (s *ManifestSync) Apply(m *Manifest) (registered, removed []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(m.Tools))
	var descs []*tool.Descriptor
	for _, ext := range m.Tools {
		if s.reserved(ext.Name) {
			logging.Warn().
				Add(logging.Component("manifest")).
				Add(logging.ToolName(ext.Name)).
				Msg("manifest entry skipped, name belongs to a built-in tool")
			continue
		}
		fp, err := json.Marshal(ext)
		if err != nil {
			return nil, nil, fmt.Errorf("fingerprint %s: %w", ext.Name, err)
		}
		next[ext.Name] = string(fp)
		if s.applied[ext.Name] == string(fp) {
			continue
		}
		d, err := s.factory(ext)
		if err != nil {
			return nil, nil, fmt.Errorf("build tool %s: %w", ext.Name, err)
		}
		descs = append(descs, d)
		registered = append(registered, ext.Name)
	}

	if err := s.registrar.Register(descs...); err != nil {
		return nil, nil, err
	}

	for name := range s.applied {
		if _, ok := next[name]; ok {
			continue
		}
		if _, err := s.registrar.Unregister(name); err != nil {
			return registered, removed, err
		}
		s.forget(name)
		removed = append(removed, name)
	}
	slices.Sort(removed)

	s.applied = next
	return registered, removed, nil
}

// reserved reports whether name is taken by a tool the sync must not touch.
func (s *ManifestSync) reserved(name string) bool {
	if _, owned := s.applied[name]; owned {
		return false
	}
	d, ok := s.registrar.Lookup(name)
	return ok && !d.HasTag(tool.TagExternal)
}

// ManifestWatcher reloads a manifest file whenever it changes on disk.
type ManifestWatcher struct {
	path     string
	loader   *Loader
	syncer   *ManifestSync
	debounce time.Duration
}

// NewManifestWatcher creates a watcher for the manifest at path.
func NewManifestWatcher(path string, loader *Loader, syncer *ManifestSync) *ManifestWatcher {
	return &ManifestWatcher{
		path:     path,
		loader:   loader,
		syncer:   syncer,
		debounce: 100 * time.Millisecond,
	}
}

// Reload loads the manifest and applies it.
func (w *ManifestWatcher) Reload() error {
	m, err := w.loader.LoadManifest(w.path)
	if err != nil {
		return err
	}
	registered, removed, err := w.syncer.Apply(m)
	if err != nil {
		return err
	}
	logging.Info().
		Add(logging.Component("manifest")).
		Add(logging.Str("path", w.path)).
		Add(logging.Int("registered", len(registered))).
		Add(logging.Int("removed", len(removed))).
		Msg("manifest applied")
	return nil
}

// Run applies the manifest once and then on every change until ctx is done.
// A manifest that fails to load leaves the registry as it was.
func (w *ManifestWatcher) Run(ctx context.Context) error {
	absPath, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	if err := w.Reload(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Editors replace files by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", absPath, err)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn().
				Add(logging.Component("manifest")).
				Add(logging.ErrorField(err)).
				Msg("watch error")
		case <-timer.C:
			if err := w.Reload(); err != nil {
				logging.Warn().
					Add(logging.Component("manifest")).
					Add(logging.Str("path", w.path)).
					Add(logging.ErrorField(err)).
					Msg("manifest reload failed")
			}
		}
	}
}
