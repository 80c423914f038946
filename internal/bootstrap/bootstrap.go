// Package bootstrap is the boundary between process start and the document
// system: it finds plugin manifests, orders them, insists on the Core plugin
// and warns when running with elevated privileges.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sourcegraph/conc/pool"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/folio/pkg/core"
)

// ManifestPattern matches plugin manifests below a plugin directory.
const ManifestPattern = "**/*.plugin.yaml"

// CoreName is the plugin every run requires.
const CoreName = "Core"

// PluginSpec is a parsed plugin manifest.
type PluginSpec struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Disabled     bool     `yaml:"disabled"`
	Dependencies []string `yaml:"dependencies"`

	Path  string `yaml:"-"`
	Error string `yaml:"-"` // set when the manifest could not be used
}

func (s PluginSpec) Enabled() bool {
	return !s.Disabled
}

func (s PluginSpec) HasError() bool {
	return s.Error != ""
}

// Phase is a step of the bootstrap shown to the user.
type Phase int

const (
	PhaseDiscovery Phase = iota
	PhaseLoading
)

func (p Phase) String() string {
	if p == PhaseLoading {
		return core.PhaseLoading
	}
	return core.PhaseSearching
}

// Discover finds and parses every manifest below dirs. Manifests that fail
// to parse are returned with Error set rather than failing the discovery.
func Discover(ctx context.Context, dirs []string) ([]PluginSpec, error) {
	var paths []string
	for _, dir := range dirs {
		matches, err := doublestar.Glob(os.DirFS(dir), ManifestPattern)
		if err != nil {
			return nil, fmt.Errorf("failed to search %s: %w", dir, err)
		}
		for _, m := range matches {
			paths = append(paths, filepath.Join(dir, filepath.FromSlash(m)))
		}
	}

	p := pool.NewWithResults[PluginSpec]().WithContext(ctx).WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for _, path := range paths {
		p.Go(func(ctx context.Context) (PluginSpec, error) {
			return parseManifest(path), nil
		})
	}
	specs, err := p.Wait()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(specs, func(a, b PluginSpec) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return specs, nil
}

func parseManifest(path string) PluginSpec {
	fallback := strings.TrimSuffix(filepath.Base(path), ".plugin.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return PluginSpec{Name: fallback, Path: path, Error: err.Error()}
	}
	var plugin PluginSpec
	if err := yaml.Unmarshal(data, &plugin); err != nil {
		return PluginSpec{Name: fallback, Path: path, Error: fmt.Sprintf("invalid manifest: %v", err)}
	}
	plugin.Path = path
	if plugin.Name == "" {
		plugin.Name = fallback
		plugin.Error = "manifest has no name"
	}
	return plugin
}

// Order sorts specs so every plugin follows its dependencies. Ties keep
// name order. A missing dependency or a cycle is an error.
func Order(specs []PluginSpec) ([]PluginSpec, error) {
	byName := make(map[string]PluginSpec, len(specs))
	for _, s := range specs {
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("plugin %s is defined twice", s.Name)
		}
		byName[s.Name] = s
	}

	indegree := make(map[string]int, len(specs))
	dependents := make(map[string][]string)
	for _, s := range specs {
		indegree[s.Name] += 0
		for _, dep := range s.Dependencies {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("plugin %s depends on missing plugin %s", s.Name, dep)
			}
			indegree[s.Name]++
			dependents[dep] = append(dependents[dep], s.Name)
		}
	}

	var ready []string
	for name, n := range indegree {
		if n == 0 {
			ready = append(ready, name)
		}
	}
	slices.Sort(ready)

	ordered := make([]PluginSpec, 0, len(specs))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byName[name])
		for _, d := range dependents[name] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
				slices.Sort(ready)
			}
		}
	}
	if len(ordered) != len(specs) {
		var stuck []string
		for name, n := range indegree {
			if n > 0 {
				stuck = append(stuck, name)
			}
		}
		slices.Sort(stuck)
		return nil, fmt.Errorf("dependency cycle among %s", strings.Join(stuck, ", "))
	}
	return ordered, nil
}

// RequireCore fails with a FatalBootstrapError unless the named plugin is
// present, enabled and healthy.
func RequireCore(specs []PluginSpec, name string) error {
	i := slices.IndexFunc(specs, func(s PluginSpec) bool { return s.Name == name })
	switch {
	case i < 0:
		return &core.FatalBootstrapError{Reason: core.ReasonCoreMissing}
	case !specs[i].Enabled():
		return &core.FatalBootstrapError{Reason: core.ReasonCoreDisabled}
	case specs[i].HasError():
		return &core.FatalBootstrapError{Reason: specs[i].Error}
	}
	return nil
}

// isElevated is swapped in tests.
var isElevated = func() bool {
	return os.Geteuid() == 0
}

func elevatedAccount() string {
	if runtime.GOOS == "windows" {
		return "Administrator"
	}
	return "Root"
}

// ElevatedWarning returns the warning to show when app runs elevated.
// It never blocks the start.
func ElevatedWarning(app string) (string, bool) {
	if !isElevated() {
		return "", false
	}
	return core.ElevatedWarning(app, elevatedAccount()), true
}

// Config drives Run.
type Config struct {
	App        string
	PluginDirs []string
	CoreName   string
	AllowRoot  bool
	Logger     *slog.Logger
	OnPhase    func(Phase)
	OnWarning  func(string)
}

// Run performs the whole bootstrap and returns the enabled plugins in load
// order. Without plugin directories there is nothing to check.
func Run(ctx context.Context, cfg Config) ([]PluginSpec, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.CoreName == "" {
		cfg.CoreName = CoreName
	}
	phase := func(p Phase) {
		cfg.Logger.Info(p.String())
		if cfg.OnPhase != nil {
			cfg.OnPhase(p)
		}
	}

	if !cfg.AllowRoot {
		if msg, ok := ElevatedWarning(cfg.App); ok {
			cfg.Logger.Warn(msg)
			if cfg.OnWarning != nil {
				cfg.OnWarning(msg)
			}
		}
	}
	if len(cfg.PluginDirs) == 0 {
		return nil, nil
	}

	phase(PhaseDiscovery)
	specs, err := Discover(ctx, cfg.PluginDirs)
	if err != nil {
		return nil, err
	}
	if err := RequireCore(specs, cfg.CoreName); err != nil {
		return nil, err
	}
	ordered, err := Order(specs)
	if err != nil {
		return nil, err
	}

	phase(PhaseLoading)
	loaded := ordered[:0]
	for _, s := range ordered {
		switch {
		case !s.Enabled():
			cfg.Logger.Debug("plugin disabled", "name", s.Name)
		case s.HasError():
			cfg.Logger.Warn("plugin not loaded", "name", s.Name, "error", s.Error)
		default:
			cfg.Logger.Debug("plugin loaded", "name", s.Name, "version", s.Version)
			loaded = append(loaded, s)
		}
	}
	return loaded, nil
}
