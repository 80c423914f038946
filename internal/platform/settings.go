package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	fsadapter "github.com/aretw0/folio/pkg/adapters/fs"
	"github.com/aretw0/folio/pkg/docsys"
)

const settingsVersion = 1

type settingsFile struct {
	Version         int `yaml:"version"`
	docsys.Settings `yaml:",inline"`
}

// LoadSettings reads a settings file. A missing file yields empty settings.
func LoadSettings(path string) (docsys.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return docsys.Settings{}, nil
		}
		return docsys.Settings{}, err
	}

	var f settingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return docsys.Settings{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if f.Version > settingsVersion {
		return docsys.Settings{}, fmt.Errorf("%s: unsupported settings version %d", path, f.Version)
	}
	return f.Settings, nil
}

// SaveSettings writes the settings file atomically, creating its directory.
func SaveSettings(path string, st docsys.Settings) error {
	data, err := yaml.Marshal(settingsFile{Version: settingsVersion, Settings: st})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	_, err = fsadapter.NewStore().Write(path, data)
	return err
}
