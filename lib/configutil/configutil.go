package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// LocalPath returns the path of the local override for a config file,
// "config.json5" becomes "config.local.json5".
func LocalPath(name string) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s.local%s", strings.TrimSuffix(name, ext), ext)
}

func readLayer[T any](path string) (T, bool, error) {
	var out T
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(contents) == 0 {
		return out, false, nil
	}
	err = json5.Unmarshal(contents, &out)
	if err != nil {
		return out, false, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, true, nil
}

// ReadConfig reads a configuration file, `name` should come with a file extension.
// this function will merge the following files, where higher number is more prioritized.
// 1. <name>.<ext>
// 2. <name>.local.<ext>
//
// os.ErrNotExist is returned when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var zero T
	return ReadConfigWithDefaults(name, zero)
}

// ReadConfigWithDefaults is ReadConfig, but the files are layered on top of defaults.
func ReadConfigWithDefaults[T any](name string, defaults T) (T, error) {
	out := defaults

	base, found, err := readLayer[T](name)
	if err != nil {
		return out, err
	}
	if found {
		err = mergo.Merge(&out, base, mergo.WithOverride)
		if err != nil {
			return out, err
		}
	}

	localPath := LocalPath(name)
	local, localFound, err := readLayer[T](localPath)
	if err != nil {
		return out, err
	}
	if localFound {
		err = mergo.Merge(&out, local, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localPath)
	}

	if !found && !localFound {
		return out, os.ErrNotExist
	}
	return out, nil
}
