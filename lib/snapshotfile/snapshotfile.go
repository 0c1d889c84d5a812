// Package snapshotfile persists JSON documents to disk and validates them
// against a schema when they are read back.
package snapshotfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"eamis-catcher/lib/schema"
)

const indent = "    "

// Write serializes v as indented JSON to path. The file is written to a
// temporary sibling first so a failed write never truncates an existing
// snapshot.
func Write[T any](path string, v T) error {
	buff, err := json.MarshalIndent(v, "", indent)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	buff = append(buff, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	// CreateTemp opens the file as 0600
	err = tmp.Chmod(0o644)
	if err == nil {
		_, err = tmp.Write(buff)
	}
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot file: %w", err)
	}
	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}
	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}
	return nil
}

// Read loads the JSON document at path, checks it against shape and decodes
// it into a T.
func Read[T any](path string, shape *schema.Shape) (T, error) {
	var zero T
	buff, err := os.ReadFile(path)
	if err != nil {
		return zero, fmt.Errorf("read snapshot file: %w", err)
	}

	var tree any
	err = json.Unmarshal(buff, &tree)
	if err != nil {
		return zero, fmt.Errorf("parse snapshot file %s: %w", path, err)
	}
	out, err := schema.Decode[T](tree, shape)
	if err != nil {
		return zero, fmt.Errorf("snapshot file %s: %w", path, err)
	}
	return out, nil
}
