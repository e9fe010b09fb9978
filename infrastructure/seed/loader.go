// Package seed loads the permissions a provider holds at install time
// from YAML files selected by a doublestar glob.
package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/reglet-dev/reglet-broker/domain/entities"
	"gopkg.in/yaml.v3"
)

// DefaultPattern matches every YAML file below the seed directory.
const DefaultPattern = "**/*.{yaml,yml}"

// Loader reads seed permissions from a file system.
type Loader struct {
	fsys    fs.FS
	pattern string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPattern sets the glob selecting seed files.
func WithPattern(pattern string) LoaderOption {
	return func(l *Loader) {
		if pattern != "" {
			l.pattern = pattern
		}
	}
}

// NewLoader reads seeds from fsys.
func NewLoader(fsys fs.FS, opts ...LoaderOption) *Loader {
	l := &Loader{fsys: fsys, pattern: DefaultPattern}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewDirLoader reads seeds below dir on the local disk.
func NewDirLoader(dir string, opts ...LoaderOption) *Loader {
	return NewLoader(os.DirFS(dir), opts...)
}

// Load returns the permissions of every matching file in lexical path
// order. Each file holds one or more YAML documents, each either a single
// permission or a list of them.
func (l *Loader) Load() ([]entities.StoredPermission, error) {
	if !doublestar.ValidatePattern(l.pattern) {
		return nil, fmt.Errorf("invalid seed pattern %q", l.pattern)
	}
	paths, err := doublestar.Glob(l.fsys, l.pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob seed files: %w", err)
	}

	var out []entities.StoredPermission
	for _, path := range paths {
		data, err := fs.ReadFile(l.fsys, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed %s: %w", path, err)
		}
		perms, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", path, err)
		}
		out = append(out, perms...)
	}
	return out, nil
}

// Parse decodes the permissions in one seed document stream.
func Parse(data []byte) ([]entities.StoredPermission, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var out []entities.StoredPermission
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}

		doc := &node
		if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
			doc = doc.Content[0]
		}

		var batch []entities.StoredPermission
		switch doc.Kind {
		case yaml.SequenceNode:
			if err := doc.Decode(&batch); err != nil {
				return nil, fmt.Errorf("failed to decode permissions: %w", err)
			}
		case yaml.MappingNode:
			var perm entities.StoredPermission
			if err := doc.Decode(&perm); err != nil {
				return nil, fmt.Errorf("failed to decode permission: %w", err)
			}
			batch = append(batch, perm)
		default:
			continue
		}

		for i, perm := range batch {
			if err := entities.ValidateStruct(perm); err != nil {
				return nil, fmt.Errorf("permission %d (line %d): %w", i, doc.Line, err)
			}
		}
		out = append(out, batch...)
	}
}
