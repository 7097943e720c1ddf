// Package ollama resolves ollama://name[:tag] model references to GGUF blobs
// in the local Ollama store.
package ollama

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/23skdu/longbow-bench/internal/logger"
)

const (
	Scheme           = "ollama://"
	DefaultTag       = "latest"
	DefaultRegistry  = "registry.ollama.ai"
	DefaultNamespace = "library"
	MediaTypeModel   = "application/vnd.ollama.image.model"
)

var ErrNoModelLayer = errors.New("no model layer found in manifest")

type Manifest struct {
	SchemaVersion int     `json:"schemaVersion"`
	Layers        []Layer `json:"layers"`
}

type Layer struct {
	MediaType string `json:"mediaType"`
	Digest    string `json:"digest"`
	Size      int64  `json:"size"`
}

// Reference names a model in the store.
type Reference struct {
	Registry  string
	Namespace string
	Name      string
	Tag       string
}

func (r Reference) String() string {
	return fmt.Sprintf("%s/%s/%s:%s", r.Registry, r.Namespace, r.Name, r.Tag)
}

// IsReference reports whether path uses the ollama:// scheme.
func IsReference(path string) bool {
	return strings.HasPrefix(path, Scheme)
}

// ParseReference accepts "name", "name:tag", "namespace/name:tag" and
// "registry/namespace/name:tag", with or without the ollama:// prefix.
func ParseReference(s string) (Reference, error) {
	s = strings.TrimPrefix(s, Scheme)
	ref := Reference{Registry: DefaultRegistry, Namespace: DefaultNamespace, Tag: DefaultTag}

	if i := strings.LastIndex(s, ":"); i > strings.LastIndex(s, "/") {
		ref.Tag = s[i+1:]
		s = s[:i]
	}
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 1:
		ref.Name = parts[0]
	case 2:
		ref.Namespace, ref.Name = parts[0], parts[1]
	case 3:
		ref.Registry, ref.Namespace, ref.Name = parts[0], parts[1], parts[2]
	default:
		return Reference{}, fmt.Errorf("invalid model reference %q", s)
	}
	for _, p := range []string{ref.Registry, ref.Namespace, ref.Name, ref.Tag} {
		if p == "" {
			return Reference{}, fmt.Errorf("invalid model reference %q", s)
		}
	}
	return ref, nil
}

func GetOllamaDir() (string, error) {
	if env := os.Getenv("OLLAMA_MODELS"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ollama", "models"), nil
}

// ResolveModelPath returns the blob path for a model reference in the
// default store.
func ResolveModelPath(model string) (string, error) {
	baseDir, err := GetOllamaDir()
	if err != nil {
		return "", err
	}
	return Resolve(baseDir, model)
}

// Resolve looks model up under baseDir.
func Resolve(baseDir, model string) (string, error) {
	ref, err := ParseReference(model)
	if err != nil {
		return "", err
	}

	manifestPath := filepath.Join(baseDir, "manifests", ref.Registry, ref.Namespace, ref.Name, ref.Tag)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return "", fmt.Errorf("read manifest for %s: %w", ref, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("parse manifest %s: %w", manifestPath, err)
	}

	var digest string
	for _, l := range m.Layers {
		if l.MediaType == MediaTypeModel {
			digest = l.Digest
			break
		}
	}
	if digest == "" {
		return "", fmt.Errorf("%s: %w", ref, ErrNoModelLayer)
	}

	// Digest "sha256:<hash>" is stored as blobs/sha256-<hash>.
	blobPath := filepath.Join(baseDir, "blobs", strings.Replace(digest, ":", "-", 1))
	if _, err := os.Stat(blobPath); err != nil {
		return "", fmt.Errorf("model blob for %s: %w", ref, err)
	}

	logger.Log.Debug("Resolved ollama model", "ref", ref.String(), "blob", blobPath)
	return blobPath, nil
}
