package model

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/23skdu/longbow-bench/internal/config"
	"github.com/23skdu/longbow-bench/internal/gguf"
	"github.com/23skdu/longbow-bench/internal/tokenizer"
)

// LoadContext is what an architecture gets to build a Model from.
// File is closed after Load returns, so weights must be copied out.
type LoadContext struct {
	File            *gguf.GGUFFile
	Hyperparameters config.Hyperparameters
	Tokenizer       tokenizer.Tokenizer
	Params          config.ModelParameters
	Progress        ProgressFunc
}

// Architecture is a registered model family.
type Architecture struct {
	Name string
	// Aliases are other general.architecture values this loader accepts.
	Aliases []string
	Load    func(ctx *LoadContext) (Model, error)
}

func (a *Architecture) String() string { return a.Name }

func (a *Architecture) matches(name string) bool {
	name = strings.ToLower(name)
	if name == a.Name {
		return true
	}
	for _, alias := range a.Aliases {
		if name == alias {
			return true
		}
	}
	return false
}

var (
	registryMu    sync.RWMutex
	architectures = map[string]*Architecture{}
)

// Register adds a to the registry. Registering a name twice panics.
func Register(a *Architecture) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if a.Name == "" || a.Load == nil {
		panic("model: Register with empty name or nil loader")
	}
	if _, dup := architectures[a.Name]; dup {
		panic("model: architecture registered twice: " + a.Name)
	}
	architectures[a.Name] = a
}

// Lookup finds an architecture by name or alias, case-insensitively.
func Lookup(name string) (*Architecture, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if a, ok := architectures[strings.ToLower(name)]; ok {
		return a, true
	}
	for _, a := range architectures {
		if a.matches(name) {
			return a, true
		}
	}
	return nil, false
}

// Architectures lists registered names in order.
func Architectures() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(architectures))
	for name := range architectures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseArchitecture maps a command-line selector to an architecture.
// "auto" and "" return nil, meaning detect from the file.
func ParseArchitecture(s string) (*Architecture, error) {
	if s == "" || strings.EqualFold(s, "auto") {
		return nil, nil
	}
	a, ok := Lookup(s)
	if !ok {
		return nil, fmt.Errorf("unknown architecture %q (known: %s)", s, strings.Join(Architectures(), ", "))
	}
	return a, nil
}
