// internal/platform/registry/module_registry.go
package registry

import (
	"path"
	"sort"
	"sync"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/errors"
	"droidsweep/internal/platform/logx"
)

// ModuleRegistry gestiona el registro y construcción de módulos de análisis.
// Cada módulo es un nombre, una factory de artifacts y los nombres de archivo
// que acepta dentro del bundle.
type ModuleRegistry struct {
	mu        sync.RWMutex
	factories map[string]ports.ArtifactFactory
	metadata  map[string]ports.ModuleMetadata
	logger    logx.Logger
}

var (
	globalRegistry *ModuleRegistry
	once           sync.Once
)

// Global retorna la instancia global del registry. Los paquetes de artifacts
// se registran en ella desde init().
func Global() *ModuleRegistry {
	once.Do(func() {
		globalRegistry = NewModuleRegistry(logx.New())
	})
	return globalRegistry
}

// NewModuleRegistry crea un registry vacío.
func NewModuleRegistry(logger logx.Logger) *ModuleRegistry {
	if logger == nil {
		logger = logx.New()
	}
	return &ModuleRegistry{
		factories: make(map[string]ports.ArtifactFactory),
		metadata:  make(map[string]ports.ModuleMetadata),
		logger:    logger.With("component", "module-registry"),
	}
}

// Register añade un módulo. Si meta.Name o meta.Paths están vacíos se toman
// de una instancia construida con factory.
func (r *ModuleRegistry) Register(factory ports.ArtifactFactory, meta ports.ModuleMetadata) error {
	if factory == nil {
		return errors.Wrapf(domain.ErrInvalidModule, "nil factory for module %q", meta.Name)
	}
	if meta.Name == "" || len(meta.Paths) == 0 {
		sample := factory()
		if sample == nil {
			return errors.Wrapf(domain.ErrInvalidModule, "factory for module %q returned nil", meta.Name)
		}
		if meta.Name == "" {
			meta.Name = sample.Name()
		}
		if len(meta.Paths) == 0 {
			meta.Paths = sample.Paths()
		}
	}
	if meta.Name == "" {
		return errors.Wrap(domain.ErrInvalidModule, "module name cannot be empty")
	}
	meta.Paths = append([]string(nil), meta.Paths...)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[meta.Name]; exists {
		return errors.Wrapf(domain.ErrDuplicateModule, "module %s", meta.Name)
	}
	r.factories[meta.Name] = factory
	r.metadata[meta.Name] = meta
	r.logger.Debug("module registered", "name", meta.Name, "paths", meta.Paths, "priority", meta.Priority)
	return nil
}

// MustRegister es Register para bloques init(). Un fallo se loguea, no es fatal.
func (r *ModuleRegistry) MustRegister(factory ports.ArtifactFactory, meta ports.ModuleMetadata) {
	if err := r.Register(factory, meta); err != nil {
		r.logger.Warn("failed to register module", "module", meta.Name, "error", err.Error())
	}
}

// Build construye un artifact nuevo para name junto con su metadata.
func (r *ModuleRegistry) Build(name string) (ports.Artifact, ports.ModuleMetadata, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	meta := r.metadata[name]
	r.mu.RUnlock()

	if !ok {
		return nil, ports.ModuleMetadata{}, errors.Wrapf(domain.ErrUnknownModule, "module %q", name)
	}
	a := factory()
	if a == nil {
		return nil, meta, errors.Wrapf(domain.ErrInvalidModule, "factory for module %q returned nil", name)
	}
	return a, meta, nil
}

// Select resuelve names en orden de ejecución. Una lista vacía selecciona
// todos los módulos. Los nombres desconocidos se devuelven como errores.
func (r *ModuleRegistry) Select(names []string) ([]string, []error) {
	if len(names) == 0 {
		return r.Ordered(), nil
	}

	r.mu.RLock()
	var (
		selected []string
		errs     []error
		seen     = make(map[string]bool)
	)
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		if _, ok := r.factories[n]; !ok {
			errs = append(errs, errors.Wrapf(domain.ErrUnknownModule, "module %q", n))
			continue
		}
		selected = append(selected, n)
	}
	r.mu.RUnlock()

	r.sortByPriority(selected)
	return selected, errs
}

// Ordered retorna todos los módulos por prioridad (mayor primero), luego peso
// (menor primero), luego nombre.
func (r *ModuleRegistry) Ordered() []string {
	names := r.List()
	r.sortByPriority(names)
	return names
}

func (r *ModuleRegistry) sortByPriority(names []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sort.SliceStable(names, func(i, j int) bool {
		a, b := r.metadata[names[i]], r.metadata[names[j]]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Weight != b.Weight {
			return a.Weight < b.Weight
		}
		return names[i] < names[j]
	})
}

// ForFile retorna los módulos que aceptan fileName según los globs de sus
// paths. Solo cuenta el nombre base de fileName.
func (r *ModuleRegistry) ForFile(fileName string) []string {
	base := path.Base(fileName)

	r.mu.RLock()
	var out []string
	for name, meta := range r.metadata {
		for _, p := range meta.Paths {
			if ok, _ := path.Match(p, base); ok {
				out = append(out, name)
				break
			}
		}
	}
	r.mu.RUnlock()

	r.sortByPriority(out)
	return out
}

// List retorna los nombres de todos los módulos registrados, ordenados.
func (r *ModuleRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetMetadata retorna el metadata de un módulo.
func (r *ModuleRegistry) GetMetadata(name string) (ports.ModuleMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, exists := r.metadata[name]
	return meta, exists
}

// GetAllMetadata retorna una copia del metadata de todos los módulos.
func (r *ModuleRegistry) GetAllMetadata() map[string]ports.ModuleMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]ports.ModuleMetadata, len(r.metadata))
	for name, meta := range r.metadata {
		result[name] = meta
	}
	return result
}

// IsRegistered verifica si un módulo está registrado.
func (r *ModuleRegistry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[name]
	return exists
}

// Len retorna el número de módulos registrados.
func (r *ModuleRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// Clear elimina todos los módulos registrados (útil para testing).
func (r *ModuleRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories = make(map[string]ports.ArtifactFactory)
	r.metadata = make(map[string]ports.ModuleMetadata)
}
