// Package dependency maintains the integration dependency graph: forward and
// reverse adjacency, the set of enabled nodes, topological ordering, cycle
// detection and enable/disable impact analysis. It knows nothing about
// integrations beyond their IDs.
package dependency

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/bizhub/integrations/internal/domain/shared"
)

// DefaultTreeDepth bounds GetDependencyTree and GetDependentsTree when no
// explicit depth is given.
const DefaultTreeDepth = 3

// ErrCircularDependency is returned when required edges form a cycle
var ErrCircularDependency = shared.NewDomainError("CIRCULAR_DEPENDENCY", "Circular dependency detected")

// Dependency is an edge owned by the depending integration
type Dependency struct {
	IntegrationID string `json:"integration_id" toml:"integration_id" validate:"required"`
	Required      bool   `json:"required" toml:"required"`
}

// Manager holds the dependency graph.
// Iteration always follows registration order and, per node, declaration
// order, so every result is deterministic.
type Manager struct {
	mu         sync.RWMutex
	order      []string
	deps       map[string][]Dependency
	dependents map[string][]string
	enabled    map[string]struct{}
}

// NewManager creates an empty dependency manager
func NewManager() *Manager {
	return &Manager{
		order:      make([]string, 0),
		deps:       make(map[string][]Dependency),
		dependents: make(map[string][]string),
		enabled:    make(map[string]struct{}),
	}
}

// RegisterDependencies records the dependencies of id, replacing any previous set
func (m *Manager) RegisterDependencies(id string, deps []Dependency) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, exists := m.deps[id]; exists {
		m.removeReverseEdges(id, old)
	} else {
		m.order = append(m.order, id)
	}

	copied := make([]Dependency, len(deps))
	copy(copied, deps)
	m.deps[id] = copied

	for _, dep := range copied {
		if !slices.Contains(m.dependents[dep.IntegrationID], id) {
			m.dependents[dep.IntegrationID] = append(m.dependents[dep.IntegrationID], id)
		}
	}
}

// UnregisterDependencies removes id's forward edges, its reverse entries and its enabled flag
func (m *Manager) UnregisterDependencies(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, exists := m.deps[id]
	if !exists {
		return
	}
	m.removeReverseEdges(id, old)
	delete(m.deps, id)
	delete(m.enabled, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
}

// removeReverseEdges must be called with mu held
func (m *Manager) removeReverseEdges(id string, deps []Dependency) {
	for _, dep := range deps {
		remaining := slices.DeleteFunc(m.dependents[dep.IntegrationID], func(s string) bool { return s == id })
		if len(remaining) == 0 {
			delete(m.dependents, dep.IntegrationID)
			continue
		}
		m.dependents[dep.IntegrationID] = remaining
	}
}

// SetEnabled marks id enabled or disabled
func (m *Manager) SetEnabled(id string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if enabled {
		m.enabled[id] = struct{}{}
		return
	}
	delete(m.enabled, id)
}

// IsEnabled reports whether id is currently enabled
func (m *Manager) IsEnabled(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.enabled[id]
	return ok
}

// GetDependencies returns a copy of id's declared dependencies
func (m *Manager) GetDependencies(id string) []Dependency {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.deps[id])
}

// GetDependents returns every registered integration that declares a dependency on id
func (m *Manager) GetDependents(id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registeredDependents(id)
}

// GetMissingDependencies returns the required dependencies of id that are not enabled
func (m *Manager) GetMissingDependencies(id string) []Dependency {
	m.mu.RLock()
	defer m.mu.RUnlock()

	missing := make([]Dependency, 0)
	for _, dep := range m.deps[id] {
		if dep.Required && !m.isEnabled(dep.IntegrationID) {
			missing = append(missing, dep)
		}
	}
	return missing
}

// GetEnabledDependents returns dependents of id that are registered and enabled
func (m *Manager) GetEnabledDependents(id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabledDependents(id)
}

// GetInstallationOrder returns ids, plus everything they transitively require,
// ordered so that each required dependency precedes its dependent.
// A cycle among required edges is a configuration error and is returned as
// ErrCircularDependency.
func (m *Manager) GetInstallationOrder(ids []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	path := make([]string, 0)
	order := make([]string, 0, len(ids))

	var visit func(id string) error
	visit = func(id string) error {
		if visited[id] {
			return nil
		}
		if visiting[id] {
			cycle := append(cycleFrom(path, id), id)
			return fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(cycle, " -> "))
		}

		visiting[id] = true
		path = append(path, id)
		for _, dep := range m.deps[id] {
			if !dep.Required {
				continue
			}
			if err := visit(dep.IntegrationID); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		delete(visiting, id)

		visited[id] = true
		order = append(order, id)
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// GetRemovalOrder is the exact reverse of GetInstallationOrder
func (m *Manager) GetRemovalOrder(ids []string) ([]string, error) {
	order, err := m.GetInstallationOrder(ids)
	if err != nil {
		return nil, err
	}
	slices.Reverse(order)
	return order, nil
}

// DetectCircularDependencies walks the whole graph and reports every cycle
// found among required edges. Each cycle lists its members once, starting
// from the node where the walk entered it.
func (m *Manager) DetectCircularDependencies() [][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	visited := make(map[string]bool)
	inStack := make(map[string]bool)
	stack := make([]string, 0)
	cycles := make([][]string, 0)

	var dfs func(id string)
	dfs = func(id string) {
		visited[id] = true
		inStack[id] = true
		stack = append(stack, id)

		for _, dep := range m.deps[id] {
			if !dep.Required {
				continue
			}
			next := dep.IntegrationID
			if inStack[next] {
				cycles = append(cycles, cycleFrom(stack, next))
				continue
			}
			if !visited[next] {
				dfs(next)
			}
		}

		stack = stack[:len(stack)-1]
		inStack[id] = false
	}

	for _, id := range m.order {
		if !visited[id] {
			dfs(id)
		}
	}
	return cycles
}

// cycleFrom copies the tail of path starting at id
func cycleFrom(path []string, id string) []string {
	idx := slices.Index(path, id)
	if idx < 0 {
		return []string{id}
	}
	return slices.Clone(path[idx:])
}

func (m *Manager) isEnabled(id string) bool {
	_, ok := m.enabled[id]
	return ok
}

func (m *Manager) registeredDependents(id string) []string {
	result := make([]string, 0, len(m.dependents[id]))
	for _, dependent := range m.dependents[id] {
		if _, ok := m.deps[dependent]; ok {
			result = append(result, dependent)
		}
	}
	return result
}

func (m *Manager) enabledDependents(id string) []string {
	result := make([]string, 0)
	for _, dependent := range m.registeredDependents(id) {
		if m.isEnabled(dependent) {
			result = append(result, dependent)
		}
	}
	return result
}

// requires reports whether from declares a required edge to to
func (m *Manager) requires(from, to string) bool {
	for _, dep := range m.deps[from] {
		if dep.IntegrationID == to && dep.Required {
			return true
		}
	}
	return false
}
