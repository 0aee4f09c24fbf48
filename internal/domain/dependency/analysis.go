package dependency

// TreeNode is one level of a materialized dependency or dependents tree
type TreeNode struct {
	ID         string      `json:"id"`
	Required   bool        `json:"required"`
	Enabled    bool        `json:"enabled"`
	Registered bool        `json:"registered"`
	Truncated  bool        `json:"truncated,omitempty"`
	Children   []*TreeNode `json:"children,omitempty"`
}

// DisableImpact describes what disabling an integration would affect.
// CanDisable is false only when an enabled dependent holds a required edge.
type DisableImpact struct {
	IntegrationID    string   `json:"integration_id"`
	DirectDependents []string `json:"direct_dependents"`
	AllImpacted      []string `json:"all_impacted"`
	CriticalImpact   []string `json:"critical_impact"`
	CanDisable       bool     `json:"can_disable"`
}

// EnableRequirements describes what must be enabled before an integration.
// CascadeRequired lists the required dependencies of the missing ones that are
// themselves missing, deepest first, so a caller can enable the whole chain.
type EnableRequirements struct {
	IntegrationID   string   `json:"integration_id"`
	MissingRequired []string `json:"missing_required"`
	MissingOptional []string `json:"missing_optional"`
	CascadeRequired []string `json:"cascade_required"`
	CanEnable       bool     `json:"can_enable"`
}

// GetDependencyTree materializes what id depends on, up to maxDepth levels
// below the root. A non-positive maxDepth means DefaultTreeDepth.
func (m *Manager) GetDependencyTree(id string, maxDepth int) *TreeNode {
	if maxDepth <= 0 {
		maxDepth = DefaultTreeDepth
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var build func(id string, required bool, depth int) *TreeNode
	build = func(id string, required bool, depth int) *TreeNode {
		node := m.node(id, required)
		deps := m.deps[id]
		if depth >= maxDepth {
			node.Truncated = len(deps) > 0
			return node
		}
		for _, dep := range deps {
			node.Children = append(node.Children, build(dep.IntegrationID, dep.Required, depth+1))
		}
		return node
	}
	return build(id, true, 0)
}

// GetDependentsTree materializes who depends on id, up to maxDepth levels.
// Required on a child means the child holds a required edge to its parent.
func (m *Manager) GetDependentsTree(id string, maxDepth int) *TreeNode {
	if maxDepth <= 0 {
		maxDepth = DefaultTreeDepth
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var build func(id string, required bool, depth int) *TreeNode
	build = func(id string, required bool, depth int) *TreeNode {
		node := m.node(id, required)
		dependents := m.registeredDependents(id)
		if depth >= maxDepth {
			node.Truncated = len(dependents) > 0
			return node
		}
		for _, dependent := range dependents {
			node.Children = append(node.Children, build(dependent, m.requires(dependent, id), depth+1))
		}
		return node
	}
	return build(id, true, 0)
}

func (m *Manager) node(id string, required bool) *TreeNode {
	_, registered := m.deps[id]
	return &TreeNode{
		ID:         id,
		Required:   required,
		Enabled:    m.isEnabled(id),
		Registered: registered,
	}
}

// AnalyzeDisableImpact reports the direct and transitive enabled dependents of id
func (m *Manager) AnalyzeDisableImpact(id string) DisableImpact {
	m.mu.RLock()
	defer m.mu.RUnlock()

	direct := m.enabledDependents(id)

	critical := make([]string, 0)
	for _, dependent := range direct {
		if m.requires(dependent, id) {
			critical = append(critical, dependent)
		}
	}

	seen := map[string]bool{id: true}
	all := make([]string, 0)
	queue := append([]string(nil), direct...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if seen[current] {
			continue
		}
		seen[current] = true
		all = append(all, current)
		queue = append(queue, m.enabledDependents(current)...)
	}

	return DisableImpact{
		IntegrationID:    id,
		DirectDependents: direct,
		AllImpacted:      all,
		CriticalImpact:   critical,
		CanDisable:       len(critical) == 0,
	}
}

// AnalyzeEnableRequirements reports the dependencies of id that are not enabled
func (m *Manager) AnalyzeEnableRequirements(id string) EnableRequirements {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req := EnableRequirements{
		IntegrationID:   id,
		MissingRequired: make([]string, 0),
		MissingOptional: make([]string, 0),
		CascadeRequired: make([]string, 0),
	}

	seen := map[string]bool{id: true}
	for _, dep := range m.deps[id] {
		if m.isEnabled(dep.IntegrationID) {
			continue
		}
		if dep.Required {
			req.MissingRequired = append(req.MissingRequired, dep.IntegrationID)
			seen[dep.IntegrationID] = true
		} else {
			req.MissingOptional = append(req.MissingOptional, dep.IntegrationID)
		}
	}

	var walk func(id string)
	walk = func(id string) {
		for _, dep := range m.deps[id] {
			if !dep.Required || m.isEnabled(dep.IntegrationID) || seen[dep.IntegrationID] {
				continue
			}
			seen[dep.IntegrationID] = true
			walk(dep.IntegrationID)
			req.CascadeRequired = append(req.CascadeRequired, dep.IntegrationID)
		}
	}
	for _, missing := range req.MissingRequired {
		walk(missing)
	}

	req.CanEnable = len(req.MissingRequired) == 0
	return req
}
