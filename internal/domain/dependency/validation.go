package dependency

import (
	"fmt"
	"strings"
)

// IssueType classifies a graph validation finding
type IssueType string

const (
	IssueTypeError   IssueType = "error"
	IssueTypeWarning IssueType = "warning"
)

// Validation issue codes
const (
	CodeCircularDependency        = "CIRCULAR_DEPENDENCY"
	CodeMissingDependency         = "MISSING_DEPENDENCY"
	CodeMissingOptionalDependency = "MISSING_OPTIONAL_DEPENDENCY"
	CodeOrphanedIntegration       = "ORPHANED_INTEGRATION"
)

// ValidationIssue is one finding of ValidateDependencyGraph
type ValidationIssue struct {
	Type                 IssueType `json:"type"`
	Code                 string    `json:"code"`
	Message              string    `json:"message"`
	AffectedIntegrations []string  `json:"affected_integrations"`
}

// ValidateDependencyGraph checks the whole graph for cycles, required edges
// pointing at unregistered integrations and integrations with no edges at all.
// It never fails; findings are returned as data.
func (m *Manager) ValidateDependencyGraph() []ValidationIssue {
	issues := make([]ValidationIssue, 0)

	for _, cycle := range m.DetectCircularDependencies() {
		path := append(append([]string(nil), cycle...), cycle[0])
		issues = append(issues, ValidationIssue{
			Type:                 IssueTypeError,
			Code:                 CodeCircularDependency,
			Message:              fmt.Sprintf("Circular dependency detected: %s", strings.Join(path, " -> ")),
			AffectedIntegrations: cycle,
		})
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range m.order {
		for _, dep := range m.deps[id] {
			if _, registered := m.deps[dep.IntegrationID]; registered {
				continue
			}
			if dep.Required {
				issues = append(issues, ValidationIssue{
					Type:                 IssueTypeError,
					Code:                 CodeMissingDependency,
					Message:              fmt.Sprintf("Integration %s requires unregistered integration %s", id, dep.IntegrationID),
					AffectedIntegrations: []string{id, dep.IntegrationID},
				})
				continue
			}
			issues = append(issues, ValidationIssue{
				Type:                 IssueTypeWarning,
				Code:                 CodeMissingOptionalDependency,
				Message:              fmt.Sprintf("Integration %s optionally depends on unregistered integration %s", id, dep.IntegrationID),
				AffectedIntegrations: []string{id, dep.IntegrationID},
			})
		}
	}

	for _, id := range m.order {
		if len(m.deps[id]) == 0 && len(m.registeredDependents(id)) == 0 {
			issues = append(issues, ValidationIssue{
				Type:                 IssueTypeWarning,
				Code:                 CodeOrphanedIntegration,
				Message:              fmt.Sprintf("Integration %s has no dependencies and no dependents", id),
				AffectedIntegrations: []string{id},
			})
		}
	}

	return issues
}

// HasErrors reports whether any issue is an error
func HasErrors(issues []ValidationIssue) bool {
	for _, issue := range issues {
		if issue.Type == IssueTypeError {
			return true
		}
	}
	return false
}
