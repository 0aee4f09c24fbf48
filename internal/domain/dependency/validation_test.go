package dependency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuesByCode(issues []ValidationIssue, code string) []ValidationIssue {
	result := make([]ValidationIssue, 0)
	for _, issue := range issues {
		if issue.Code == code {
			result = append(result, issue)
		}
	}
	return result
}

func TestManager_ValidateDependencyGraph_Clean(t *testing.T) {
	m := NewManager()
	m.RegisterDependencies("a", nil)
	m.RegisterDependencies("b", []Dependency{req("a")})

	issues := m.ValidateDependencyGraph()
	assert.Empty(t, issues)
	assert.False(t, HasErrors(issues))
}

func TestManager_ValidateDependencyGraph_ReportsCycle(t *testing.T) {
	m := NewManager()
	m.RegisterDependencies("a", []Dependency{req("b")})
	m.RegisterDependencies("b", []Dependency{req("a")})

	issues := m.ValidateDependencyGraph()
	cycles := issuesByCode(issues, CodeCircularDependency)
	require.Len(t, cycles, 1)
	assert.Equal(t, IssueTypeError, cycles[0].Type)
	assert.Equal(t, []string{"a", "b"}, cycles[0].AffectedIntegrations)
	assert.Contains(t, cycles[0].Message, "a -> b -> a")
	assert.True(t, HasErrors(issues))
}

func TestManager_ValidateDependencyGraph_DanglingDependencies(t *testing.T) {
	m := NewManager()
	m.RegisterDependencies("a", []Dependency{req("ghost"), opt("phantom")})

	issues := m.ValidateDependencyGraph()

	missing := issuesByCode(issues, CodeMissingDependency)
	require.Len(t, missing, 1)
	assert.Equal(t, IssueTypeError, missing[0].Type)
	assert.Equal(t, []string{"a", "ghost"}, missing[0].AffectedIntegrations)

	optional := issuesByCode(issues, CodeMissingOptionalDependency)
	require.Len(t, optional, 1)
	assert.Equal(t, IssueTypeWarning, optional[0].Type)
}

func TestManager_ValidateDependencyGraph_OrphanWarning(t *testing.T) {
	m := NewManager()
	m.RegisterDependencies("lonely", nil)

	issues := m.ValidateDependencyGraph()
	orphans := issuesByCode(issues, CodeOrphanedIntegration)
	require.Len(t, orphans, 1)
	assert.Equal(t, IssueTypeWarning, orphans[0].Type)
	assert.Equal(t, []string{"lonely"}, orphans[0].AffectedIntegrations)
	assert.False(t, HasErrors(issues))
}
