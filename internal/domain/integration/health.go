package integration

import (
	"slices"
	"time"
)

// MaxHealthIssues caps the issue history kept on an integration
const MaxHealthIssues = 20

// IssueType is the severity of a health issue
type IssueType string

const (
	IssueTypeError   IssueType = "error"
	IssueTypeWarning IssueType = "warning"
	IssueTypeInfo    IssueType = "info"
)

// HealthIssue is one recorded problem
type HealthIssue struct {
	Type      IssueType `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Resolved  bool      `json:"resolved"`
}

// Health is the operational state of an integration
type Health struct {
	Status       HealthStatus  `json:"status"`
	Uptime       float64       `json:"uptime"`
	ErrorRate    float64       `json:"error_rate"`
	ResponseTime float64       `json:"response_time_ms"`
	Issues       []HealthIssue `json:"issues"`
	LastCheck    *time.Time    `json:"last_check,omitempty"`
}

// HealthReport is what a health probe returns
type HealthReport struct {
	Status       HealthStatus
	Uptime       float64
	ErrorRate    float64
	ResponseTime float64
	Issues       []HealthIssue
}

// UnknownHealth is the state of an integration never probed
func UnknownHealth() Health {
	return Health{Status: HealthStatusUnknown, Uptime: 100, Issues: make([]HealthIssue, 0)}
}

// Apply merges a probe report into the health record.
// Previously open issues whose code is absent from the report are resolved;
// an issue reported again refreshes the open one instead of repeating it.
func (h *Health) Apply(report HealthReport, at time.Time) {
	h.Status = report.Status
	h.Uptime = report.Uptime
	h.ErrorRate = report.ErrorRate
	h.ResponseTime = report.ResponseTime

	for i := range h.Issues {
		if h.Issues[i].Resolved {
			continue
		}
		reported := slices.ContainsFunc(report.Issues, func(issue HealthIssue) bool {
			return issue.Code == h.Issues[i].Code
		})
		if !reported {
			h.Issues[i].Resolved = true
		}
	}
	for _, issue := range report.Issues {
		if issue.Timestamp.IsZero() {
			issue.Timestamp = at
		}
		issue.Resolved = false
		h.upsertIssue(issue)
	}
	h.LastCheck = &at
}

// RecordFailure marks the integration critical and appends an unresolved issue
func (h *Health) RecordFailure(code, message string, at time.Time) {
	h.Status = HealthStatusCritical
	h.upsertIssue(HealthIssue{
		Type:      IssueTypeError,
		Code:      code,
		Message:   message,
		Timestamp: at,
	})
	h.LastCheck = &at
}

// OpenIssues returns the unresolved issues
func (h *Health) OpenIssues() []HealthIssue {
	open := make([]HealthIssue, 0)
	for _, issue := range h.Issues {
		if !issue.Resolved {
			open = append(open, issue)
		}
	}
	return open
}

func (h *Health) upsertIssue(issue HealthIssue) {
	for i := range h.Issues {
		if !h.Issues[i].Resolved && h.Issues[i].Code == issue.Code {
			h.Issues[i].Type = issue.Type
			h.Issues[i].Message = issue.Message
			return
		}
	}
	h.appendIssue(issue)
}

func (h *Health) appendIssue(issue HealthIssue) {
	h.Issues = append(h.Issues, issue)
	if overflow := len(h.Issues) - MaxHealthIssues; overflow > 0 {
		h.Issues = slices.Clone(h.Issues[overflow:])
	}
}

func (h Health) clone() Health {
	out := h
	out.Issues = slices.Clone(h.Issues)
	if h.LastCheck != nil {
		last := *h.LastCheck
		out.LastCheck = &last
	}
	return out
}

// Thresholds used when deriving health from reported metrics
const (
	WarningErrorRate     = 2.0    // percent
	CriticalErrorRate    = 10.0   // percent
	SlowResponseTimeMs   = 2000.0 // milliseconds
	IssueHighErrorRate   = "HIGH_ERROR_RATE"
	IssueSlowResponse    = "SLOW_RESPONSE"
	IssueProbeFailed     = "HEALTH_CHECK_FAILED"
	IssueProbeTimeout    = "HEALTH_CHECK_TIMEOUT"
	IssueEndpointFailure = "ENDPOINT_UNHEALTHY"
)

// ReportFromMetrics derives a health report from the integration's own usage
// metrics. An integration without traffic is reported healthy.
func ReportFromMetrics(m Metrics) HealthReport {
	report := HealthReport{
		Status:       HealthStatusHealthy,
		Uptime:       100,
		ResponseTime: m.AverageResponseTime,
		Issues:       make([]HealthIssue, 0),
	}
	if m.Requests == 0 {
		return report
	}

	report.Uptime = m.SuccessRate
	report.ErrorRate = 100 - m.SuccessRate

	switch {
	case report.ErrorRate >= CriticalErrorRate:
		report.Status = HealthStatusCritical
		report.Issues = append(report.Issues, HealthIssue{
			Type:    IssueTypeError,
			Code:    IssueHighErrorRate,
			Message: "error rate is above the critical threshold",
		})
	case report.ErrorRate >= WarningErrorRate:
		report.Status = HealthStatusWarning
		report.Issues = append(report.Issues, HealthIssue{
			Type:    IssueTypeWarning,
			Code:    IssueHighErrorRate,
			Message: "error rate is above the warning threshold",
		})
	}
	if m.AverageResponseTime > SlowResponseTimeMs {
		if report.Status == HealthStatusHealthy {
			report.Status = HealthStatusWarning
		}
		report.Issues = append(report.Issues, HealthIssue{
			Type:    IssueTypeWarning,
			Code:    IssueSlowResponse,
			Message: "average response time is above the threshold",
		})
	}
	return report
}

// Severity orders health statuses from best to worst
func (s HealthStatus) Severity() int {
	switch s {
	case HealthStatusHealthy:
		return 0
	case HealthStatusUnknown:
		return 1
	case HealthStatusWarning:
		return 2
	case HealthStatusCritical:
		return 3
	default:
		return 1
	}
}
