package integration

import (
	"fmt"
	"strings"
)

// Category groups integrations in the catalog
type Category string

const (
	CategoryPayments      Category = "payments"
	CategoryCRM           Category = "crm"
	CategoryMarketing     Category = "marketing"
	CategoryCommunication Category = "communication"
	CategoryAnalytics     Category = "analytics"
	CategoryScheduling    Category = "scheduling"
	CategoryAccounting    Category = "accounting"
	CategoryStorage       Category = "storage"
	CategoryProductivity  Category = "productivity"
	CategoryCore          Category = "core"
)

// AllCategories returns all valid categories
func AllCategories() []Category {
	return []Category{
		CategoryPayments,
		CategoryCRM,
		CategoryMarketing,
		CategoryCommunication,
		CategoryAnalytics,
		CategoryScheduling,
		CategoryAccounting,
		CategoryStorage,
		CategoryProductivity,
		CategoryCore,
	}
}

// IsValid checks if the category is valid
func (c Category) IsValid() bool {
	for _, valid := range AllCategories() {
		if c == valid {
			return true
		}
	}
	return false
}

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// ParseCategory parses a category case-insensitively
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("integration: invalid category: %s", s)
	}
	return c, nil
}

// Status is the lifecycle status of an integration
type Status string

const (
	// StatusActive means the integration is enabled and serving
	StatusActive Status = "active"
	// StatusInactive means the integration is registered but disabled
	StatusInactive Status = "inactive"
	// StatusError means a lifecycle hook failed during the last transition
	StatusError Status = "error"
	// StatusInstalling means the integration is being registered
	StatusInstalling Status = "installing"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusError, StatusInstalling:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// Capability is a free-form tag describing what an integration can do
type Capability string

// HealthStatus is the result of the last health probe
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusWarning  HealthStatus = "warning"
	HealthStatusCritical HealthStatus = "critical"
	HealthStatusUnknown  HealthStatus = "unknown"
)

// IsValid checks if the health status is valid
func (s HealthStatus) IsValid() bool {
	switch s {
	case HealthStatusHealthy, HealthStatusWarning, HealthStatusCritical, HealthStatusUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of the health status
func (s HealthStatus) String() string {
	return string(s)
}

// BusinessSize is the size band a business falls into
type BusinessSize string

const (
	BusinessSizeSolo       BusinessSize = "solo"
	BusinessSizeSmall      BusinessSize = "small"
	BusinessSizeMedium     BusinessSize = "medium"
	BusinessSizeEnterprise BusinessSize = "enterprise"
)

// IsValid checks if the business size is valid
func (s BusinessSize) IsValid() bool {
	switch s {
	case BusinessSizeSolo, BusinessSizeSmall, BusinessSizeMedium, BusinessSizeEnterprise:
		return true
	default:
		return false
	}
}
