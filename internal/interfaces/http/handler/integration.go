package handler

import (
	"context"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	integrationapp "github.com/bizhub/integrations/internal/application/integration"
	"github.com/bizhub/integrations/internal/domain/dependency"
	"github.com/bizhub/integrations/internal/domain/integration"
	"github.com/bizhub/integrations/internal/interfaces/http/dto"
	"github.com/bizhub/integrations/internal/interfaces/http/middleware"
)

// IntegrationService is the registry surface exposed over HTTP
type IntegrationService interface {
	GetIntegration(id string) (*integration.Integration, error)
	SearchIntegrations(filter integration.SearchFilter) []*integration.Integration
	EnableIntegration(ctx context.Context, id string) error
	DisableIntegration(ctx context.Context, id string) error
	UnregisterIntegration(ctx context.Context, id string) error
	CheckIntegrationHealth(ctx context.Context, id string) (map[string]integration.Health, error)
	GetEnhancedFeatures() []integration.EnhancedFeature
	GetAvailableEnhancedFeatures() []integration.EnhancedFeature
	GetRegistryState() integrationapp.RegistryState
	GetDependencyTree(id string) *dependency.TreeNode
	GetDependentsTree(id string) *dependency.TreeNode
	AnalyzeDisableImpact(id string) dependency.DisableImpact
	AnalyzeEnableRequirements(id string) dependency.EnableRequirements
	GetInstallationOrder(ids []string) ([]string, error)
	GetRemovalOrder(ids []string) ([]string, error)
	DetectCircularDependencies() [][]string
	ValidateDependencyGraph() []dependency.ValidationIssue
}

// IntegrationHandler serves the integration and registry endpoints
type IntegrationHandler struct {
	BaseHandler
	registry IntegrationService
}

// NewIntegrationHandler creates a new IntegrationHandler
func NewIntegrationHandler(registry IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{registry: registry}
}

// ListIntegrations godoc
//
//	@Summary		List integrations
//	@Description	Search registered integrations. Filters combine with AND; values inside one filter combine with OR.
//	@Tags			integrations
//	@Produce		json
//	@Param			category			query		[]string	false	"Categories"	collectionFormat(multi)
//	@Param			status				query		[]string	false	"Statuses"		collectionFormat(multi)	Enums(active, inactive, error, installing)
//	@Param			capability			query		[]string	false	"Capabilities"	collectionFormat(multi)
//	@Param			search				query		string		false	"Case-insensitive text over name, description and provider"
//	@Param			enabled				query		bool		false	"Only enabled or only disabled integrations"
//	@Param			match_business_size	query		bool		false	"Restrict to the current business size"
//	@Success		200					{object}	dto.Response{data=[]dto.IntegrationResponse}
//	@Failure		400					{object}	dto.Response{error=dto.ErrorInfo}
//	@Router			/integrations [get]
func (h *IntegrationHandler) ListIntegrations(c *gin.Context) {
	var query dto.ListIntegrationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	for i := range query.Category {
		query.Category[i] = strings.ToLower(strings.TrimSpace(query.Category[i]))
	}

	items := h.registry.SearchIntegrations(query.Filter())
	if query.Enabled != nil {
		items = slices.DeleteFunc(items, func(in *integration.Integration) bool {
			return in.IsEnabled != *query.Enabled
		})
	}
	h.List(c, dto.ToIntegrationResponses(items), len(items))
}

// GetIntegration godoc
//
//	@Summary		Get integration
//	@Description	Retrieve one integration. Secret configuration values are masked.
//	@Tags			integrations
//	@Produce		json
//	@Param			id	path		string	true	"Integration ID"
//	@Success		200	{object}	dto.Response{data=dto.IntegrationResponse}
//	@Failure		404	{object}	dto.Response{error=dto.ErrorInfo}
//	@Router			/integrations/{id} [get]
func (h *IntegrationHandler) GetIntegration(c *gin.Context) {
	in, err := h.registry.GetIntegration(c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToIntegrationResponse(in))
}

// EnableIntegration godoc
//
//	@Summary		Enable integration
//	@Description	Enable an integration. Required dependencies that are disabled are enabled first, in installation order.
//	@Tags			integrations
//	@Produce		json
//	@Param			id	path		string	true	"Integration ID"
//	@Success		200	{object}	dto.Response{data=dto.IntegrationResponse}
//	@Failure		404	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		409	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		422	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		502	{object}	dto.Response{error=dto.ErrorInfo}
//	@Router			/integrations/{id}/enable [post]
func (h *IntegrationHandler) EnableIntegration(c *gin.Context) {
	h.transition(c, h.registry.EnableIntegration)
}

// DisableIntegration godoc
//
//	@Summary		Disable integration
//	@Description	Disable an integration. Fails while enabled integrations require it.
//	@Tags			integrations
//	@Produce		json
//	@Param			id	path		string	true	"Integration ID"
//	@Success		200	{object}	dto.Response{data=dto.IntegrationResponse}
//	@Failure		404	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		409	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		422	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		502	{object}	dto.Response{error=dto.ErrorInfo}
//	@Router			/integrations/{id}/disable [post]
func (h *IntegrationHandler) DisableIntegration(c *gin.Context) {
	h.transition(c, h.registry.DisableIntegration)
}

func (h *IntegrationHandler) transition(c *gin.Context, apply func(context.Context, string) error) {
	id := c.Param("id")
	if err := apply(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	in, err := h.registry.GetIntegration(id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToIntegrationResponse(in))
}

// DeleteIntegration godoc
//
//	@Summary		Unregister integration
//	@Description	Remove an integration from the registry. Fails while other integrations depend on it.
//	@Tags			integrations
//	@Param			id	path	string	true	"Integration ID"
//	@Success		204
//	@Failure		404	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		409	{object}	dto.Response{error=dto.ErrorInfo}
//	@Router			/integrations/{id} [delete]
func (h *IntegrationHandler) DeleteIntegration(c *gin.Context) {
	if err := h.registry.UnregisterIntegration(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// GetImpact godoc
//
//	@Summary		Analyze impact
//	@Description	What disabling the integration would break and what enabling it would require
//	@Tags			integrations
//	@Produce		json
//	@Param			id	path		string	true	"Integration ID"
//	@Success		200	{object}	dto.Response{data=dto.ImpactResponse}
//	@Failure		404	{object}	dto.Response{error=dto.ErrorInfo}
//	@Router			/integrations/{id}/impact [get]
func (h *IntegrationHandler) GetImpact(c *gin.Context) {
	in, err := h.registry.GetIntegration(c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ImpactResponse{
		IntegrationID: in.ID,
		Disable:       h.registry.AnalyzeDisableImpact(in.ID),
		Enable:        h.registry.AnalyzeEnableRequirements(in.ID),
	})
}

// GetTree godoc
//
//	@Summary		Dependency trees
//	@Description	Dependencies and dependents of an integration, bounded by the configured tree depth
//	@Tags			integrations
//	@Produce		json
//	@Param			id	path		string	true	"Integration ID"
//	@Success		200	{object}	dto.Response{data=dto.TreeResponse}
//	@Failure		404	{object}	dto.Response{error=dto.ErrorInfo}
//	@Router			/integrations/{id}/tree [get]
func (h *IntegrationHandler) GetTree(c *gin.Context) {
	in, err := h.registry.GetIntegration(c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.TreeResponse{
		Dependencies: h.registry.GetDependencyTree(in.ID),
		Dependents:   h.registry.GetDependentsTree(in.ID),
	})
}

// CheckHealth godoc
//
//	@Summary		Run health checks
//	@Description	Probe one integration, or every enabled integration when the body is empty
//	@Tags			integrations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.HealthCheckRequest	false	"Integration to check"
//	@Success		200		{object}	dto.Response{data=map[string]integration.Health}
//	@Failure		400		{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		404		{object}	dto.Response{error=dto.ErrorInfo}
//	@Router			/integrations/health-check [post]
func (h *IntegrationHandler) CheckHealth(c *gin.Context) {
	var req dto.HealthCheckRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	results, err := h.registry.CheckIntegrationHealth(c.Request.Context(), req.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.List(c, results, len(results))
}

// ListEnhancedFeatures godoc
//
//	@Summary		List enhanced features
//	@Description	Registered enhanced features. available=true narrows the list to features whose integrations are all enabled.
//	@Tags			registry
//	@Produce		json
//	@Param			available	query		bool	false	"Only available features"
//	@Success		200			{object}	dto.Response{data=[]integration.EnhancedFeature}
//	@Router			/enhanced-features [get]
func (h *IntegrationHandler) ListEnhancedFeatures(c *gin.Context) {
	features := h.registry.GetEnhancedFeatures()
	if c.Query("available") == "true" {
		features = h.registry.GetAvailableEnhancedFeatures()
	}
	h.List(c, features, len(features))
}

// GetRegistryState godoc
//
//	@Summary		Registry state
//	@Description	Snapshot of registered and enabled integrations, the current context and available features
//	@Tags			registry
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=integrationapp.RegistryState}
//	@Router			/registry/state [get]
func (h *IntegrationHandler) GetRegistryState(c *gin.Context) {
	h.Success(c, h.registry.GetRegistryState())
}

// ValidateRegistry godoc
//
//	@Summary		Validate dependency graph
//	@Description	Report cycles and missing dependencies. The graph is valid when no error level issue exists.
//	@Tags			registry
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=dto.ValidationReportResponse}
//	@Router			/registry/validation [get]
func (h *IntegrationHandler) ValidateRegistry(c *gin.Context) {
	issues := h.registry.ValidateDependencyGraph()
	valid := !slices.ContainsFunc(issues, func(issue dependency.ValidationIssue) bool {
		return issue.Type == dependency.IssueTypeError
	})
	cycles := h.registry.DetectCircularDependencies()
	if cycles == nil {
		cycles = make([][]string, 0)
	}
	if issues == nil {
		issues = make([]dependency.ValidationIssue, 0)
	}
	h.Success(c, dto.ValidationReportResponse{Valid: valid, Cycles: cycles, Issues: issues})
}

// GetInstallOrder godoc
//
//	@Summary		Installation order
//	@Description	Installation and removal order for a set of integrations, including their required dependencies
//	@Tags			registry
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.InstallOrderRequest	true	"Integrations to order"
//	@Success		200		{object}	dto.Response{data=dto.InstallOrderResponse}
//	@Failure		400		{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		422		{object}	dto.Response{error=dto.ErrorInfo}
//	@Router			/registry/install-order [post]
func (h *IntegrationHandler) GetInstallOrder(c *gin.Context) {
	var req dto.InstallOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	install, err := h.registry.GetInstallationOrder(req.IDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	removal, err := h.registry.GetRemovalOrder(req.IDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.InstallOrderResponse{InstallOrder: install, RemovalOrder: removal})
}
