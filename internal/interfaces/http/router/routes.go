package router

import (
	"github.com/bizhub/integrations/internal/interfaces/http/handler"
)

// SystemRoutes mounts liveness and build information under /system
func SystemRoutes(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("system", "/system").
		GET("/ping", h.Ping).
		GET("/info", h.GetSystemInfo)
}

// IntegrationRoutes mounts the integration endpoints under /integrations
func IntegrationRoutes(h *handler.IntegrationHandler) *DomainGroup {
	return NewDomainGroup("integrations", "/integrations").
		GET("", h.ListIntegrations).
		POST("/health-check", h.CheckHealth).
		GET("/:id", h.GetIntegration).
		DELETE("/:id", h.DeleteIntegration).
		POST("/:id/enable", h.EnableIntegration).
		POST("/:id/disable", h.DisableIntegration).
		GET("/:id/impact", h.GetImpact).
		GET("/:id/tree", h.GetTree)
}

// RegistryRoutes mounts the registry wide endpoints
func RegistryRoutes(h *handler.IntegrationHandler) []RouteRegistrar {
	return []RouteRegistrar{
		NewDomainGroup("enhanced-features", "/enhanced-features").
			GET("", h.ListEnhancedFeatures),
		NewDomainGroup("registry", "/registry").
			GET("/state", h.GetRegistryState).
			GET("/validation", h.ValidateRegistry).
			POST("/install-order", h.GetInstallOrder),
	}
}
