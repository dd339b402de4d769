package internal

import (
	"net/http"
	"strd/internal/controllers"
	"strd/internal/providers"
)

// InitForegroundRoutes is the view-layer API served by the foreground process.
func InitForegroundRoutes(apiController *controllers.ApiController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/points", http.HandlerFunc(apiController.GetPoints))
	routers.Get("/earned", http.HandlerFunc(apiController.GetEarned))
	routers.Get("/decision", http.HandlerFunc(apiController.GetDecision))
	routers.Get("/can-unlock", http.HandlerFunc(apiController.CanUnlock))
	routers.Post("/unlock", http.HandlerFunc(apiController.Unlock))
	routers.Post("/lock", http.HandlerFunc(apiController.Lock))
	routers.Post("/sync", http.HandlerFunc(apiController.Sync))
	routers.Get("/apps", http.HandlerFunc(apiController.GetApps))
	routers.Get("/usage/today", http.HandlerFunc(apiController.GetUsage))
	routers.Get("/shields", http.HandlerFunc(apiController.GetShields))
	return routers
}

// InitMonitorRoutes accepts usage samples in the monitor process.
func InitMonitorRoutes(usageController *controllers.UsageController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/usage", http.HandlerFunc(usageController.ReceiveUsage))
	return routers
}
