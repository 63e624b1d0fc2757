package internal

import (
	"net/http"

	"pld/internal/controllers"
	"pld/internal/providers"
	"pld/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, syncController *controllers.SyncController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/events", http.HandlerFunc(apiController.ReceiveEvent))
	routers.Get("/stats", http.HandlerFunc(apiController.GetStats))
	routers.Get("/records", http.HandlerFunc(apiController.GetRecords))
	routers.Get("/streak", http.HandlerFunc(apiController.GetStreak))
	routers.Get("/export", http.HandlerFunc(apiController.ExportDocument))
	routers.Post("/import", http.HandlerFunc(apiController.ImportDocument))

	routers.Post("/sync/run", http.HandlerFunc(syncController.RunSync))
	routers.Get("/sync/status", http.HandlerFunc(syncController.Status))
	routers.Post("/sync/enable", http.HandlerFunc(syncController.Enable))
	routers.Post("/sync/auth/start", http.HandlerFunc(syncController.AuthStart))
	routers.Post("/sync/auth/cancel", http.HandlerFunc(syncController.AuthCancel))
	routers.Get("/sync/auth/status", http.HandlerFunc(syncController.AuthStatus))

	return routers
}
