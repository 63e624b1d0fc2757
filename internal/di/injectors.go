//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"pld/internal"
	"pld/internal/cloud"
	"pld/internal/controllers"
	"pld/internal/playlog"
	"pld/internal/providers"
	"pld/internal/services"
	"pld/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,
		providers.NewHTTPClientProvider,

		playlog.NewZstdCompressor,
		playlog.NewFileManager,
		playlog.NewBackupManager,
		services.NewEventStoreService,
		services.NewStatsEngine,
		services.NewStreakTracker,

		cloud.NewStateStore,
		cloud.NewLogPrompt,
		cloud.NewExecOpener,
		cloud.NewCredentialManager,
		cloud.NewDriveClient,
		cloud.NewSyncEngine,
		playlog.NewScheduler,

		controllers.NewApiController,
		controllers.NewSyncController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
