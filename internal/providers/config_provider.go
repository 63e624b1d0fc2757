package providers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"pld/internal/structures"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.SetDefault("tracking.enabled", true)
	viper.SetDefault("statistic.interval", "1h")
	viper.SetDefault("persistence.saveInterval", "30s")
	viper.SetDefault("persistence.backupKeep", 5)
	viper.SetDefault("cloudSync.fileName", "playlog-data.json")
	viper.SetDefault("cloudSync.authUrl", "https://accounts.google.com/o/oauth2/v2/auth")
	viper.SetDefault("cloudSync.tokenUrl", "https://oauth2.googleapis.com/token")
	viper.SetDefault("cloudSync.apiBase", "https://www.googleapis.com/drive/v3")
	viper.SetDefault("cloudSync.uploadBase", "https://www.googleapis.com/upload/drive/v3")
	viper.SetDefault("cloudSync.scope", "https://www.googleapis.com/auth/drive.appdata")
	viper.SetDefault("cloudSync.syncInterval", "10m")
	viper.SetDefault("cloudSync.authTimeout", "5m")
	viper.SetDefault("cloudSync.stateFile", "/var/lib/pld/sync-state.json")

	viper.BindEnv("logger.level", "PLD_LOG_LEVEL")
	viper.BindEnv("statistic.interval", "PLD_AGGREGATION_INTERVAL")
	viper.BindEnv("persistence.saveInterval", "PLD_SAVE_INTERVAL")
	viper.BindEnv("cache.enabled", "PLD_CACHE_ENABLED")
	viper.BindEnv("cache.size", "PLD_CACHE_SIZE")
	viper.BindEnv("cloudSync.enabled", "PLD_SYNC_ENABLED")
	viper.BindEnv("cloudSync.clientId", "PLD_CLIENT_ID")
	viper.BindEnv("cloudSync.clientSecret", "PLD_CLIENT_SECRET")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "PlayLogDaemon"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
