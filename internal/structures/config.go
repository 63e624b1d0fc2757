package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type Persistence struct {
	FilePath     string        `yaml:"filePath" validate:"required|unixPath"`
	SaveInterval time.Duration `yaml:"saveInterval" validate:"required|min:1"`
	BackupDir    string        `yaml:"backupDir"`
	BackupKeep   int           `yaml:"backupKeep"`
}

// TrackingConfig is the master intake switch. With it off the daemon keeps
// serving reads but rejects new play events.
type TrackingConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type StatisticConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval" validate:"required|min:1"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// CloudSyncConfig holds the static half of the cloud reconciliation setup.
// Tokens, the remote file id and the last-sync markers are runtime state and
// live in the state file (cloud.StateStore), not here.
type CloudSyncConfig struct {
	Enabled      bool          `yaml:"enabled"`
	ClientID     string        `yaml:"clientId"`
	ClientSecret string        `yaml:"clientSecret"`
	FileName     string        `yaml:"fileName"`
	AuthURL      string        `yaml:"authUrl"`
	TokenURL     string        `yaml:"tokenUrl"`
	APIBase      string        `yaml:"apiBase"`
	UploadBase   string        `yaml:"uploadBase"`
	Scope        string        `yaml:"scope"`
	SyncInterval time.Duration `yaml:"syncInterval" validate:"required|min:1"`
	AuthTimeout  time.Duration `yaml:"authTimeout"`
	StateFile    string        `yaml:"stateFile" validate:"required|unixPath"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	Tracking    TrackingConfig  `yaml:"tracking"`
	Statistic   StatisticConfig `yaml:"statistic"`
	WebServer   Server          `yaml:"webServer"`
	Persistence Persistence     `yaml:"persistence"`
	Logger      LoggerConfig    `yaml:"logger"`
	Cache       CacheConfig     `yaml:"cache"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	CloudSync   CloudSyncConfig `yaml:"cloudSync"`
}
