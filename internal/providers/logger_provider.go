package providers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"pld/internal/structures"
)

// TypeEnum selects the log channel a message goes to. Each channel writes to
// its own file under logger.dir.
type TypeEnum int

const (
	TypeApp TypeEnum = iota
	TypeGet
	TypePost
	TypeSync
)

var logFileNames = map[TypeEnum]string{
	TypeApp:  "app.log",
	TypeGet:  "get.log",
	TypePost: "post.log",
	TypeSync: "sync.log",
}

type Logger interface {
	Errorf(logType TypeEnum, format string, args ...interface{})
	Warnf(logType TypeEnum, format string, args ...interface{})
	Infof(logType TypeEnum, format string, args ...interface{})
	Debugf(logType TypeEnum, format string, args ...interface{})
	Fatalf(logType TypeEnum, format string, args ...interface{})
	Close()
}

type LogProvider struct {
	loggers map[TypeEnum]zerolog.Logger
	files   []*os.File
}

func GetLogTypeByRequestType(requestType string) TypeEnum {
	if requestType == http.MethodPost {
		return TypePost
	}
	return TypeGet
}

func NewLogProvider(conf *structures.Config) (Logger, error) {
	level, err := zerolog.ParseLevel(conf.Logger.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", conf.Logger.Level, err)
	}
	if conf.Debug {
		level = zerolog.DebugLevel
	}

	lp := &LogProvider{loggers: make(map[TypeEnum]zerolog.Logger, len(logFileNames))}
	for logType, name := range logFileNames {
		file, err := os.OpenFile(
			filepath.Join(conf.Logger.Dir, name),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND,
			os.FileMode(conf.Logger.Mode),
		)
		if err != nil {
			lp.Close()
			return nil, fmt.Errorf("cannot open log file %s: %w", name, err)
		}
		lp.files = append(lp.files, file)

		writer := zerolog.MultiLevelWriter(file)
		if conf.Debug {
			writer = zerolog.MultiLevelWriter(file, zerolog.ConsoleWriter{Out: os.Stderr})
		}
		lp.loggers[logType] = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	}
	return lp, nil
}

// channel returns the logger for a type, falling back to the app channel.
func (l *LogProvider) channel(logType TypeEnum) zerolog.Logger {
	if logger, ok := l.loggers[logType]; ok {
		return logger
	}
	return l.loggers[TypeApp]
}

func (l *LogProvider) Errorf(logType TypeEnum, format string, args ...interface{}) {
	logger := l.channel(logType)
	logger.Error().Msgf(format, args...)
}

func (l *LogProvider) Warnf(logType TypeEnum, format string, args ...interface{}) {
	logger := l.channel(logType)
	logger.Warn().Msgf(format, args...)
}

func (l *LogProvider) Infof(logType TypeEnum, format string, args ...interface{}) {
	logger := l.channel(logType)
	logger.Info().Msgf(format, args...)
}

func (l *LogProvider) Debugf(logType TypeEnum, format string, args ...interface{}) {
	logger := l.channel(logType)
	logger.Debug().Msgf(format, args...)
}

func (l *LogProvider) Fatalf(logType TypeEnum, format string, args ...interface{}) {
	logger := l.channel(logType)
	logger.Fatal().Msgf(format, args...)
}

func (l *LogProvider) Close() {
	for _, f := range l.files {
		_ = f.Close()
	}
}
