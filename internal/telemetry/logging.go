package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the global logger instance
var Logger *zap.Logger

func init() {
	var err error
	Logger, err = buildLogger("info", "")
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
}

// InitLogger replaces the global logger once configuration is known.
// When dir is non-empty, logs are also written to server.log and server_error.log inside it.
func InitLogger(level, dir string) error {
	logger, err := buildLogger(level, dir)
	if err != nil {
		return err
	}
	_ = Logger.Sync()
	Logger = logger
	return nil
}

func buildLogger(level, dir string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}
		config.OutputPaths = append(config.OutputPaths, filepath.Join(dir, "server.log"))
		config.ErrorOutputPaths = append(config.ErrorOutputPaths, filepath.Join(dir, "server_error.log"))
	}

	return config.Build()
}
