package logging

import "go.uber.org/zap"

// New creates a new zap logger for env ("production", "local" or development)
func New(env string) *zap.SugaredLogger {
	var (
		logger *zap.Logger
		err    error
	)
	switch env {
	case "production":
		logger, err = zap.NewProduction()
	case "local":
		logger = zap.NewExample()
	default:
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		logger = zap.NewNop()
	}
	return logger.Sugar()
}
