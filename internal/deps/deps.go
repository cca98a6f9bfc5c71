package deps

import (
	"time"

	"github.com/and161185/shopledger/internal/auth"
	"go.uber.org/zap"
)

type Deps struct {
	Logger       *zap.SugaredLogger
	TokenManager *auth.TokenManager
}

func NewLogger(outputs ...string) (*zap.SugaredLogger, error) {
	if len(outputs) == 0 {
		outputs = []string{"stdout", "server.log"}
	}

	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = outputs

	logger, err := logCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func NewDependencies(logger *zap.SugaredLogger, secretKey string, tokenTTL time.Duration) *Deps {
	return &Deps{Logger: logger, TokenManager: auth.NewTokenManager(secretKey, tokenTTL)}
}
