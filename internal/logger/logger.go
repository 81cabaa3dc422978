// Package logger 基于 zap 提供结构化日志器的构建。
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 根据环境和配置创建 zap 日志器。
// dev 环境使用开发友好的配置（彩色级别、可读堆栈），
// 其余环境使用生产配置（JSON编码、采样）。
func New(env, level, encoding, name, version string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	if encoding != "" {
		cfg.Encoding = encoding
	}

	lg, err := cfg.Build(
		zap.Fields(
			zap.String("app", name),
			zap.String("version", version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return lg, nil
}
