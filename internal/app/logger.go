package app

import (
	"fmt"
	"os"
	"strings"

	"service-delivery-tracking/internal/config"
	"service-delivery-tracking/internal/logx"
)

// NewLogger builds the process logger from cfg.Log.
func NewLogger(cfg *config.Config) (logx.Logger, error) {
	level := logx.ParseLevel(cfg.Log.Level)
	switch strings.ToLower(strings.TrimSpace(cfg.Log.Backend)) {
	case "zap":
		l, err := logx.NewZapProduction(level)
		if err != nil {
			return nil, fmt.Errorf("zap logger: %w", err)
		}
		return l, nil
	default:
		return logx.NewJSON(os.Stdout, level), nil
	}
}
