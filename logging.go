package aprsis

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging configures where the core's structured logs go, following
// the teacher's logging.go shape: named sinks, each either "stdout",
// "stderr", or a file path, teed together into one zapcore.Core when
// more than one is configured.
type Logging struct {
	Sinks []string `json:"sinks,omitempty"` // "stdout", "stderr", or a file path
	Debug bool     `json:"debug,omitempty"`
}

func buildLogger(cfg *Logging) (*zap.Logger, error) {
	if cfg == nil {
		cfg = &Logging{Sinks: []string{"stderr"}}
	}
	if len(cfg.Sinks) == 0 {
		cfg.Sinks = []string{"stderr"}
	}

	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := make([]zapcore.Core, 0, len(cfg.Sinks))
	for _, sink := range cfg.Sinks {
		ws, _, err := zap.Open(sink)
		if err != nil {
			return nil, fmt.Errorf("logging sink %q: %w", sink, err)
		}
		cores = append(cores, zapcore.NewCore(encoder, ws, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}
