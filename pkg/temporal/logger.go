package temporal

import "go.uber.org/zap"

// ZapAdapter exposes a zap logger through the log.Logger interface the
// Temporal SDK expects. The SDK hands over loose keyvals, so the adapter
// wraps the sugared form.
type ZapAdapter struct {
	sugar *zap.SugaredLogger
}

// NewZapAdapter wraps the given logger for use as the SDK client logger.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	return &ZapAdapter{sugar: logger.Sugar()}
}

func (z *ZapAdapter) Debug(msg string, keyvals ...interface{}) { z.sugar.Debugw(msg, keyvals...) }
func (z *ZapAdapter) Info(msg string, keyvals ...interface{})  { z.sugar.Infow(msg, keyvals...) }
func (z *ZapAdapter) Warn(msg string, keyvals ...interface{})  { z.sugar.Warnw(msg, keyvals...) }
func (z *ZapAdapter) Error(msg string, keyvals ...interface{}) { z.sugar.Errorw(msg, keyvals...) }
