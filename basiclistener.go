package main

import (
	"github.com/Unleash/unleash-client-go/v3"
	"go.uber.org/zap"
)

// BasicListener is a much less noisy version of Unleash's DebugListener
type BasicListener struct {
	logger *zap.SugaredLogger
}

// OnError logs errors
func (l BasicListener) OnError(err error) {
	l.logger.Errorw("Unleash error", "error", err)
}

// OnWarning swallows warnings
func (l BasicListener) OnWarning(warning error) {
}

// OnReady logs when the repository is ready
func (l BasicListener) OnReady() {
	l.logger.Info("Unleash ready")
}

// OnCount is called when a feature is queried
func (l BasicListener) OnCount(name string, enabled bool) {
}

// OnSent is called when the server has uploaded metrics
func (l BasicListener) OnSent(payload unleash.MetricsData) {
}

// OnRegistered is called when the client has registered
func (l BasicListener) OnRegistered(payload unleash.ClientData) {
}
