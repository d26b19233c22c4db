package main

import "github.com/rs/zerolog"

// cliUI implements the UIProvider interface each package declares locally
// (sync.UIProvider, collections.UIProvider, library.UIProvider) for a
// headless process: log lines go to the configured zerolog logger, and
// events — which the GUI frontend would otherwise render — are logged at
// debug level instead of dropped, so `--log-level debug` surfaces them.
type cliUI struct {
	log zerolog.Logger
}

func (u cliUI) LogInfof(format string, args ...interface{}) {
	u.log.Info().Msgf(format, args...)
}

func (u cliUI) LogErrorf(format string, args ...interface{}) {
	u.log.Error().Msgf(format, args...)
}

func (u cliUI) EventsEmit(eventName string, args ...interface{}) {
	u.log.Debug().Str("event", eventName).Interface("args", args).Msg("event")
}
