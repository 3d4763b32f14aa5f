package config

const (
	defaultDataDir          = "~/.local/share/runreel"
	defaultLogDir           = "~/.local/share/runreel/logs"
	defaultAPIBind          = "127.0.0.1:7910"
	defaultTavusBaseURL     = "https://tavusapi.com/v2"
	defaultTavusTimeout     = 30
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultPollInitial      = 2
	defaultPollBackoff      = 1.25
	defaultPollMax          = 10
	defaultQueuedMultiplier = 1.5
	defaultQueuedMax        = 15
	defaultPollTimeout      = 600
	defaultMaxPollAttempts  = 150
	defaultPeakThreshold    = 120
	defaultNotifyTimeout    = 10
	defaultJanitorSchedule  = "@every 5m"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Tavus: Tavus{
			BaseURL:        defaultTavusBaseURL,
			TimeoutSeconds: defaultTavusTimeout,
		},
		Generation: Generation{
			PollInitialSeconds:       defaultPollInitial,
			PollBackoffFactor:        defaultPollBackoff,
			PollMaxSeconds:           defaultPollMax,
			QueuedIntervalMultiplier: defaultQueuedMultiplier,
			QueuedMaxSeconds:         defaultQueuedMax,
			TimeoutSeconds:           defaultPollTimeout,
			MaxPollAttempts:          defaultMaxPollAttempts,
			PeakThresholdSeconds:     defaultPeakThreshold,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completion:     true,
			Errors:         true,
		},
		Janitor: Janitor{
			Schedule:          defaultJanitorSchedule,
			StaleAfterSeconds: defaultPollTimeout * 2,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
