package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Owner.ID = strings.TrimSpace(c.Owner.ID)

	c.Tavus.APIKey = strings.TrimSpace(c.Tavus.APIKey)
	c.Tavus.IdentityRef = strings.TrimSpace(c.Tavus.IdentityRef)
	c.Tavus.BaseURL = strings.TrimRight(strings.TrimSpace(c.Tavus.BaseURL), "/")
	if c.Tavus.BaseURL == "" {
		c.Tavus.BaseURL = defaultTavusBaseURL
	}
	if c.Tavus.TimeoutSeconds <= 0 {
		c.Tavus.TimeoutSeconds = defaultTavusTimeout
	}

	gen := &c.Generation
	if gen.PollInitialSeconds <= 0 {
		gen.PollInitialSeconds = defaultPollInitial
	}
	if gen.PollBackoffFactor < 1 {
		gen.PollBackoffFactor = defaultPollBackoff
	}
	if gen.PollMaxSeconds < gen.PollInitialSeconds {
		gen.PollMaxSeconds = defaultPollMax
	}
	if gen.QueuedIntervalMultiplier < 1 {
		gen.QueuedIntervalMultiplier = defaultQueuedMultiplier
	}
	// The queued cap may never fall below the processing cap or queued
	// intervals could end up shorter than processing ones.
	if gen.QueuedMaxSeconds < gen.PollMaxSeconds {
		gen.QueuedMaxSeconds = gen.PollMaxSeconds
	}
	if gen.TimeoutSeconds <= 0 {
		gen.TimeoutSeconds = defaultPollTimeout
	}
	if gen.MaxPollAttempts <= 0 {
		gen.MaxPollAttempts = defaultMaxPollAttempts
	}
	if gen.PeakThresholdSeconds <= 0 {
		gen.PeakThresholdSeconds = defaultPeakThreshold
	}

	c.Archive.Endpoint = strings.TrimSpace(c.Archive.Endpoint)
	c.Archive.Bucket = strings.TrimSpace(c.Archive.Bucket)

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}

	c.Janitor.Schedule = strings.TrimSpace(c.Janitor.Schedule)
	if c.Janitor.Schedule == "" {
		c.Janitor.Schedule = defaultJanitorSchedule
	}
	if c.Janitor.StaleAfterSeconds <= 0 {
		c.Janitor.StaleAfterSeconds = gen.TimeoutSeconds * 2
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}
