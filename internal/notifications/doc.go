// Package notifications delivers generation milestones via pluggable
// notifiers. The default implementation publishes to ntfy using the topic in
// config.toml and degrades to a no-op when notifications are disabled.
package notifications
