// Package notifications delivers pipeline milestones via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Per-category toggles let a user silence routine milestones while keeping
// review prompts and errors.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications
