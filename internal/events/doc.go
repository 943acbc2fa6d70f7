// Package events fans out disc job and title transitions to observers.
// The hub keeps a bounded replay buffer so a late subscriber can catch
// up on recent activity before blocking for new events.
package events
