// Package events provides the in-process event bus used to fan out media
// library and player state changes to subscribers.
package events

import "time"

// EventType identifies a bus topic.
type EventType string

const (
	MediaItemAdded   EventType = "media_item_added"
	MediaItemUpdated EventType = "media_item_updated"
	MediaItemDeleted EventType = "media_item_deleted"

	PlayerAdded   EventType = "player_added"
	PlayerRemoved EventType = "player_removed"
	PlayerChanged EventType = "player_changed"

	PlayerControlRegistered EventType = "player_control_registered"
	PlayerControlUpdated    EventType = "player_control_updated"

	QueueUpdated      EventType = "queue_updated"
	QueueItemsUpdated EventType = "queue_items_updated"

	MusicSyncStatus EventType = "music_sync_status"
)

// Event is one bus message. ObjectID identifies the subject (item uri,
// player id or provider instance id); Data holds the canonical JSON form
// of the entity.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	ObjectID  string    `json:"object_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Handler consumes one event. Handlers are invoked sequentially from the
// bus loop; a slow handler delays delivery for everyone.
type Handler func(event Event)

// Filter limits a subscription to certain topics and/or object ids.
// Zero value matches everything.
type Filter struct {
	Types     []EventType
	ObjectIDs []string
}

// Matches reports whether the event passes the filter.
func (f Filter) Matches(event Event) bool {
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if t == event.Type {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.ObjectIDs) > 0 {
		ok := false
		for _, id := range f.ObjectIDs {
			if id == event.ObjectID {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
