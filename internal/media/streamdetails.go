package media

import "time"

// StreamDetails is the resolved plan for streaming one queue item: the
// chosen provider mapping, its audio format, the transport and the
// replay-gain correction. Fields after Expires are populated and mutated
// by the stream coordinator.
type StreamDetails struct {
	Provider  string      `json:"provider"`
	ItemID    string      `json:"item_id"`
	MediaType MediaType   `json:"media_type"`
	Format    AudioFormat `json:"audio_format"`

	StreamType StreamType `json:"stream_type"`
	// Path is the provider-side location of the audio: a url for HTTP/HLS,
	// a local path for FILE, a command line for PIPE.
	Path     string `json:"path"`
	Duration int    `json:"duration,omitempty"`
	Size     int64  `json:"size,omitempty"`
	// StreamTitle carries now-playing info for radio streams.
	StreamTitle string `json:"stream_title,omitempty"`
	// Direct allows the stream endpoint to redirect the player straight to
	// Path instead of proxying.
	Direct  bool      `json:"direct,omitempty"`
	Expires time.Time `json:"expires,omitempty"`

	// set by the stream coordinator
	GainCorrect     float64 `json:"gain_correct"`
	Loudness        float64 `json:"loudness,omitempty"`
	LoudnessKnown   bool    `json:"loudness_known,omitempty"`
	SecondsStreamed float64 `json:"seconds_streamed,omitempty"`
	QueueID         string  `json:"queue_id,omitempty"`
}

// QueueItem is one scheduled playback unit attached to one player queue.
type QueueItem struct {
	QueueItemID string `json:"queue_item_id"`
	Name        string `json:"name"`
	URI         string `json:"uri"`
	Duration    int    `json:"duration"`
	Position    int    `json:"position"`
	ElapsedTime float64 `json:"elapsed_time"`

	MediaItem *Track `json:"media_item,omitempty"`
	Radio     *Radio `json:"radio,omitempty"`

	StreamURL     string         `json:"stream_url,omitempty"`
	StreamDetails *StreamDetails `json:"stream_details,omitempty"`
}

// DeviceInfo describes the physical device backing a player.
type DeviceInfo struct {
	Model        string `json:"model,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Address      string `json:"address,omitempty"`
}

// Player is the state snapshot of one network connected player. Drivers
// update the raw fields; the player manager recomputes the derived ones on
// every update.
type Player struct {
	PlayerID   string      `json:"player_id"`
	ProviderID string      `json:"provider_id"`
	Name       string      `json:"name"`
	State      PlayerState `json:"state"`
	Powered    bool        `json:"powered"`
	Available  bool        `json:"available"`

	CurrentURL  string  `json:"current_url,omitempty"`
	ElapsedTime float64 `json:"elapsed_time"`
	VolumeLevel int     `json:"volume_level"`
	Muted       bool    `json:"muted"`

	IsGroup     bool     `json:"is_group"`
	GroupChilds []string `json:"group_childs,omitempty"`

	Features   []PlayerFeature `json:"features,omitempty"`
	ShouldPoll bool            `json:"should_poll"`
	DeviceInfo DeviceInfo      `json:"device_info"`
}

// HasFeature reports whether the player driver declared the capability.
func (p *Player) HasFeature(feature PlayerFeature) bool {
	for _, f := range p.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// ConfigEntry is one typed provider/player configuration entry. Values of
// type SECURE_STRING are encrypted at rest by the configuration store.
type ConfigEntry struct {
	Key          string          `json:"key"`
	Type         ConfigEntryType `json:"type"`
	Label        string          `json:"label"`
	Required     bool            `json:"required"`
	DefaultValue any             `json:"default_value,omitempty"`
	Options      []string        `json:"options,omitempty"`
	Hidden       bool            `json:"hidden,omitempty"`
	Value        any             `json:"value,omitempty"`
}
