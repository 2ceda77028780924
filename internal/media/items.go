package media

import (
	"strings"
	"time"
)

// AudioFormat describes the audio quality of a provider mapping or stream.
type AudioFormat struct {
	ContentType ContentType `json:"content_type"`
	SampleRate  int         `json:"sample_rate"`
	BitDepth    int         `json:"bit_depth"`
	Channels    int         `json:"channels"`
	BitRate     int         `json:"bit_rate"`
}

// ProviderMapping ties one canonical entity to one provider's identifier
// for it. Identity is (ProviderInstance, ItemID).
type ProviderMapping struct {
	ItemID           string      `json:"item_id"`
	ProviderDomain   string      `json:"provider_domain"`
	ProviderInstance string      `json:"provider_instance"`
	Available        bool        `json:"available"`
	AudioFormat      AudioFormat `json:"audio_format"`
	// Details holds opaque provider specific data.
	Details string `json:"details,omitempty"`
	// URL links to the provider's details page, if any.
	URL string `json:"url,omitempty"`
}

// Quality scores a mapping's audio format. Lossless content ranks by
// sample rate plus bit depth, lossy by bit rate with a small bonus for the
// more efficient codecs.
func (m ProviderMapping) Quality() int {
	if m.AudioFormat.ContentType.IsLossless() {
		return m.AudioFormat.SampleRate/1000 + m.AudioFormat.BitDepth
	}
	score := m.AudioFormat.BitRate / 100
	switch m.AudioFormat.ContentType {
	case ContentTypeAAC, ContentTypeOGG:
		score++
	}
	return score
}

// Equal reports mapping identity: same provider instance and item id.
func (m ProviderMapping) Equal(other ProviderMapping) bool {
	return m.ProviderInstance == other.ProviderInstance && m.ItemID == other.ItemID
}

// MediaItemImage is an image attached to item metadata.
type MediaItemImage struct {
	Type ImageType `json:"type"`
	Path string    `json:"path"`
	// IsFile marks Path as a local file path instead of a url.
	IsFile bool `json:"is_file,omitempty"`
}

// MediaItemMetadata carries the optional descriptive fields of an item.
type MediaItemMetadata struct {
	Description string           `json:"description,omitempty"`
	Explicit    *bool            `json:"explicit,omitempty"`
	Images      []MediaItemImage `json:"images,omitempty"`
	Genres      []string         `json:"genres,omitempty"`
	Mood        string           `json:"mood,omitempty"`
	Label       string           `json:"label,omitempty"`
	Copyright   string           `json:"copyright,omitempty"`
	Lyrics      string           `json:"lyrics,omitempty"`
	ReplayGain  *float64         `json:"replaygain,omitempty"`
	Popularity  *int             `json:"popularity,omitempty"`
	// LastRefresh is the unix timestamp the full metadata was last collected.
	LastRefresh int64 `json:"last_refresh,omitempty"`
	// Checksum detects changes in dynamic items such as playlists.
	Checksum string `json:"checksum,omitempty"`
}

// Update merges new metadata values in place. List fields union, scalar
// fields keep the current value unless it is unset or allowOverwrite is
// given. Checksum, Popularity and LastRefresh always take a new non-zero
// value.
func (m *MediaItemMetadata) Update(newValues MediaItemMetadata, allowOverwrite bool) {
	if newValues.Description != "" && (m.Description == "" || allowOverwrite) {
		m.Description = newValues.Description
	}
	if newValues.Explicit != nil && (m.Explicit == nil || allowOverwrite) {
		m.Explicit = newValues.Explicit
	}
	m.Images = mergeImages(m.Images, newValues.Images)
	m.Genres = mergeStrings(m.Genres, newValues.Genres)
	if newValues.Mood != "" && (m.Mood == "" || allowOverwrite) {
		m.Mood = newValues.Mood
	}
	if newValues.Label != "" && (m.Label == "" || allowOverwrite) {
		m.Label = newValues.Label
	}
	if newValues.Copyright != "" && (m.Copyright == "" || allowOverwrite) {
		m.Copyright = newValues.Copyright
	}
	if newValues.Lyrics != "" && (m.Lyrics == "" || allowOverwrite) {
		m.Lyrics = newValues.Lyrics
	}
	if newValues.ReplayGain != nil && (m.ReplayGain == nil || allowOverwrite) {
		m.ReplayGain = newValues.ReplayGain
	}
	// always overwritable when a new value arrives
	if newValues.Popularity != nil {
		m.Popularity = newValues.Popularity
	}
	if newValues.LastRefresh != 0 {
		m.LastRefresh = newValues.LastRefresh
	}
	if newValues.Checksum != "" {
		m.Checksum = newValues.Checksum
	}
}

func mergeStrings(current, incoming []string) []string {
	for _, val := range incoming {
		found := false
		for _, cur := range current {
			if strings.EqualFold(cur, val) {
				found = true
				break
			}
		}
		if !found {
			current = append(current, val)
		}
	}
	return current
}

func mergeImages(current, incoming []MediaItemImage) []MediaItemImage {
	for _, val := range incoming {
		found := false
		for _, cur := range current {
			if cur.Path == val.Path {
				found = true
				break
			}
		}
		if !found {
			current = append(current, val)
		}
	}
	return current
}

// MediaItem is the shared base of all media item variants. ItemID is scoped
// to Provider; canonical database rows use Provider "database" and the
// numeric row id as ItemID.
type MediaItem struct {
	ItemID    string    `json:"item_id"`
	Provider  string    `json:"provider"`
	Name      string    `json:"name"`
	SortName  string    `json:"sort_name"`
	URI       string    `json:"uri"`
	InLibrary bool      `json:"in_library"`
	MediaType MediaType `json:"media_type"`

	ProviderMappings []ProviderMapping `json:"provider_mappings"`
	Metadata         MediaItemMetadata `json:"metadata"`

	TimestampAdded    int64 `json:"timestamp_added"`
	TimestampModified int64 `json:"timestamp_modified"`
}

// Common gives generic code access to the shared base of a variant.
func (m *MediaItem) Common() *MediaItem { return m }

// EnsureDerived (re)generates the derived uri and sort_name fields.
// Persisted entities never carry empty values for either.
func (m *MediaItem) EnsureDerived() {
	if m.SortName == "" {
		m.SortName = CreateSortName(m.Name)
	}
	if m.URI == "" {
		m.URI = CreateURI(m.MediaType, m.Provider, m.ItemID)
	}
}

// Available is true when any provider mapping is available.
func (m *MediaItem) Available() bool {
	for _, mapping := range m.ProviderMappings {
		if mapping.Available {
			return true
		}
	}
	return false
}

// AddProviderMapping adds a mapping, replacing an existing entry with the
// same (provider_instance, item_id) identity.
func (m *MediaItem) AddProviderMapping(mapping ProviderMapping) {
	for i, existing := range m.ProviderMappings {
		if existing.Equal(mapping) {
			m.ProviderMappings[i] = mapping
			return
		}
	}
	m.ProviderMappings = append(m.ProviderMappings, mapping)
}

// MergeProviderMappings unions the given mappings into the item's set.
func (m *MediaItem) MergeProviderMappings(mappings []ProviderMapping) {
	for _, mapping := range mappings {
		m.AddProviderMapping(mapping)
	}
}

// Image returns the first thumb image from metadata, or nil.
func (m *MediaItem) Image() *MediaItemImage {
	for i := range m.Metadata.Images {
		if m.Metadata.Images[i].Type == ImageTypeThumb {
			return &m.Metadata.Images[i]
		}
	}
	return nil
}

// LastRefresh returns when the full metadata was last collected (0 = never).
func (m *MediaItem) LastRefresh() time.Time {
	return time.Unix(m.Metadata.LastRefresh, 0)
}

// ItemMapping is the reduced projection of any media item, used to
// reference one item from another (e.g. an album's artists) without
// materialising the full object.
type ItemMapping struct {
	MediaType MediaType `json:"media_type"`
	ItemID    string    `json:"item_id"`
	Provider  string    `json:"provider"`
	Name      string    `json:"name"`
	SortName  string    `json:"sort_name"`
	URI       string    `json:"uri"`
	Version   string    `json:"version,omitempty"`
}

// MappingFromItem projects a full item to an ItemMapping reference.
func MappingFromItem[T LibraryItem](item T) ItemMapping {
	base := item.Common()
	base.EnsureDerived()
	version := ""
	switch it := any(item).(type) {
	case *Album:
		version = it.Version
	case *Track:
		version = it.Version
	}
	return ItemMapping{
		MediaType: base.MediaType,
		ItemID:    base.ItemID,
		Provider:  base.Provider,
		Name:      base.Name,
		SortName:  base.SortName,
		URI:       base.URI,
		Version:   version,
	}
}

// LibraryItem is implemented by all media item variants that live in the
// canonical library.
type LibraryItem interface {
	Common() *MediaItem
}

// Artist is a single performing artist.
type Artist struct {
	MediaItem
	MusicBrainzID string `json:"musicbrainz_id,omitempty"`
}

// Album is a release containing tracks.
type Album struct {
	MediaItem
	Version       string        `json:"version,omitempty"`
	Year          int           `json:"year,omitempty"`
	Artists       []ItemMapping `json:"artists"`
	AlbumType     AlbumType     `json:"album_type"`
	UPC           string        `json:"upc,omitempty"`
	MusicBrainzID string        `json:"musicbrainz_id,omitempty"`
}

// Artist returns the (first) album artist, or nil.
func (a *Album) Artist() *ItemMapping {
	if len(a.Artists) == 0 {
		return nil
	}
	return &a.Artists[0]
}

// TrackAlbumMapping records one album appearance of a track. Disc and track
// numbers live here, not on the album.
type TrackAlbumMapping struct {
	ItemMapping
	DiscNumber  int `json:"disc_number,omitempty"`
	TrackNumber int `json:"track_number,omitempty"`
}

// Track is a single playable song.
type Track struct {
	MediaItem
	Duration int    `json:"duration"`
	Version  string `json:"version,omitempty"`
	// ISRC may hold multiple values separated by semicolons.
	ISRC          string        `json:"isrc,omitempty"`
	MusicBrainzID string        `json:"musicbrainz_id,omitempty"`
	Artists       []ItemMapping `json:"artists"`
	// Album/DiscNumber/TrackNumber describe the album context this track
	// instance was loaded from; Albums collects all known appearances.
	Album       *ItemMapping        `json:"album,omitempty"`
	Albums      []TrackAlbumMapping `json:"albums,omitempty"`
	DiscNumber  int                 `json:"disc_number,omitempty"`
	TrackNumber int                 `json:"track_number,omitempty"`
	// Position is only set for playlist tracks.
	Position int `json:"position,omitempty"`
}

// ISRCs splits the (possibly multi-valued) isrc field.
func (t *Track) ISRCs() []string {
	if t.ISRC == "" {
		return nil
	}
	parts := strings.Split(t.ISRC, ";")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AddISRC unions a new isrc value into the field.
func (t *Track) AddISRC(isrc string) {
	if isrc == "" {
		return
	}
	for _, existing := range t.ISRCs() {
		if existing == isrc {
			return
		}
	}
	if t.ISRC == "" {
		t.ISRC = isrc
		return
	}
	t.ISRC += ";" + isrc
}

// Artist returns the (first) track artist, or nil.
func (t *Track) Artist() *ItemMapping {
	if len(t.Artists) == 0 {
		return nil
	}
	return &t.Artists[0]
}

// AddAlbumMapping records an album appearance, unique by
// (album item id, disc, track).
func (t *Track) AddAlbumMapping(mapping TrackAlbumMapping) {
	for _, existing := range t.Albums {
		if existing.ItemID == mapping.ItemID &&
			existing.Provider == mapping.Provider &&
			existing.DiscNumber == mapping.DiscNumber &&
			existing.TrackNumber == mapping.TrackNumber {
			return
		}
	}
	t.Albums = append(t.Albums, mapping)
}

// Playlist is an (possibly editable) ordered track collection.
type Playlist struct {
	MediaItem
	Owner      string `json:"owner,omitempty"`
	IsEditable bool   `json:"is_editable"`
}

// Checksum returns the current playlist content checksum.
func (p *Playlist) Checksum() string { return p.Metadata.Checksum }

// RadioDuration is the pseudo duration assigned to radio streams.
const RadioDuration = 172800

// Radio is a continuous radio stream.
type Radio struct {
	MediaItem
	Duration int `json:"duration"`
}

// Chapter is a named position range in an audiobook or episode.
type Chapter struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	StartMs  int64  `json:"start_ms"`
	EndMs    int64  `json:"end_ms,omitempty"`
}

// Audiobook is a single audiobook with resume support.
type Audiobook struct {
	MediaItem
	Duration         int       `json:"duration"`
	Authors          []string  `json:"authors,omitempty"`
	Narrators        []string  `json:"narrators,omitempty"`
	Chapters         []Chapter `json:"chapters,omitempty"`
	ResumePositionMs int64     `json:"resume_position_ms"`
	FullyPlayed      bool      `json:"fully_played"`
}

// Podcast is a podcast feed; its episodes are listed on demand and are not
// separate library rows.
type Podcast struct {
	MediaItem
	Publisher     string `json:"publisher,omitempty"`
	TotalEpisodes int    `json:"total_episodes,omitempty"`
}

// Episode is one episode of a podcast.
type Episode struct {
	MediaItem
	Podcast          ItemMapping `json:"podcast"`
	Position         int         `json:"position"`
	Duration         int         `json:"duration"`
	Chapters         []Chapter   `json:"chapters,omitempty"`
	ResumePositionMs int64       `json:"resume_position_ms"`
	FullyPlayed      bool        `json:"fully_played"`
}

// BrowseFolder is a hierarchical browse node; it is never persisted.
type BrowseFolder struct {
	MediaItem
	Path  string        `json:"path"`
	Label string        `json:"label,omitempty"`
	Items []ItemMapping `json:"items,omitempty"`
}

// SearchResults groups provider search output per media type.
type SearchResults struct {
	Artists    []*Artist    `json:"artists,omitempty"`
	Albums     []*Album     `json:"albums,omitempty"`
	Tracks     []*Track     `json:"tracks,omitempty"`
	Playlists  []*Playlist  `json:"playlists,omitempty"`
	Radios     []*Radio     `json:"radios,omitempty"`
	Audiobooks []*Audiobook `json:"audiobooks,omitempty"`
	Podcasts   []*Podcast   `json:"podcasts,omitempty"`
}

// PagedItems is a page of a library listing.
type PagedItems[T any] struct {
	Items  []T   `json:"items"`
	Count  int   `json:"count"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}
