package database

import (
	"strconv"

	"github.com/marcelveldt/music-assistant/internal/media"
)

// ItemColumns holds the columns shared by all canonical entity tables.
type ItemColumns struct {
	ID                int64  `gorm:"primaryKey;autoIncrement" json:"item_id"`
	Name              string `gorm:"index;not null" json:"name"`
	SortName          string `gorm:"index;not null" json:"sort_name"`
	InLibrary         bool   `gorm:"index" json:"in_library"`
	TimestampAdded    int64  `json:"timestamp_added"`
	TimestampModified int64  `json:"timestamp_modified"`

	ProviderMappings JSON[[]media.ProviderMapping] `gorm:"type:text" json:"provider_mappings"`
	Metadata         JSON[media.MediaItemMetadata] `gorm:"type:text" json:"metadata"`
}

func (c *ItemColumns) fill(base *media.MediaItem, mediaType media.MediaType) {
	base.ItemID = strconv.FormatInt(c.ID, 10)
	base.Provider = media.ProviderDatabase
	base.Name = c.Name
	base.SortName = c.SortName
	base.InLibrary = c.InLibrary
	base.MediaType = mediaType
	base.ProviderMappings = c.ProviderMappings.Data
	base.Metadata = c.Metadata.Data
	base.TimestampAdded = c.TimestampAdded
	base.TimestampModified = c.TimestampModified
	base.EnsureDerived()
}

func itemColumns(base *media.MediaItem) ItemColumns {
	base.EnsureDerived()
	cols := ItemColumns{
		Name:              base.Name,
		SortName:          base.SortName,
		InLibrary:         base.InLibrary,
		TimestampAdded:    base.TimestampAdded,
		TimestampModified: base.TimestampModified,
		ProviderMappings:  NewJSON(base.ProviderMappings),
		Metadata:          NewJSON(base.Metadata),
	}
	if base.Provider == media.ProviderDatabase {
		if id, err := strconv.ParseInt(base.ItemID, 10, 64); err == nil {
			cols.ID = id
		}
	}
	return cols
}

// ArtistRow is the canonical artists table.
type ArtistRow struct {
	ItemColumns
	MusicBrainzID string `gorm:"index" json:"musicbrainz_id"`
}

func (ArtistRow) TableName() string { return "artists" }

// ToItem converts the row to its canonical entity.
func (r *ArtistRow) ToItem() *media.Artist {
	item := &media.Artist{MusicBrainzID: r.MusicBrainzID}
	r.fill(&item.MediaItem, media.MediaTypeArtist)
	return item
}

// ArtistToRow converts an artist to its row form.
func ArtistToRow(item *media.Artist) *ArtistRow {
	return &ArtistRow{
		ItemColumns:   itemColumns(&item.MediaItem),
		MusicBrainzID: item.MusicBrainzID,
	}
}

// AlbumRow is the canonical albums table.
type AlbumRow struct {
	ItemColumns
	Version       string                   `json:"version"`
	Year          int                      `json:"year"`
	AlbumType     media.AlbumType          `json:"album_type"`
	UPC           string                   `gorm:"index" json:"upc"`
	MusicBrainzID string                   `gorm:"index" json:"musicbrainz_id"`
	Artists       JSON[[]media.ItemMapping] `gorm:"type:text" json:"artists"`
}

func (AlbumRow) TableName() string { return "albums" }

// ToItem converts the row to its canonical entity.
func (r *AlbumRow) ToItem() *media.Album {
	item := &media.Album{
		Version:       r.Version,
		Year:          r.Year,
		AlbumType:     r.AlbumType,
		UPC:           r.UPC,
		MusicBrainzID: r.MusicBrainzID,
		Artists:       r.Artists.Data,
	}
	r.fill(&item.MediaItem, media.MediaTypeAlbum)
	return item
}

// AlbumToRow converts an album to its row form.
func AlbumToRow(item *media.Album) *AlbumRow {
	return &AlbumRow{
		ItemColumns:   itemColumns(&item.MediaItem),
		Version:       item.Version,
		Year:          item.Year,
		AlbumType:     item.AlbumType,
		UPC:           item.UPC,
		MusicBrainzID: item.MusicBrainzID,
		Artists:       NewJSON(item.Artists),
	}
}

// TrackRow is the canonical tracks table. Disc and track numbers are
// carried per album appearance inside the albums column.
type TrackRow struct {
	ItemColumns
	Duration      int                             `json:"duration"`
	Version       string                          `json:"version"`
	ISRC          string                          `gorm:"index" json:"isrc"`
	MusicBrainzID string                          `gorm:"index" json:"musicbrainz_id"`
	Artists       JSON[[]media.ItemMapping]       `gorm:"type:text" json:"artists"`
	Albums        JSON[[]media.TrackAlbumMapping] `gorm:"type:text" json:"albums"`
}

func (TrackRow) TableName() string { return "tracks" }

// ToItem converts the row to its canonical entity. The first album
// appearance (if any) becomes the album context.
func (r *TrackRow) ToItem() *media.Track {
	item := &media.Track{
		Duration:      r.Duration,
		Version:       r.Version,
		ISRC:          r.ISRC,
		MusicBrainzID: r.MusicBrainzID,
		Artists:       r.Artists.Data,
		Albums:        r.Albums.Data,
	}
	if len(item.Albums) > 0 {
		first := item.Albums[0]
		item.Album = &first.ItemMapping
		item.DiscNumber = first.DiscNumber
		item.TrackNumber = first.TrackNumber
	}
	r.fill(&item.MediaItem, media.MediaTypeTrack)
	return item
}

// TrackToRow converts a track to its row form.
func TrackToRow(item *media.Track) *TrackRow {
	return &TrackRow{
		ItemColumns:   itemColumns(&item.MediaItem),
		Duration:      item.Duration,
		Version:       item.Version,
		ISRC:          item.ISRC,
		MusicBrainzID: item.MusicBrainzID,
		Artists:       NewJSON(item.Artists),
		Albums:        NewJSON(item.Albums),
	}
}

// PlaylistRow is the canonical playlists table.
type PlaylistRow struct {
	ItemColumns
	Owner      string `json:"owner"`
	IsEditable bool   `json:"is_editable"`
}

func (PlaylistRow) TableName() string { return "playlists" }

// ToItem converts the row to its canonical entity.
func (r *PlaylistRow) ToItem() *media.Playlist {
	item := &media.Playlist{Owner: r.Owner, IsEditable: r.IsEditable}
	r.fill(&item.MediaItem, media.MediaTypePlaylist)
	return item
}

// PlaylistToRow converts a playlist to its row form.
func PlaylistToRow(item *media.Playlist) *PlaylistRow {
	return &PlaylistRow{
		ItemColumns: itemColumns(&item.MediaItem),
		Owner:       item.Owner,
		IsEditable:  item.IsEditable,
	}
}

// RadioRow is the canonical radios table. Duration is derived, not stored.
type RadioRow struct {
	ItemColumns
}

func (RadioRow) TableName() string { return "radios" }

// ToItem converts the row to its canonical entity.
func (r *RadioRow) ToItem() *media.Radio {
	item := &media.Radio{Duration: media.RadioDuration}
	r.fill(&item.MediaItem, media.MediaTypeRadio)
	return item
}

// RadioToRow converts a radio station to its row form.
func RadioToRow(item *media.Radio) *RadioRow {
	return &RadioRow{ItemColumns: itemColumns(&item.MediaItem)}
}

// AudiobookRow is the canonical audiobooks table.
type AudiobookRow struct {
	ItemColumns
	Duration         int                   `json:"duration"`
	Authors          JSON[[]string]        `gorm:"type:text" json:"authors"`
	Narrators        JSON[[]string]        `gorm:"type:text" json:"narrators"`
	Chapters         JSON[[]media.Chapter] `gorm:"type:text" json:"chapters"`
	ResumePositionMs int64                 `json:"resume_position_ms"`
	FullyPlayed      bool                  `json:"fully_played"`
}

func (AudiobookRow) TableName() string { return "audiobooks" }

// ToItem converts the row to its canonical entity.
func (r *AudiobookRow) ToItem() *media.Audiobook {
	item := &media.Audiobook{
		Duration:         r.Duration,
		Authors:          r.Authors.Data,
		Narrators:        r.Narrators.Data,
		Chapters:         r.Chapters.Data,
		ResumePositionMs: r.ResumePositionMs,
		FullyPlayed:      r.FullyPlayed,
	}
	r.fill(&item.MediaItem, media.MediaTypeAudiobook)
	return item
}

// AudiobookToRow converts an audiobook to its row form.
func AudiobookToRow(item *media.Audiobook) *AudiobookRow {
	return &AudiobookRow{
		ItemColumns:      itemColumns(&item.MediaItem),
		Duration:         item.Duration,
		Authors:          NewJSON(item.Authors),
		Narrators:        NewJSON(item.Narrators),
		Chapters:         NewJSON(item.Chapters),
		ResumePositionMs: item.ResumePositionMs,
		FullyPlayed:      item.FullyPlayed,
	}
}

// PodcastRow is the canonical podcasts table.
type PodcastRow struct {
	ItemColumns
	Publisher     string `json:"publisher"`
	TotalEpisodes int    `json:"total_episodes"`
}

func (PodcastRow) TableName() string { return "podcasts" }

// ToItem converts the row to its canonical entity.
func (r *PodcastRow) ToItem() *media.Podcast {
	item := &media.Podcast{Publisher: r.Publisher, TotalEpisodes: r.TotalEpisodes}
	r.fill(&item.MediaItem, media.MediaTypePodcast)
	return item
}

// PodcastToRow converts a podcast to its row form.
func PodcastToRow(item *media.Podcast) *PodcastRow {
	return &PodcastRow{
		ItemColumns:   itemColumns(&item.MediaItem),
		Publisher:     item.Publisher,
		TotalEpisodes: item.TotalEpisodes,
	}
}

// ProviderMappingRow is the provider-mapping index: an exact image of the
// union of all rows' mapping sets, used for fast provider-id lookups.
type ProviderMappingRow struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	MediaType        string `gorm:"uniqueIndex:idx_prov_mapping;index:idx_prov_lookup"`
	ItemID           int64  `gorm:"uniqueIndex:idx_prov_mapping"`
	ProviderDomain   string `gorm:"index:idx_prov_lookup"`
	ProviderInstance string `gorm:"uniqueIndex:idx_prov_mapping;index:idx_prov_lookup"`
	ProviderItemID   string `gorm:"uniqueIndex:idx_prov_mapping;index:idx_prov_lookup"`
}

func (ProviderMappingRow) TableName() string { return "provider_mappings" }

// TrackLoudness stores measured integrated loudness per provider item,
// written back asynchronously from the decode pipeline at stream end.
type TrackLoudness struct {
	ID           int64   `gorm:"primaryKey;autoIncrement"`
	Provider     string  `gorm:"uniqueIndex:idx_loudness"`
	ItemID       string  `gorm:"uniqueIndex:idx_loudness"`
	LoudnessLUFS float64 `json:"loudness_lufs"`
}

func (TrackLoudness) TableName() string { return "track_loudness" }
