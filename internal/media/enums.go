// Package media holds the canonical data model shared by the music
// controllers, providers, players and the stream coordinator.
package media

// MediaType is the discriminator for all media item variants.
type MediaType string

const (
	MediaTypeArtist    MediaType = "artist"
	MediaTypeAlbum     MediaType = "album"
	MediaTypeTrack     MediaType = "track"
	MediaTypePlaylist  MediaType = "playlist"
	MediaTypeRadio     MediaType = "radio"
	MediaTypeAudiobook MediaType = "audiobook"
	MediaTypePodcast   MediaType = "podcast"
	MediaTypeEpisode   MediaType = "episode"
	MediaTypeFolder    MediaType = "folder"
	MediaTypeUnknown   MediaType = "unknown"
)

// LibraryTypes lists the media types that have their own canonical table.
var LibraryTypes = []MediaType{
	MediaTypeArtist,
	MediaTypeAlbum,
	MediaTypeTrack,
	MediaTypePlaylist,
	MediaTypeRadio,
	MediaTypeAudiobook,
	MediaTypePodcast,
}

// ContentType describes the audio codec/container of a stream or mapping.
type ContentType string

const (
	ContentTypeOGG     ContentType = "ogg"
	ContentTypeFLAC    ContentType = "flac"
	ContentTypeMP3     ContentType = "mp3"
	ContentTypeAAC     ContentType = "aac"
	ContentTypeMPEG    ContentType = "mpeg"
	ContentTypeALAC    ContentType = "alac"
	ContentTypeWAV     ContentType = "wav"
	ContentTypeAIFF    ContentType = "aiff"
	ContentTypeWMA     ContentType = "wma"
	ContentTypeM4A     ContentType = "m4a"
	ContentTypeDSF     ContentType = "dsf"
	ContentTypeUnknown ContentType = "?"
)

// IsLossless returns true for codecs that retain the full source signal.
func (ct ContentType) IsLossless() bool {
	switch ct {
	case ContentTypeFLAC, ContentTypeALAC, ContentTypeWAV, ContentTypeAIFF, ContentTypeDSF:
		return true
	}
	return false
}

// ContentTypeFromExt maps a file extension (without dot) to a ContentType.
func ContentTypeFromExt(ext string) ContentType {
	switch ext {
	case "mp3":
		return ContentTypeMP3
	case "flac":
		return ContentTypeFLAC
	case "ogg", "oga":
		return ContentTypeOGG
	case "aac":
		return ContentTypeAAC
	case "m4a", "mp4":
		return ContentTypeM4A
	case "alac":
		return ContentTypeALAC
	case "wav":
		return ContentTypeWAV
	case "aif", "aiff":
		return ContentTypeAIFF
	case "wma":
		return ContentTypeWMA
	case "dsf":
		return ContentTypeDSF
	}
	return ContentTypeUnknown
}

// AlbumType classifies an album release.
type AlbumType string

const (
	AlbumTypeAlbum       AlbumType = "album"
	AlbumTypeSingle      AlbumType = "single"
	AlbumTypeCompilation AlbumType = "compilation"
	AlbumTypeEP          AlbumType = "ep"
	AlbumTypeUnknown     AlbumType = "unknown"
)

// StreamType is the transport used to reach the audio of a StreamDetails.
type StreamType string

const (
	StreamTypeHTTP StreamType = "http"
	StreamTypeHLS  StreamType = "hls"
	StreamTypeFile StreamType = "file"
	StreamTypePipe StreamType = "pipe"
)

// PlayerState is the playback state of a player.
type PlayerState string

const (
	PlayerStateIdle    PlayerState = "idle"
	PlayerStatePlaying PlayerState = "playing"
	PlayerStatePaused  PlayerState = "paused"
	PlayerStateOff     PlayerState = "off"
)

// RepeatMode controls queue wrap-around behaviour.
type RepeatMode string

const (
	RepeatModeOff RepeatMode = "off"
	RepeatModeOne RepeatMode = "one"
	RepeatModeAll RepeatMode = "all"
)

// QueueOption tells play_media how to merge new items into the queue.
type QueueOption string

const (
	QueueOptionPlay    QueueOption = "play"
	QueueOptionReplace QueueOption = "replace"
	QueueOptionNext    QueueOption = "next"
	QueueOptionAdd     QueueOption = "add"
)

// PlayerFeature is an optional capability of a player driver.
type PlayerFeature string

const (
	PlayerFeaturePower     PlayerFeature = "power"
	PlayerFeatureVolumeSet PlayerFeature = "volume_set"
	PlayerFeatureMute      PlayerFeature = "mute"
	PlayerFeatureSeek      PlayerFeature = "seek"
	PlayerFeatureGapless   PlayerFeature = "gapless"
	PlayerFeatureCrossfade PlayerFeature = "crossfade"
)

// ImageType classifies an image attached to item metadata.
type ImageType string

const (
	ImageTypeThumb  ImageType = "thumb"
	ImageTypeFanart ImageType = "fanart"
	ImageTypeLogo   ImageType = "logo"
)

// ConfigEntryType is the value type of a provider config entry.
type ConfigEntryType string

const (
	ConfigEntryTypeBool         ConfigEntryType = "boolean"
	ConfigEntryTypeString       ConfigEntryType = "string"
	ConfigEntryTypeSecureString ConfigEntryType = "secure_string"
	ConfigEntryTypeInt          ConfigEntryType = "integer"
	ConfigEntryTypeFloat        ConfigEntryType = "float"
	ConfigEntryTypeLabel        ConfigEntryType = "label"
	ConfigEntryTypeAction       ConfigEntryType = "action"
	ConfigEntryTypePlayerID     ConfigEntryType = "player_id"
)

// ProviderDatabase is the pseudo provider id for canonical database items.
const ProviderDatabase = "database"
