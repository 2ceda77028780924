// Package providers defines the capability-scoped interface every music
// source implements, the registry that tracks configured instances, and
// shared helpers (retry, throttling).
package providers

import (
	"context"

	"github.com/marcelveldt/music-assistant/internal/media"
)

// Feature is one declared capability of a provider instance. Callers check
// the capability set before invoking the matching operation; a missing
// capability silently skips the provider.
type Feature string

const (
	FeatureLibraryArtists    Feature = "library_artists"
	FeatureLibraryAlbums     Feature = "library_albums"
	FeatureLibraryTracks     Feature = "library_tracks"
	FeatureLibraryPlaylists  Feature = "library_playlists"
	FeatureLibraryRadios     Feature = "library_radios"
	FeatureLibraryAudiobooks Feature = "library_audiobooks"
	FeatureLibraryPodcasts   Feature = "library_podcasts"

	FeatureLibraryArtistsEdit    Feature = "library_artists_edit"
	FeatureLibraryAlbumsEdit     Feature = "library_albums_edit"
	FeatureLibraryTracksEdit     Feature = "library_tracks_edit"
	FeatureLibraryPlaylistsEdit  Feature = "library_playlists_edit"
	FeatureLibraryRadiosEdit     Feature = "library_radios_edit"
	FeatureLibraryAudiobooksEdit Feature = "library_audiobooks_edit"
	FeatureLibraryPodcastsEdit   Feature = "library_podcasts_edit"

	FeatureSearch             Feature = "search"
	FeatureBrowse             Feature = "browse"
	FeatureArtistAlbums       Feature = "artist_albums"
	FeatureArtistTopTracks    Feature = "artist_toptracks"
	FeatureArtistMetadata     Feature = "artist_metadata"
	FeatureAlbumMetadata      Feature = "album_metadata"
	FeatureTrackMetadata      Feature = "track_metadata"
	FeatureSimilarTracks      Feature = "similar_tracks"
	FeaturePlaylistTracksEdit Feature = "playlist_tracks_edit"
	FeaturePlaylistCreate     Feature = "playlist_create"
)

// libraryFeatures maps a media type to its library listing capability.
var libraryFeatures = map[media.MediaType]Feature{
	media.MediaTypeArtist:    FeatureLibraryArtists,
	media.MediaTypeAlbum:     FeatureLibraryAlbums,
	media.MediaTypeTrack:     FeatureLibraryTracks,
	media.MediaTypePlaylist:  FeatureLibraryPlaylists,
	media.MediaTypeRadio:     FeatureLibraryRadios,
	media.MediaTypeAudiobook: FeatureLibraryAudiobooks,
	media.MediaTypePodcast:   FeatureLibraryPodcasts,
}

// libraryEditFeatures maps a media type to its library edit capability.
var libraryEditFeatures = map[media.MediaType]Feature{
	media.MediaTypeArtist:    FeatureLibraryArtistsEdit,
	media.MediaTypeAlbum:     FeatureLibraryAlbumsEdit,
	media.MediaTypeTrack:     FeatureLibraryTracksEdit,
	media.MediaTypePlaylist:  FeatureLibraryPlaylistsEdit,
	media.MediaTypeRadio:     FeatureLibraryRadiosEdit,
	media.MediaTypeAudiobook: FeatureLibraryAudiobooksEdit,
	media.MediaTypePodcast:   FeatureLibraryPodcastsEdit,
}

// LibraryFeature returns the library listing capability for a media type.
func LibraryFeature(mediaType media.MediaType) (Feature, bool) {
	f, ok := libraryFeatures[mediaType]
	return f, ok
}

// LibraryEditFeature returns the library edit capability for a media type.
func LibraryEditFeature(mediaType media.MediaType) (Feature, bool) {
	f, ok := libraryEditFeatures[mediaType]
	return f, ok
}

// MusicProvider is the full operation set a source may implement. Concrete
// providers embed Unsupported to inherit "not supported" defaults and
// override only what their capability set declares. All blocking
// operations take a context and honor cancellation.
type MusicProvider interface {
	// identity
	InstanceID() string
	Domain() string
	Name() string
	SupportedFeatures() []Feature
	IsAvailable() bool

	// lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// single item lookups
	GetArtist(ctx context.Context, itemID string) (*media.Artist, error)
	GetAlbum(ctx context.Context, itemID string) (*media.Album, error)
	GetTrack(ctx context.Context, itemID string) (*media.Track, error)
	GetPlaylist(ctx context.Context, itemID string) (*media.Playlist, error)
	GetRadio(ctx context.Context, itemID string) (*media.Radio, error)
	GetAudiobook(ctx context.Context, itemID string) (*media.Audiobook, error)
	GetPodcast(ctx context.Context, itemID string) (*media.Podcast, error)
	GetEpisode(ctx context.Context, itemID string) (*media.Episode, error)

	// library listings: lazy streaming via the yield callback, finite,
	// not restartable; a yield error or ctx cancellation stops the walk.
	LibraryArtists(ctx context.Context, yield func(*media.Artist) error) error
	LibraryAlbums(ctx context.Context, yield func(*media.Album) error) error
	LibraryTracks(ctx context.Context, yield func(*media.Track) error) error
	LibraryPlaylists(ctx context.Context, yield func(*media.Playlist) error) error
	LibraryRadios(ctx context.Context, yield func(*media.Radio) error) error
	LibraryAudiobooks(ctx context.Context, yield func(*media.Audiobook) error) error
	LibraryPodcasts(ctx context.Context, yield func(*media.Podcast) error) error

	// child listings
	AlbumTracks(ctx context.Context, albumID string) ([]*media.Track, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]*media.Track, error)
	PodcastEpisodes(ctx context.Context, podcastID string) ([]*media.Episode, error)
	ArtistAlbums(ctx context.Context, artistID string) ([]*media.Album, error)
	ArtistTopTracks(ctx context.Context, artistID string) ([]*media.Track, error)
	SimilarTracks(ctx context.Context, trackID string, limit int) ([]*media.Track, error)

	Search(ctx context.Context, query string, mediaTypes []media.MediaType, limit int) (*media.SearchResults, error)
	Browse(ctx context.Context, path string) (*media.BrowseFolder, error)

	// library edits
	LibraryAdd(ctx context.Context, itemID string, mediaType media.MediaType) (bool, error)
	LibraryRemove(ctx context.Context, itemID string, mediaType media.MediaType) (bool, error)

	// playlist edits
	CreatePlaylist(ctx context.Context, name string) (*media.Playlist, error)
	AddPlaylistTracks(ctx context.Context, playlistID string, uris []string) error
	RemovePlaylistTracks(ctx context.Context, playlistID string, positions []int) error

	// playback
	StreamDetails(ctx context.Context, itemID string, mediaType media.MediaType) (*media.StreamDetails, error)
	ResolveImage(ctx context.Context, path string) ([]byte, error)
	// OnPlayed reports playback progress back to the source; optional.
	OnPlayed(ctx context.Context, mediaType media.MediaType, itemID string, fullyPlayed bool, positionSeconds int) error

	// configuration
	ConfigEntries() []media.ConfigEntry
}

// HasFeature reports whether a provider declares the capability.
func HasFeature(prov MusicProvider, feature Feature) bool {
	for _, f := range prov.SupportedFeatures() {
		if f == feature {
			return true
		}
	}
	return false
}
