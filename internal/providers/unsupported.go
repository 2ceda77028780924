package providers

import (
	"context"

	"github.com/marcelveldt/music-assistant/internal/media"
)

// Unsupported supplies "not supported" defaults for every optional
// operation. Concrete providers embed it and override the operations their
// capability set declares.
type Unsupported struct{}

func (Unsupported) GetArtist(context.Context, string) (*media.Artist, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) GetAlbum(context.Context, string) (*media.Album, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) GetTrack(context.Context, string) (*media.Track, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) GetPlaylist(context.Context, string) (*media.Playlist, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) GetRadio(context.Context, string) (*media.Radio, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) GetAudiobook(context.Context, string) (*media.Audiobook, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) GetPodcast(context.Context, string) (*media.Podcast, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) GetEpisode(context.Context, string) (*media.Episode, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) LibraryArtists(context.Context, func(*media.Artist) error) error {
	return media.ErrUnsupported
}

func (Unsupported) LibraryAlbums(context.Context, func(*media.Album) error) error {
	return media.ErrUnsupported
}

func (Unsupported) LibraryTracks(context.Context, func(*media.Track) error) error {
	return media.ErrUnsupported
}

func (Unsupported) LibraryPlaylists(context.Context, func(*media.Playlist) error) error {
	return media.ErrUnsupported
}

func (Unsupported) LibraryRadios(context.Context, func(*media.Radio) error) error {
	return media.ErrUnsupported
}

func (Unsupported) LibraryAudiobooks(context.Context, func(*media.Audiobook) error) error {
	return media.ErrUnsupported
}

func (Unsupported) LibraryPodcasts(context.Context, func(*media.Podcast) error) error {
	return media.ErrUnsupported
}

func (Unsupported) AlbumTracks(context.Context, string) ([]*media.Track, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) PlaylistTracks(context.Context, string) ([]*media.Track, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) PodcastEpisodes(context.Context, string) ([]*media.Episode, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) ArtistAlbums(context.Context, string) ([]*media.Album, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) ArtistTopTracks(context.Context, string) ([]*media.Track, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) SimilarTracks(context.Context, string, int) ([]*media.Track, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) Search(context.Context, string, []media.MediaType, int) (*media.SearchResults, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) Browse(context.Context, string) (*media.BrowseFolder, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) LibraryAdd(context.Context, string, media.MediaType) (bool, error) {
	return false, media.ErrUnsupported
}

func (Unsupported) LibraryRemove(context.Context, string, media.MediaType) (bool, error) {
	return false, media.ErrUnsupported
}

func (Unsupported) CreatePlaylist(context.Context, string) (*media.Playlist, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) AddPlaylistTracks(context.Context, string, []string) error {
	return media.ErrUnsupported
}

func (Unsupported) RemovePlaylistTracks(context.Context, string, []int) error {
	return media.ErrUnsupported
}

func (Unsupported) StreamDetails(context.Context, string, media.MediaType) (*media.StreamDetails, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) ResolveImage(context.Context, string) ([]byte, error) {
	return nil, media.ErrUnsupported
}

func (Unsupported) OnPlayed(context.Context, media.MediaType, string, bool, int) error {
	return nil
}

func (Unsupported) ConfigEntries() []media.ConfigEntry { return nil }
