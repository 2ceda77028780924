package musicmodule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelveldt/music-assistant/internal/media"
)

// albumProvider serves scripted albums and their track listings.
type albumProvider struct {
	fakeProvider
	albums      map[string]*media.Album
	albumTracks map[string][]*media.Track
}

func (p *albumProvider) GetAlbum(ctx context.Context, itemID string) (*media.Album, error) {
	if album, ok := p.albums[itemID]; ok {
		return album, nil
	}
	return nil, media.ErrMediaNotFound
}

func (p *albumProvider) AlbumTracks(ctx context.Context, albumID string) ([]*media.Track, error) {
	if tracks, ok := p.albumTracks[albumID]; ok {
		return tracks, nil
	}
	return nil, media.ErrMediaNotFound
}

func fakeAlbum(name, artist, instance, itemID string) *media.Album {
	return &media.Album{
		MediaItem: media.MediaItem{
			ItemID:    itemID,
			Provider:  instance,
			Name:      name,
			MediaType: media.MediaTypeAlbum,
			ProviderMappings: []media.ProviderMapping{{
				ItemID: itemID, ProviderDomain: "fake", ProviderInstance: instance, Available: true,
			}},
		},
		Artists: []media.ItemMapping{{MediaType: media.MediaTypeArtist, Name: artist}},
	}
}

func positioned(track *media.Track, disc, number int) *media.Track {
	track.DiscNumber = disc
	track.TrackNumber = number
	return track
}

func TestAlbumTracksSortedWithLibrarySubstitution(t *testing.T) {
	m := newTestModule(t)
	ctx := context.Background()

	prov := &albumProvider{
		fakeProvider: fakeProvider{instance: "al--1"},
		albums: map[string]*media.Album{
			"sorted1": fakeAlbum("Sorted Album", "Sorted Band", "al--1", "sorted1"),
		},
		albumTracks: map[string][]*media.Track{"sorted1": {
			positioned(fakeTrack("Closer Out", "Sorted Band", "al--1", "so-d2t1"), 2, 1),
			positioned(fakeTrack("Middle Cut", "Sorted Band", "al--1", "so-d1t2"), 1, 2),
			positioned(fakeTrack("Opener", "Sorted Band", "al--1", "so-d1t1"), 1, 1),
		}},
	}
	registerFake(t, m, prov)

	// one listing entry already lives in the library
	library, err := m.Tracks.Add(ctx, fakeTrack("Opener", "Sorted Band", "al--1", "so-d1t1"), false)
	require.NoError(t, err)

	tracks, err := m.Albums.Tracks(ctx, "sorted1", "al--1")
	require.NoError(t, err)
	require.Len(t, tracks, 3)

	// disc/track order, with the known entry swapped for its library row
	assert.Equal(t, "Opener", tracks[0].Name)
	assert.Equal(t, library.ItemID, tracks[0].ItemID)
	assert.Equal(t, media.ProviderDatabase, tracks[0].Provider)
	assert.Equal(t, 1, tracks[0].DiscNumber)
	assert.Equal(t, 1, tracks[0].TrackNumber)
	assert.Equal(t, "Middle Cut", tracks[1].Name)
	assert.Equal(t, "Closer Out", tracks[2].Name)
}

func TestAlbumTracksFallbackSortsLibraryAppearances(t *testing.T) {
	m := newTestModule(t)
	ctx := context.Background()

	album, err := m.Albums.Add(ctx, fakeAlbum("Offline Album", "Offline Band", "ghost--1", "off1"), false)
	require.NoError(t, err)

	for _, entry := range []struct {
		name string
		num  int
	}{
		{"Offline Three", 3},
		{"Offline One", 1},
		{"Offline Two", 2},
	} {
		track := fakeTrack(entry.name, "Offline Band", "ghost--1", "off-"+entry.name)
		track.AddAlbumMapping(media.TrackAlbumMapping{
			ItemMapping: media.MappingFromItem(album),
			DiscNumber:  1,
			TrackNumber: entry.num,
		})
		_, err := m.Tracks.Add(ctx, track, false)
		require.NoError(t, err)
	}

	// no provider is registered for the mapping: the library serves,
	// ordered by the appearance positions
	tracks, err := m.Albums.Tracks(ctx, album.ItemID, media.ProviderDatabase)
	require.NoError(t, err)
	require.Len(t, tracks, 3)
	assert.Equal(t, "Offline One", tracks[0].Name)
	assert.Equal(t, "Offline Two", tracks[1].Name)
	assert.Equal(t, "Offline Three", tracks[2].Name)
	assert.Equal(t, 2, tracks[1].TrackNumber)
}
