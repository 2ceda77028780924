package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelveldt/music-assistant/internal/media"
)

// writeAudioFile drops a dummy audio file; tag parsing falls back to the
// file name for untagged content, which is all these tests need.
func writeAudioFile(t *testing.T, dir, rel string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0o644))
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	dir := t.TempDir()
	return New("filesystem--test", dir, hclog.NewNullLogger())
}

func TestScanIndexesAudioFiles(t *testing.T) {
	p := newTestProvider(t)
	writeAudioFile(t, p.musicDir, "Artist/Album/01 Song One.mp3")
	writeAudioFile(t, p.musicDir, "Artist/Album/02 Song Two.flac")
	require.NoError(t, os.WriteFile(filepath.Join(p.musicDir, "cover.jpg"), []byte("img"), 0o644))

	ctx := context.Background()
	var tracks []*media.Track
	require.NoError(t, p.LibraryTracks(ctx, func(track *media.Track) error {
		tracks = append(tracks, track)
		return nil
	}))
	require.Len(t, tracks, 2)
	// item ids are paths relative to the music dir
	assert.Equal(t, "Artist/Album/01 Song One.mp3", tracks[0].ItemID)
	assert.Equal(t, "01 Song One", tracks[0].Name)
	require.Len(t, tracks[0].ProviderMappings, 1)
	assert.Equal(t, Domain, tracks[0].ProviderMappings[0].ProviderDomain)
	assert.Equal(t, media.ContentTypeMP3, tracks[0].ProviderMappings[0].AudioFormat.ContentType)
}

func TestGetTrack(t *testing.T) {
	p := newTestProvider(t)
	writeAudioFile(t, p.musicDir, "song.flac")
	ctx := context.Background()

	track, err := p.GetTrack(ctx, "song.flac")
	require.NoError(t, err)
	assert.Equal(t, "song", track.Name)

	_, err = p.GetTrack(ctx, "missing.flac")
	assert.ErrorIs(t, err, media.ErrMediaNotFound)
}

func TestSearchMatchesLoosely(t *testing.T) {
	p := newTestProvider(t)
	writeAudioFile(t, p.musicDir, "Hôtel California.mp3")
	writeAudioFile(t, p.musicDir, "Take It Easy.mp3")
	ctx := context.Background()

	results, err := p.Search(ctx, "hotel california", []media.MediaType{media.MediaTypeTrack}, 10)
	require.NoError(t, err)
	require.Len(t, results.Tracks, 1)
	assert.Equal(t, "Hôtel California", results.Tracks[0].Name)
}

func TestBrowseListsOneLevel(t *testing.T) {
	p := newTestProvider(t)
	writeAudioFile(t, p.musicDir, "Artist/Album/song.mp3")
	writeAudioFile(t, p.musicDir, "loose.mp3")
	ctx := context.Background()

	folder, err := p.Browse(ctx, "")
	require.NoError(t, err)
	require.Len(t, folder.Items, 2)
	assert.Equal(t, media.MediaTypeFolder, folder.Items[0].MediaType)
	assert.Equal(t, "Artist", folder.Items[0].Name)
	assert.Equal(t, media.MediaTypeTrack, folder.Items[1].MediaType)

	sub, err := p.Browse(ctx, "Artist/Album")
	require.NoError(t, err)
	require.Len(t, sub.Items, 1)
	assert.Equal(t, "Artist/Album/song.mp3", sub.Items[0].ItemID)
}

func TestStreamDetailsServesLocalFile(t *testing.T) {
	p := newTestProvider(t)
	writeAudioFile(t, p.musicDir, "play me.flac")

	details, err := p.StreamDetails(context.Background(), "play me.flac", media.MediaTypeTrack)
	require.NoError(t, err)
	assert.Equal(t, media.StreamTypeFile, details.StreamType)
	assert.Equal(t, filepath.Join(p.musicDir, "play me.flac"), details.Path)
	assert.Equal(t, media.ContentTypeFLAC, details.Format.ContentType)
	assert.EqualValues(t, 16, details.Size)

	// path escape attempts stay inside the music dir
	_, err = p.StreamDetails(context.Background(), "../../etc/passwd", media.MediaTypeTrack)
	assert.Error(t, err)
}

func TestPlaylistLifecycle(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	playlist, err := p.CreatePlaylist(ctx, "roadtrip")
	require.NoError(t, err)
	assert.Equal(t, "roadtrip.m3u", playlist.ItemID)
	assert.Equal(t, "roadtrip", playlist.Name)
	assert.True(t, playlist.IsEditable)
	assert.NotEmpty(t, playlist.Checksum())

	// creating the same playlist twice is an error
	_, err = p.CreatePlaylist(ctx, "roadtrip")
	assert.ErrorIs(t, err, media.ErrInvalidData)

	writeAudioFile(t, p.musicDir, "local.mp3")
	require.NoError(t, p.AddPlaylistTracks(ctx, "roadtrip.m3u", []string{
		"local.mp3",
		"track://spotify--1/remote123",
	}))

	tracks, err := p.PlaylistTracks(ctx, "roadtrip.m3u")
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "local", tracks[0].Name)
	assert.Equal(t, 1, tracks[0].Position)
	// foreign uris stay as placeholders pointing at their own provider
	assert.Equal(t, "spotify--1", tracks[1].Provider)
	assert.Equal(t, "remote123", tracks[1].ItemID)
	assert.Equal(t, 2, tracks[1].Position)

	require.NoError(t, p.RemovePlaylistTracks(ctx, "roadtrip.m3u", []int{1}))
	tracks, err = p.PlaylistTracks(ctx, "roadtrip.m3u")
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "remote123", tracks[0].ItemID)
}

func TestLibraryPlaylists(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	_, err := p.CreatePlaylist(ctx, "a")
	require.NoError(t, err)
	_, err = p.CreatePlaylist(ctx, "b")
	require.NoError(t, err)

	var names []string
	require.NoError(t, p.LibraryPlaylists(ctx, func(playlist *media.Playlist) error {
		names = append(names, playlist.Name)
		return nil
	}))
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestWatcherInvalidatesScan(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	require.NoError(t, p.Start(ctx))
	defer p.Stop(ctx)
	assert.True(t, p.IsAvailable())

	require.NoError(t, p.ensureScanned(ctx))
	_, err := p.GetTrack(ctx, "late.mp3")
	assert.ErrorIs(t, err, media.ErrMediaNotFound)

	writeAudioFile(t, p.musicDir, "late.mp3")
	// the watcher marks the index dirty; poll until the rescan sees the file
	require.Eventually(t, func() bool {
		_, err := p.GetTrack(ctx, "late.mp3")
		return err == nil
	}, 2*time.Second, 50*time.Millisecond)
}
