package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareString(t *testing.T) {
	assert.Equal(t, "motorhead", CompareString("Motörhead"))
	assert.Equal(t, "acdc", CompareString("AC/DC"))
	assert.Equal(t, "sigurros", CompareString("Sigur Rós"))
	assert.Equal(t, "", CompareString("???"))
}

func TestLooseCompareStrings(t *testing.T) {
	assert.True(t, LooseCompareStrings("Hotel California", "hotel california"))
	assert.True(t, LooseCompareStrings("Hotel California", "Hotel California (2013 Remaster)"))
	assert.True(t, LooseCompareStrings("Motörhead", "Motorhead"))
	assert.False(t, LooseCompareStrings("Hotel California", "Life in the Fast Lane"))
}

func TestStrictCompareStrings(t *testing.T) {
	assert.True(t, StrictCompareStrings("  The Beatles ", "the beatles"))
	assert.True(t, StrictCompareStrings("Sigur Rós", "Sigur Ros"))
	assert.False(t, StrictCompareStrings("Hotel California", "Hotel California (2013 Remaster)"))
}

func TestCreateSortName(t *testing.T) {
	assert.Equal(t, "beatles", CreateSortName("The Beatles"))
	assert.Equal(t, "white stripes", CreateSortName("the White Stripes"))
	assert.Equal(t, "tribe called quest", CreateSortName("A Tribe Called Quest"))
	// idempotent
	assert.Equal(t, "beatles", CreateSortName(CreateSortName("The Beatles")))
	// articles only strip as a full word prefix
	assert.Equal(t, "theory of everything", CreateSortName("Theory of Everything"))
}

func TestURIRoundTrip(t *testing.T) {
	uri := CreateURI(MediaTypeTrack, "spotify", "abc123")
	assert.Equal(t, "track://spotify/abc123", uri)

	mediaType, provider, itemID, err := ParseURI(uri)
	require.NoError(t, err)
	assert.Equal(t, MediaTypeTrack, mediaType)
	assert.Equal(t, "spotify", provider)
	assert.Equal(t, "abc123", itemID)

	_, _, _, err = ParseURI("not a uri")
	assert.ErrorIs(t, err, ErrInvalidData)
	_, _, _, err = ParseURI("track://spotify")
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestMappingQuality(t *testing.T) {
	flac := ProviderMapping{AudioFormat: AudioFormat{ContentType: ContentTypeFLAC, SampleRate: 44100, BitDepth: 16}}
	hires := ProviderMapping{AudioFormat: AudioFormat{ContentType: ContentTypeFLAC, SampleRate: 96000, BitDepth: 24}}
	mp3 := ProviderMapping{AudioFormat: AudioFormat{ContentType: ContentTypeMP3, BitRate: 320}}
	aac := ProviderMapping{AudioFormat: AudioFormat{ContentType: ContentTypeAAC, BitRate: 320}}

	assert.Greater(t, hires.Quality(), flac.Quality())
	assert.Greater(t, flac.Quality(), mp3.Quality())
	// codec efficiency bonus
	assert.Equal(t, mp3.Quality()+1, aac.Quality())
}

func TestCompareArtists(t *testing.T) {
	beatles := []ItemMapping{{Name: "The Beatles"}}
	both := []ItemMapping{{Name: "The Beatles"}, {Name: "Tony Sheridan"}}

	assert.True(t, CompareArtists(beatles, both, true))
	assert.True(t, CompareArtists(beatles, both, false))
	// all-match requires every left artist present on the right
	assert.False(t, CompareArtists(both, beatles, false))
	assert.True(t, CompareArtists(both, beatles, true))
	assert.False(t, CompareArtists(nil, beatles, true))
}

func TestCompareTrack(t *testing.T) {
	left := &Track{
		MediaItem: MediaItem{Name: "Come Together"},
		Artists:   []ItemMapping{{Name: "The Beatles"}},
		Duration:  259,
	}
	right := &Track{
		MediaItem: MediaItem{Name: "Come Together (Remastered)"},
		Artists:   []ItemMapping{{Name: "Beatles, The"}},
		Duration:  260,
	}
	// loose name + artists + duration within tolerance
	assert.False(t, CompareTrack(left, right)) // artist names do not loose-match reversed

	right.Artists = []ItemMapping{{Name: "The Beatles"}}
	assert.True(t, CompareTrack(left, right))

	right.Duration = 300
	assert.False(t, CompareTrack(left, right))

	// matching album context overrides the duration drift
	left.Album = &ItemMapping{Name: "Abbey Road"}
	right.Album = &ItemMapping{Name: "Abbey Road (2019 Mix)"}
	assert.True(t, CompareTrack(left, right))

	// isrc equality short-circuits everything else
	a := &Track{MediaItem: MediaItem{Name: "X"}, ISRC: "GBAYE0601696"}
	b := &Track{MediaItem: MediaItem{Name: "completely different"}, ISRC: "USXXX;GBAYE0601696"}
	assert.True(t, CompareTrack(a, b))

	// conflicting musicbrainz ids are a definite mismatch
	c := &Track{MediaItem: MediaItem{Name: "Come Together"}, MusicBrainzID: "mbid-1"}
	d := &Track{MediaItem: MediaItem{Name: "Come Together"}, MusicBrainzID: "mbid-2"}
	assert.False(t, CompareTrack(c, d))
}

func TestCompareAlbum(t *testing.T) {
	left := &Album{
		MediaItem: MediaItem{Name: "Abbey Road"},
		Artists:   []ItemMapping{{Name: "The Beatles"}},
	}
	right := &Album{
		MediaItem: MediaItem{Name: "Abbey Road"},
		Artists:   []ItemMapping{{Name: "The Beatles"}},
	}
	assert.True(t, CompareAlbum(left, right))

	right.Version = "Deluxe Edition"
	assert.False(t, CompareAlbum(left, right))

	// upc equality decides regardless of version drift
	left.UPC = "094638246817"
	right.UPC = "094638246817"
	assert.True(t, CompareAlbum(left, right))
}
