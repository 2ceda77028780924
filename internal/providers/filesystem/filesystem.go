// Package filesystem implements the local-directory music provider. Audio
// tags are read with dhowden/tag; directory changes invalidate the scan
// index via fsnotify.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dhowden/tag"
	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/marcelveldt/music-assistant/internal/media"
	"github.com/marcelveldt/music-assistant/internal/providers"
)

// Domain is the provider family identifier. The stream coordinator and the
// search cache special-case providers whose domain carries this prefix.
const Domain = "filesystem"

var audioExtensions = map[string]struct{}{
	".mp3": {}, ".flac": {}, ".ogg": {}, ".oga": {}, ".m4a": {},
	".aac": {}, ".wav": {}, ".aiff": {}, ".aif": {}, ".wma": {}, ".dsf": {},
}

const playlistExtension = ".m3u"

// Provider serves a local music directory.
type Provider struct {
	providers.Unsupported

	instanceID string
	musicDir   string
	logger     hclog.Logger

	mu        sync.Mutex
	tracks    map[string]*media.Track // keyed by item id (relative path)
	scanned   bool
	available bool

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a filesystem provider for the given directory.
func New(instanceID, musicDir string, logger hclog.Logger) *Provider {
	return &Provider{
		instanceID: instanceID,
		musicDir:   musicDir,
		logger:     logger,
		tracks:     make(map[string]*media.Track),
		stopCh:     make(chan struct{}),
	}
}

func (p *Provider) InstanceID() string { return p.instanceID }
func (p *Provider) Domain() string     { return Domain }
func (p *Provider) Name() string       { return "Filesystem: " + p.musicDir }
func (p *Provider) IsAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// SupportedFeatures declares the capability set of this provider.
func (p *Provider) SupportedFeatures() []providers.Feature {
	return []providers.Feature{
		providers.FeatureLibraryArtists,
		providers.FeatureLibraryAlbums,
		providers.FeatureLibraryTracks,
		providers.FeatureLibraryPlaylists,
		providers.FeatureSearch,
		providers.FeatureBrowse,
		providers.FeaturePlaylistTracksEdit,
		providers.FeaturePlaylistCreate,
	}
}

// ConfigEntries describes the provider configuration surface.
func (p *Provider) ConfigEntries() []media.ConfigEntry {
	return []media.ConfigEntry{
		{Key: "music_dir", Type: media.ConfigEntryTypeString, Label: "Music directory", Required: true, Value: p.musicDir},
	}
}

// Start validates the directory and begins watching for changes.
func (p *Provider) Start(ctx context.Context) error {
	info, err := os.Stat(p.musicDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: music directory %s", media.ErrProviderUnavailable, p.musicDir)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Warn("filesystem watcher unavailable", "error", err)
	} else {
		p.watcher = watcher
		if err := watcher.Add(p.musicDir); err != nil {
			p.logger.Warn("cannot watch music directory", "error", err)
		}
		p.wg.Add(1)
		go p.watchLoop()
	}
	p.mu.Lock()
	p.available = true
	p.mu.Unlock()
	return nil
}

// Stop terminates the watcher.
func (p *Provider) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.available = false
	p.mu.Unlock()
	close(p.stopCh)
	if p.watcher != nil {
		p.watcher.Close()
	}
	p.wg.Wait()
	p.stopCh = make(chan struct{})
	return nil
}

func (p *Provider) watchLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				p.mu.Lock()
				p.scanned = false
				p.mu.Unlock()
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("filesystem watch error", "error", err)
		}
	}
}

// ensureScanned walks the music dir once and builds the in-memory index.
func (p *Provider) ensureScanned(ctx context.Context) error {
	p.mu.Lock()
	if p.scanned {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	tracks := make(map[string]*media.Track)
	err := filepath.WalkDir(p.musicDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := audioExtensions[ext]; !ok {
			return nil
		}
		track, err := p.parseTrack(path)
		if err != nil {
			p.logger.Warn("skipping unreadable audio file", "path", path, "error", err)
			return nil
		}
		tracks[track.ItemID] = track
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan music dir: %w", err)
	}
	p.mu.Lock()
	p.tracks = tracks
	p.scanned = true
	p.mu.Unlock()
	p.logger.Debug("music directory scanned", "tracks", len(tracks))
	return nil
}

// parseTrack reads the tags of one audio file into a Track.
func (p *Provider) parseTrack(path string) (*media.Track, error) {
	rel, err := filepath.Rel(p.musicDir, path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	track := &media.Track{
		MediaItem: media.MediaItem{
			ItemID:    rel,
			Provider:  p.instanceID,
			MediaType: media.MediaTypeTrack,
		},
	}

	meta, err := tag.ReadFrom(file)
	if err != nil {
		// untagged file: fall back to the file name
		track.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	} else {
		track.Name = meta.Title()
		if track.Name == "" {
			track.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		if artist := meta.Artist(); artist != "" {
			track.Artists = append(track.Artists, p.artistMapping(artist))
		}
		if albumName := meta.Album(); albumName != "" {
			albumArtist := meta.AlbumArtist()
			if albumArtist == "" {
				albumArtist = meta.Artist()
			}
			albumRef := p.albumMapping(albumArtist, albumName)
			trackNum, _ := meta.Track()
			discNum, _ := meta.Disc()
			track.Album = &albumRef
			track.TrackNumber = trackNum
			track.DiscNumber = discNum
			track.Albums = []media.TrackAlbumMapping{{
				ItemMapping: albumRef,
				DiscNumber:  discNum,
				TrackNumber: trackNum,
			}}
		}
		if genre := meta.Genre(); genre != "" {
			track.Metadata.Genres = []string{genre}
		}
	}
	track.EnsureDerived()
	track.AddProviderMapping(media.ProviderMapping{
		ItemID:           rel,
		ProviderDomain:   Domain,
		ProviderInstance: p.instanceID,
		Available:        true,
		AudioFormat: media.AudioFormat{
			ContentType: media.ContentTypeFromExt(ext),
			SampleRate:  44100,
			BitDepth:    16,
			Channels:    2,
		},
	})
	return track, nil
}

func (p *Provider) artistMapping(name string) media.ItemMapping {
	itemID := "artist/" + media.CompareString(name)
	return media.ItemMapping{
		MediaType: media.MediaTypeArtist,
		ItemID:    itemID,
		Provider:  p.instanceID,
		Name:      name,
		SortName:  media.CreateSortName(name),
		URI:       media.CreateURI(media.MediaTypeArtist, p.instanceID, itemID),
	}
}

func (p *Provider) albumMapping(artist, name string) media.ItemMapping {
	itemID := "album/" + media.CompareString(artist) + "/" + media.CompareString(name)
	return media.ItemMapping{
		MediaType: media.MediaTypeAlbum,
		ItemID:    itemID,
		Provider:  p.instanceID,
		Name:      name,
		SortName:  media.CreateSortName(name),
		URI:       media.CreateURI(media.MediaTypeAlbum, p.instanceID, itemID),
	}
}

// GetTrack returns one track by its relative path id.
func (p *Provider) GetTrack(ctx context.Context, itemID string) (*media.Track, error) {
	if err := p.ensureScanned(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if track, ok := p.tracks[itemID]; ok {
		clone := *track
		return &clone, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", media.ErrMediaNotFound, p.instanceID, itemID)
}

// GetArtist synthesizes an artist entity from the scan index.
func (p *Provider) GetArtist(ctx context.Context, itemID string) (*media.Artist, error) {
	if err := p.ensureScanned(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, track := range p.tracks {
		for _, ref := range track.Artists {
			if ref.ItemID == itemID {
				artist := &media.Artist{MediaItem: media.MediaItem{
					ItemID:    itemID,
					Provider:  p.instanceID,
					Name:      ref.Name,
					MediaType: media.MediaTypeArtist,
				}}
				artist.EnsureDerived()
				artist.AddProviderMapping(media.ProviderMapping{
					ItemID:           itemID,
					ProviderDomain:   Domain,
					ProviderInstance: p.instanceID,
					Available:        true,
				})
				return artist, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", media.ErrMediaNotFound, p.instanceID, itemID)
}

// GetAlbum synthesizes an album entity from the scan index.
func (p *Provider) GetAlbum(ctx context.Context, itemID string) (*media.Album, error) {
	if err := p.ensureScanned(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, track := range p.tracks {
		if track.Album == nil || track.Album.ItemID != itemID {
			continue
		}
		album := &media.Album{
			MediaItem: media.MediaItem{
				ItemID:    itemID,
				Provider:  p.instanceID,
				Name:      track.Album.Name,
				MediaType: media.MediaTypeAlbum,
			},
			Artists:   track.Artists,
			AlbumType: media.AlbumTypeAlbum,
		}
		album.EnsureDerived()
		album.AddProviderMapping(media.ProviderMapping{
			ItemID:           itemID,
			ProviderDomain:   Domain,
			ProviderInstance: p.instanceID,
			Available:        true,
		})
		return album, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", media.ErrMediaNotFound, p.instanceID, itemID)
}

// LibraryTracks yields every audio file in the music dir.
func (p *Provider) LibraryTracks(ctx context.Context, yield func(*media.Track) error) error {
	if err := p.ensureScanned(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	tracks := make([]*media.Track, 0, len(p.tracks))
	for _, track := range p.tracks {
		tracks = append(tracks, track)
	}
	p.mu.Unlock()
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].ItemID < tracks[j].ItemID })
	for _, track := range tracks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		clone := *track
		if err := yield(&clone); err != nil {
			return err
		}
	}
	return nil
}

// LibraryArtists yields the unique artists found in the scan index.
func (p *Provider) LibraryArtists(ctx context.Context, yield func(*media.Artist) error) error {
	if err := p.ensureScanned(ctx); err != nil {
		return err
	}
	seen := make(map[string]struct{})
	p.mu.Lock()
	refs := make([]media.ItemMapping, 0)
	for _, track := range p.tracks {
		for _, ref := range track.Artists {
			if _, ok := seen[ref.ItemID]; ok {
				continue
			}
			seen[ref.ItemID] = struct{}{}
			refs = append(refs, ref)
		}
	}
	p.mu.Unlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].SortName < refs[j].SortName })
	for _, ref := range refs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		artist, err := p.GetArtist(ctx, ref.ItemID)
		if err != nil {
			continue
		}
		if err := yield(artist); err != nil {
			return err
		}
	}
	return nil
}

// LibraryAlbums yields the unique albums found in the scan index.
func (p *Provider) LibraryAlbums(ctx context.Context, yield func(*media.Album) error) error {
	if err := p.ensureScanned(ctx); err != nil {
		return err
	}
	seen := make(map[string]struct{})
	p.mu.Lock()
	ids := make([]string, 0)
	for _, track := range p.tracks {
		if track.Album == nil {
			continue
		}
		if _, ok := seen[track.Album.ItemID]; ok {
			continue
		}
		seen[track.Album.ItemID] = struct{}{}
		ids = append(ids, track.Album.ItemID)
	}
	p.mu.Unlock()
	sort.Strings(ids)
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		album, err := p.GetAlbum(ctx, id)
		if err != nil {
			continue
		}
		if err := yield(album); err != nil {
			return err
		}
	}
	return nil
}

// AlbumTracks returns the tracks of one album in disc/track order.
func (p *Provider) AlbumTracks(ctx context.Context, albumID string) ([]*media.Track, error) {
	if err := p.ensureScanned(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	var out []*media.Track
	for _, track := range p.tracks {
		if track.Album != nil && track.Album.ItemID == albumID {
			clone := *track
			out = append(out, &clone)
		}
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].DiscNumber != out[j].DiscNumber {
			return out[i].DiscNumber < out[j].DiscNumber
		}
		return out[i].TrackNumber < out[j].TrackNumber
	})
	return out, nil
}

// Search matches the query loosely against track, artist and album names.
func (p *Provider) Search(ctx context.Context, query string, mediaTypes []media.MediaType, limit int) (*media.SearchResults, error) {
	if err := p.ensureScanned(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 25
	}
	wantType := func(mt media.MediaType) bool {
		for _, t := range mediaTypes {
			if t == mt {
				return true
			}
		}
		return len(mediaTypes) == 0
	}
	needle := media.CompareString(query)
	results := &media.SearchResults{}
	p.mu.Lock()
	tracks := make([]*media.Track, 0, len(p.tracks))
	for _, track := range p.tracks {
		tracks = append(tracks, track)
	}
	p.mu.Unlock()

	seenArtists := make(map[string]struct{})
	seenAlbums := make(map[string]struct{})
	for _, track := range tracks {
		haystack := media.CompareString(track.Name)
		if wantType(media.MediaTypeTrack) && len(results.Tracks) < limit &&
			strings.Contains(haystack, needle) {
			clone := *track
			results.Tracks = append(results.Tracks, &clone)
		}
		if wantType(media.MediaTypeArtist) && len(results.Artists) < limit {
			for _, ref := range track.Artists {
				if _, ok := seenArtists[ref.ItemID]; ok {
					continue
				}
				if strings.Contains(media.CompareString(ref.Name), needle) {
					seenArtists[ref.ItemID] = struct{}{}
					if artist, err := p.GetArtist(ctx, ref.ItemID); err == nil {
						results.Artists = append(results.Artists, artist)
					}
				}
			}
		}
		if wantType(media.MediaTypeAlbum) && len(results.Albums) < limit && track.Album != nil {
			if _, ok := seenAlbums[track.Album.ItemID]; !ok &&
				strings.Contains(media.CompareString(track.Album.Name), needle) {
				seenAlbums[track.Album.ItemID] = struct{}{}
				if album, err := p.GetAlbum(ctx, track.Album.ItemID); err == nil {
					results.Albums = append(results.Albums, album)
				}
			}
		}
	}
	return results, nil
}

// Browse lists one directory level as a browse folder.
func (p *Provider) Browse(ctx context.Context, path string) (*media.BrowseFolder, error) {
	dir := filepath.Join(p.musicDir, filepath.Clean("/"+path))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: browse %s", media.ErrMediaNotFound, path)
	}
	folder := &media.BrowseFolder{
		MediaItem: media.MediaItem{
			ItemID:    path,
			Provider:  p.instanceID,
			Name:      filepath.Base(dir),
			MediaType: media.MediaTypeFolder,
		},
		Path: path,
	}
	folder.EnsureDerived()
	for _, entry := range entries {
		rel := filepath.Join(path, entry.Name())
		if entry.IsDir() {
			folder.Items = append(folder.Items, media.ItemMapping{
				MediaType: media.MediaTypeFolder,
				ItemID:    rel,
				Provider:  p.instanceID,
				Name:      entry.Name(),
				SortName:  media.CreateSortName(entry.Name()),
				URI:       media.CreateURI(media.MediaTypeFolder, p.instanceID, rel),
			})
			continue
		}
		if _, ok := audioExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			folder.Items = append(folder.Items, media.ItemMapping{
				MediaType: media.MediaTypeTrack,
				ItemID:    rel,
				Provider:  p.instanceID,
				Name:      entry.Name(),
				SortName:  media.CreateSortName(entry.Name()),
				URI:       media.CreateURI(media.MediaTypeTrack, p.instanceID, rel),
			})
		}
	}
	return folder, nil
}

// StreamDetails returns a FILE stream plan for the given track.
func (p *Provider) StreamDetails(ctx context.Context, itemID string, mediaType media.MediaType) (*media.StreamDetails, error) {
	path := filepath.Join(p.musicDir, filepath.Clean("/"+itemID))
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", media.ErrMediaNotFound, itemID)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return &media.StreamDetails{
		Provider:   p.instanceID,
		ItemID:     itemID,
		MediaType:  mediaType,
		StreamType: media.StreamTypeFile,
		Path:       path,
		Size:       info.Size(),
		Format: media.AudioFormat{
			ContentType: media.ContentTypeFromExt(ext),
			SampleRate:  44100,
			BitDepth:    16,
			Channels:    2,
		},
	}, nil
}

// ResolveImage reads a local image path relative to the music dir.
func (p *Provider) ResolveImage(ctx context.Context, path string) ([]byte, error) {
	full := filepath.Join(p.musicDir, filepath.Clean("/"+path))
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("%w: image %s", media.ErrMediaNotFound, path)
	}
	return data, nil
}
