package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marcelveldt/music-assistant/internal/media"
)

// Playlists are plain .m3u files in the music directory. Lines that parse
// as item URIs are kept verbatim; other lines are treated as file paths
// relative to the music dir.

func (p *Provider) playlistPath(itemID string) string {
	return filepath.Join(p.musicDir, filepath.Clean("/"+itemID))
}

func (p *Provider) playlistFromPath(path string) (*media.Playlist, error) {
	rel, err := filepath.Rel(p.musicDir, path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", media.ErrMediaNotFound, rel)
	}
	playlist := &media.Playlist{
		MediaItem: media.MediaItem{
			ItemID:    rel,
			Provider:  p.instanceID,
			Name:      strings.TrimSuffix(filepath.Base(path), playlistExtension),
			MediaType: media.MediaTypePlaylist,
		},
		IsEditable: true,
	}
	playlist.EnsureDerived()
	playlist.Metadata.Checksum = fmt.Sprintf("%d", info.ModTime().Unix())
	playlist.AddProviderMapping(media.ProviderMapping{
		ItemID:           rel,
		ProviderDomain:   Domain,
		ProviderInstance: p.instanceID,
		Available:        true,
	})
	return playlist, nil
}

// GetPlaylist returns one m3u playlist by its relative path id.
func (p *Provider) GetPlaylist(ctx context.Context, itemID string) (*media.Playlist, error) {
	if !strings.HasSuffix(itemID, playlistExtension) {
		return nil, fmt.Errorf("%w: %s", media.ErrMediaNotFound, itemID)
	}
	return p.playlistFromPath(p.playlistPath(itemID))
}

// LibraryPlaylists yields every m3u file in the music dir.
func (p *Provider) LibraryPlaylists(ctx context.Context, yield func(*media.Playlist) error) error {
	var paths []string
	err := filepath.WalkDir(p.musicDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), playlistExtension) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan playlists: %w", err)
	}
	sort.Strings(paths)
	for _, path := range paths {
		playlist, err := p.playlistFromPath(path)
		if err != nil {
			continue
		}
		if err := yield(playlist); err != nil {
			return err
		}
	}
	return nil
}

// readPlaylistLines returns the non-comment lines of an m3u file.
func (p *Provider) readPlaylistLines(itemID string) ([]string, error) {
	file, err := os.Open(p.playlistPath(itemID))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", media.ErrMediaNotFound, itemID)
	}
	defer file.Close()
	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func (p *Provider) writePlaylistLines(itemID string, lines []string) error {
	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return os.WriteFile(p.playlistPath(itemID), []byte(sb.String()), 0o644)
}

// PlaylistTracks resolves the m3u entries to tracks. Local paths resolve
// against the scan index; foreign URIs become name-only placeholders that
// the library layer resolves to their own provider.
func (p *Provider) PlaylistTracks(ctx context.Context, playlistID string) ([]*media.Track, error) {
	lines, err := p.readPlaylistLines(playlistID)
	if err != nil {
		return nil, err
	}
	if err := p.ensureScanned(ctx); err != nil {
		return nil, err
	}
	var out []*media.Track
	for pos, line := range lines {
		var track *media.Track
		if mt, provID, itemID, uriErr := media.ParseURI(line); uriErr == nil && mt == media.MediaTypeTrack {
			if provID == p.instanceID || provID == Domain {
				track, _ = p.GetTrack(ctx, itemID)
			} else {
				track = &media.Track{MediaItem: media.MediaItem{
					ItemID:    itemID,
					Provider:  provID,
					Name:      line,
					MediaType: media.MediaTypeTrack,
					URI:       line,
				}}
			}
		} else {
			track, _ = p.GetTrack(ctx, filepath.Clean(line))
		}
		if track == nil {
			continue
		}
		track.Position = pos + 1
		out = append(out, track)
	}
	return out, nil
}

// CreatePlaylist writes an empty m3u file named after the playlist.
func (p *Provider) CreatePlaylist(ctx context.Context, name string) (*media.Playlist, error) {
	itemID := name + playlistExtension
	path := p.playlistPath(itemID)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: playlist %s already exists", media.ErrInvalidData, name)
	}
	if err := p.writePlaylistLines(itemID, nil); err != nil {
		return nil, err
	}
	return p.playlistFromPath(path)
}

// AddPlaylistTracks appends the URIs verbatim to the m3u file.
func (p *Provider) AddPlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	lines, err := p.readPlaylistLines(playlistID)
	if err != nil {
		return err
	}
	lines = append(lines, uris...)
	return p.writePlaylistLines(playlistID, lines)
}

// RemovePlaylistTracks deletes the 1-based positions from the m3u file.
func (p *Provider) RemovePlaylistTracks(ctx context.Context, playlistID string, positions []int) error {
	lines, err := p.readPlaylistLines(playlistID)
	if err != nil {
		return err
	}
	drop := make(map[int]struct{}, len(positions))
	for _, pos := range positions {
		drop[pos] = struct{}{}
	}
	kept := lines[:0]
	for i, line := range lines {
		if _, ok := drop[i+1]; ok {
			continue
		}
		kept = append(kept, line)
	}
	return p.writePlaylistLines(playlistID, kept)
}
