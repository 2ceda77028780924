package playermodule

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/marcelveldt/music-assistant/internal/events"
	"github.com/marcelveldt/music-assistant/internal/media"
)

// playMediaClamp: inserting more than this many items "next" would bury
// the rest of the queue, so the request is treated as a replace instead.
const playMediaClamp = 10

// restartThreshold is how far into an item "previous" restarts it instead
// of going back.
const restartThreshold = 10.0

// Queue is the playback queue of one player.
type Queue struct {
	queueID string
	module  *Module

	mu            sync.Mutex
	items         []*media.QueueItem
	currentIndex  int
	state         media.PlayerState
	shuffle       bool
	repeat        media.RepeatMode
	crossfade     bool
	expectPlaying bool
}

// QueueState is the serializable snapshot of a queue.
type QueueState struct {
	QueueID      string            `json:"queue_id"`
	State        media.PlayerState `json:"state"`
	CurrentIndex int               `json:"current_index"`
	CurrentItem  *media.QueueItem  `json:"current_item,omitempty"`
	Items        int               `json:"items"`
	Shuffle      bool              `json:"shuffle_enabled"`
	Repeat       media.RepeatMode  `json:"repeat_mode"`
	Crossfade    bool              `json:"crossfade_enabled"`
}

func newQueue(playerID string, module *Module) *Queue {
	return &Queue{
		queueID:      playerID,
		module:       module,
		currentIndex: -1,
		state:        media.PlayerStateIdle,
		repeat:       media.RepeatModeOff,
	}
}

// Snapshot returns the queue state for API consumers.
func (q *Queue) Snapshot() QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	snap := QueueState{
		QueueID:      q.queueID,
		State:        q.state,
		CurrentIndex: q.currentIndex,
		Items:        len(q.items),
		Shuffle:      q.shuffle,
		Repeat:       q.repeat,
		Crossfade:    q.crossfade,
	}
	if q.currentIndex >= 0 && q.currentIndex < len(q.items) {
		item := *q.items[q.currentIndex]
		snap.CurrentItem = &item
	}
	return snap
}

// Items returns a copy of the queued items.
func (q *Queue) Items() []*media.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*media.QueueItem, len(q.items))
	for i, item := range q.items {
		clone := *item
		out[i] = &clone
	}
	return out
}

// PlayMedia expands the uris into queue items and merges them per option.
// A "play" or "next" request carrying more than a handful of items
// degrades into a full replace.
func (q *Queue) PlayMedia(ctx context.Context, uris []string, option media.QueueOption) error {
	if option == "" {
		option = media.QueueOptionPlay
	}
	var incoming []*media.QueueItem
	for _, uri := range uris {
		expanded, err := q.expandURI(ctx, uri)
		if err != nil {
			return err
		}
		incoming = append(incoming, expanded...)
	}
	if len(incoming) == 0 {
		return fmt.Errorf("%w: nothing playable in request", media.ErrQueueEmpty)
	}
	if (option == media.QueueOptionPlay || option == media.QueueOptionNext) && len(incoming) > playMediaClamp {
		option = media.QueueOptionReplace
	}

	q.mu.Lock()
	var startIndex = -1
	switch option {
	case media.QueueOptionReplace:
		q.items = incoming
		startIndex = 0
	case media.QueueOptionPlay, media.QueueOptionNext:
		insertAt := q.currentIndex + 1
		if insertAt > len(q.items) {
			insertAt = len(q.items)
		}
		rest := append([]*media.QueueItem{}, q.items[insertAt:]...)
		q.items = append(q.items[:insertAt], append(incoming, rest...)...)
		if option == media.QueueOptionPlay {
			startIndex = insertAt
		}
	case media.QueueOptionAdd:
		if q.shuffle {
			// scatter into the not-yet-played tail
			for _, item := range incoming {
				lo := q.currentIndex + 1
				if lo > len(q.items) {
					lo = len(q.items)
				}
				at := lo
				if len(q.items) > lo {
					at = lo + rand.Intn(len(q.items)-lo+1)
				}
				rest := append([]*media.QueueItem{}, q.items[at:]...)
				q.items = append(q.items[:at], append([]*media.QueueItem{item}, rest...)...)
			}
		} else {
			q.items = append(q.items, incoming...)
		}
		if q.state == media.PlayerStateIdle && q.currentIndex < 0 {
			startIndex = 0
		}
	default:
		q.mu.Unlock()
		return fmt.Errorf("%w: queue option %s", media.ErrInvalidData, option)
	}
	q.reposition()
	q.mu.Unlock()
	q.publishItems()

	if startIndex >= 0 {
		return q.PlayIndex(ctx, startIndex)
	}
	q.publish()
	return nil
}

// PlayIndex starts playback of the item at index.
func (q *Queue) PlayIndex(ctx context.Context, index int) error {
	q.mu.Lock()
	if index < 0 || index >= len(q.items) {
		q.mu.Unlock()
		return fmt.Errorf("%w: index %d", media.ErrQueueEmpty, index)
	}
	item := q.items[index]
	q.currentIndex = index
	q.expectPlaying = true
	q.mu.Unlock()

	url := q.module.buildStreamURL(q.queueID, item.QueueItemID)
	q.mu.Lock()
	item.StreamURL = url
	item.ElapsedTime = 0
	q.mu.Unlock()

	entry, err := q.module.manager.entry(q.queueID)
	if err != nil {
		return err
	}
	if err := entry.control.PlayURL(ctx, url); err != nil {
		return err
	}
	q.mu.Lock()
	q.state = media.PlayerStatePlaying
	q.mu.Unlock()
	q.publish()
	return nil
}

// Next skips to the following item. An explicit skip advances even under
// repeat-one; that mode only holds the auto-advance in place.
func (q *Queue) Next(ctx context.Context) error {
	return q.advance(ctx, true)
}

func (q *Queue) advance(ctx context.Context, skip bool) error {
	q.mu.Lock()
	next := q.nextIndexLocked(skip)
	q.mu.Unlock()
	if next < 0 {
		return q.Stop(ctx)
	}
	return q.PlayIndex(ctx, next)
}

// Previous restarts the current item when it is well underway, otherwise
// steps back one item.
func (q *Queue) Previous(ctx context.Context) error {
	q.mu.Lock()
	index := q.currentIndex
	var elapsed float64
	if index >= 0 && index < len(q.items) {
		elapsed = q.items[index].ElapsedTime
	}
	if elapsed < restartThreshold && index > 0 {
		index--
	}
	q.mu.Unlock()
	if index < 0 {
		return fmt.Errorf("%w: queue %s", media.ErrQueueEmpty, q.queueID)
	}
	return q.PlayIndex(ctx, index)
}

// Resume restarts playback of the current item.
func (q *Queue) Resume(ctx context.Context) error {
	q.mu.Lock()
	index := q.currentIndex
	empty := len(q.items) == 0
	paused := q.state == media.PlayerStatePaused
	q.mu.Unlock()
	if empty {
		return fmt.Errorf("%w: queue %s", media.ErrQueueEmpty, q.queueID)
	}
	if paused {
		entry, err := q.module.manager.entry(q.queueID)
		if err != nil {
			return err
		}
		if err := entry.control.Resume(ctx); err == nil {
			q.mu.Lock()
			q.state = media.PlayerStatePlaying
			q.mu.Unlock()
			q.publish()
			return nil
		}
	}
	if index < 0 {
		index = 0
	}
	return q.PlayIndex(ctx, index)
}

// Pause pauses playback.
func (q *Queue) Pause(ctx context.Context) error {
	entry, err := q.module.manager.entry(q.queueID)
	if err != nil {
		return err
	}
	if err := entry.control.Pause(ctx); err != nil {
		return err
	}
	q.mu.Lock()
	q.state = media.PlayerStatePaused
	q.expectPlaying = false
	q.mu.Unlock()
	q.publish()
	return nil
}

// Stop stops playback and rewinds the queue pointer.
func (q *Queue) Stop(ctx context.Context) error {
	entry, err := q.module.manager.entry(q.queueID)
	if err != nil {
		return err
	}
	if err := entry.control.Stop(ctx); err != nil {
		return err
	}
	q.mu.Lock()
	q.state = media.PlayerStateIdle
	q.expectPlaying = false
	q.mu.Unlock()
	q.publish()
	return nil
}

// Clear drops all items.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.currentIndex = -1
	q.mu.Unlock()
	q.publishItems()
	q.publish()
}

// SetShuffle toggles shuffle; enabling reshuffles the unplayed tail.
func (q *Queue) SetShuffle(enabled bool) {
	q.mu.Lock()
	q.shuffle = enabled
	if enabled && q.currentIndex+1 < len(q.items) {
		tail := q.items[q.currentIndex+1:]
		rand.Shuffle(len(tail), func(i, j int) { tail[i], tail[j] = tail[j], tail[i] })
		q.reposition()
	}
	q.mu.Unlock()
	q.publish()
}

// SetRepeat sets the repeat mode.
func (q *Queue) SetRepeat(mode media.RepeatMode) {
	q.mu.Lock()
	q.repeat = mode
	q.mu.Unlock()
	q.publish()
}

// SetCrossfade toggles crossfaded transitions.
func (q *Queue) SetCrossfade(enabled bool) {
	q.mu.Lock()
	q.crossfade = enabled
	q.mu.Unlock()
	q.publish()
}

// Crossfade reports whether crossfade is enabled.
func (q *Queue) Crossfade() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.crossfade
}

// CurrentItem returns the item the queue pointer rests on.
func (q *Queue) CurrentItem() *media.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.currentIndex < 0 || q.currentIndex >= len(q.items) {
		return nil
	}
	clone := *q.items[q.currentIndex]
	return &clone
}

// NextItem peeks at the item that will play after the current one.
func (q *Queue) NextItem() *media.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	next := q.nextIndexLocked(true)
	if next < 0 || next >= len(q.items) {
		return nil
	}
	clone := *q.items[next]
	return &clone
}

// SetItemStreamDetails attaches resolved stream details to a queued item.
func (q *Queue) SetItemStreamDetails(queueItemID string, details *media.StreamDetails) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.QueueItemID == queueItemID {
			item.StreamDetails = details
			return
		}
	}
}

// ItemByID finds a queued item by its id.
func (q *Queue) ItemByID(queueItemID string) (*media.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.QueueItemID == queueItemID {
			clone := *item
			return &clone, true
		}
	}
	return nil, false
}

// nextIndexLocked computes the index after current. ignoreRepeatOne makes
// skips and prefetch peeks look past a repeating item.
func (q *Queue) nextIndexLocked(ignoreRepeatOne bool) int {
	if len(q.items) == 0 {
		return -1
	}
	if q.repeat == media.RepeatModeOne && !ignoreRepeatOne {
		return q.currentIndex
	}
	next := q.currentIndex + 1
	if next >= len(q.items) {
		if q.repeat == media.RepeatModeAll {
			return 0
		}
		return -1
	}
	return next
}

// onPlayerUpdate reconciles queue state with a driver report. A powered
// off player freezes the queue; a player going idle mid-track advances.
func (q *Queue) onPlayerUpdate(player *media.Player) {
	q.mu.Lock()
	if player.State == media.PlayerStateOff {
		q.state = media.PlayerStateOff
		q.expectPlaying = false
		q.mu.Unlock()
		q.publish()
		return
	}
	autoAdvance := q.expectPlaying &&
		player.State == media.PlayerStateIdle &&
		q.state == media.PlayerStatePlaying &&
		q.currentIndex >= 0
	if !autoAdvance && q.state == media.PlayerStateOff {
		q.state = player.State
	}
	q.mu.Unlock()

	if autoAdvance {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := q.advance(ctx, false); err != nil {
			q.module.logger.Debug("queue auto advance stopped", "queue_id", q.queueID, "error", err)
		}
	}
}

// onElapsed mirrors the player's elapsed seconds onto the current item.
func (q *Queue) onElapsed(elapsed float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != media.PlayerStatePlaying {
		return
	}
	if q.currentIndex >= 0 && q.currentIndex < len(q.items) {
		q.items[q.currentIndex].ElapsedTime = elapsed
	}
}

func (q *Queue) reposition() {
	for i, item := range q.items {
		item.Position = i
	}
}

func (q *Queue) publish() {
	q.module.bus.Publish(events.QueueUpdated, q.queueID, q.Snapshot())
}

func (q *Queue) publishItems() {
	q.module.bus.Publish(events.QueueItemsUpdated, q.queueID, q.Snapshot())
}

// expandURI resolves one uri into playable queue items. Container types
// expand to their tracks.
func (q *Queue) expandURI(ctx context.Context, uri string) ([]*media.QueueItem, error) {
	mediaType, provID, itemID, err := media.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	music := q.module.music
	switch mediaType {
	case media.MediaTypeTrack:
		track, err := music.Tracks.Get(ctx, itemID, provID, false, false)
		if err != nil {
			return nil, err
		}
		return []*media.QueueItem{queueItemFromTrack(track)}, nil
	case media.MediaTypeRadio:
		radio, err := music.Radios.Get(ctx, itemID, provID, false, false)
		if err != nil {
			return nil, err
		}
		return []*media.QueueItem{queueItemFromRadio(radio)}, nil
	case media.MediaTypeAlbum:
		tracks, err := music.Albums.Tracks(ctx, itemID, provID)
		if err != nil {
			return nil, err
		}
		return queueItemsFromTracks(tracks), nil
	case media.MediaTypePlaylist:
		tracks, err := music.Playlists.Tracks(ctx, itemID, provID)
		if err != nil {
			return nil, err
		}
		return queueItemsFromTracks(tracks), nil
	case media.MediaTypeArtist:
		tracks, err := music.Artists.TopTracks(ctx, itemID, provID)
		if err != nil {
			return nil, err
		}
		return queueItemsFromTracks(tracks), nil
	default:
		return nil, fmt.Errorf("%w: cannot enqueue media type %s", media.ErrUnsupported, mediaType)
	}
}

func queueItemFromTrack(track *media.Track) *media.QueueItem {
	name := track.Name
	if artist := track.Artist(); artist != nil {
		name = artist.Name + " - " + track.Name
	}
	return &media.QueueItem{
		QueueItemID: uuid.NewString(),
		Name:        name,
		URI:         track.URI,
		Duration:    track.Duration,
		MediaItem:   track,
	}
}

func queueItemFromRadio(radio *media.Radio) *media.QueueItem {
	return &media.QueueItem{
		QueueItemID: uuid.NewString(),
		Name:        radio.Name,
		URI:         radio.URI,
		Duration:    media.RadioDuration,
		Radio:       radio,
	}
}

func queueItemsFromTracks(tracks []*media.Track) []*media.QueueItem {
	out := make([]*media.QueueItem, 0, len(tracks))
	for _, track := range tracks {
		out = append(out, queueItemFromTrack(track))
	}
	return out
}
