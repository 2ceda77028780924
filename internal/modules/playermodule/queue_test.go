package playermodule

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelveldt/music-assistant/internal/cache"
	"github.com/marcelveldt/music-assistant/internal/database"
	"github.com/marcelveldt/music-assistant/internal/events"
	"github.com/marcelveldt/music-assistant/internal/media"
	"github.com/marcelveldt/music-assistant/internal/modules/musicmodule"
	"github.com/marcelveldt/music-assistant/internal/providers"
)

// fakeControl records every command a queue or the manager issues.
type fakeControl struct {
	mu      sync.Mutex
	player  *media.Player
	played  []string
	volumes []int
	stops   int
	pauses  int
	resumes int
	polls   int
}

func newFakeControl(playerID string) *fakeControl {
	return &fakeControl{player: &media.Player{
		PlayerID:  playerID,
		Name:      "Fake " + playerID,
		State:     media.PlayerStateIdle,
		Powered:   true,
		Available: true,
		Features: []media.PlayerFeature{
			media.PlayerFeaturePower,
			media.PlayerFeatureVolumeSet,
			media.PlayerFeatureMute,
			media.PlayerFeatureSeek,
		},
	}}
}

func (c *fakeControl) Player() *media.Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	clone := *c.player
	return &clone
}

func (c *fakeControl) PlayURL(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.played = append(c.played, url)
	return nil
}

func (c *fakeControl) Stop(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return nil
}

func (c *fakeControl) Pause(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauses++
	return nil
}

func (c *fakeControl) Resume(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumes++
	return nil
}

func (c *fakeControl) Power(ctx context.Context, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.player.Powered = on
	return nil
}

func (c *fakeControl) SetVolume(ctx context.Context, level int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.player.VolumeLevel = level
	c.volumes = append(c.volumes, level)
	return nil
}

func (c *fakeControl) SetMute(ctx context.Context, muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.player.Muted = muted
	return nil
}

func (c *fakeControl) Seek(context.Context, int) error { return nil }

func (c *fakeControl) Poll(context.Context) (*media.Player, error) {
	c.mu.Lock()
	c.polls++
	c.mu.Unlock()
	return c.Player(), nil
}

func (c *fakeControl) pollCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls
}

func (c *fakeControl) playCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.played)
}

func newTestPlayerModule(t *testing.T) (*Module, *musicmodule.Module) {
	t.Helper()
	db, err := database.ConnectTest()
	require.NoError(t, err)
	logger := hclog.NewNullLogger()
	bus := events.NewBus(logger, 16)
	music := musicmodule.New(db, logger, bus, cache.New(logger, 128), providers.NewRegistry(logger))
	require.NoError(t, music.Migrate(db))
	return New(logger, bus, music), music
}

func addLibraryTrack(t *testing.T, music *musicmodule.Module, name string, n int) string {
	t.Helper()
	track := &media.Track{
		MediaItem: media.MediaItem{
			Name:      name,
			MediaType: media.MediaTypeTrack,
			ProviderMappings: []media.ProviderMapping{{
				ItemID:           fmt.Sprintf("%s-%d", name, n),
				ProviderDomain:   "fake",
				ProviderInstance: "fake--1",
				Available:        true,
			}},
		},
		Duration: 180 + n,
		Artists:  []media.ItemMapping{{Name: "Artist " + strconv.Itoa(n)}},
	}
	added, err := music.Tracks.Add(context.Background(), track, false)
	require.NoError(t, err)
	return added.URI
}

func registerPlayer(t *testing.T, m *Module, playerID string) *fakeControl {
	t.Helper()
	control := newFakeControl(playerID)
	require.NoError(t, m.Manager().RegisterControl(control))
	return control
}

func TestPlayMediaReplace(t *testing.T) {
	m, music := newTestPlayerModule(t)
	control := registerPlayer(t, m, "p1")
	queue, err := m.Manager().Queue("p1")
	require.NoError(t, err)

	uri := addLibraryTrack(t, music, "Replace Song", 1)
	require.NoError(t, queue.PlayMedia(context.Background(), []string{uri}, media.QueueOptionReplace))

	snap := queue.Snapshot()
	assert.Equal(t, 1, snap.Items)
	assert.Equal(t, 0, snap.CurrentIndex)
	assert.Equal(t, media.PlayerStatePlaying, snap.State)
	assert.Equal(t, 1, control.playCount())
	require.NotNil(t, snap.CurrentItem)
	assert.Contains(t, snap.CurrentItem.StreamURL, "/stream/p1/")
}

func TestPlayMediaNextInsertsAfterCurrent(t *testing.T) {
	m, music := newTestPlayerModule(t)
	registerPlayer(t, m, "p1")
	queue, err := m.Manager().Queue("p1")
	require.NoError(t, err)
	ctx := context.Background()

	first := addLibraryTrack(t, music, "First", 1)
	second := addLibraryTrack(t, music, "Second", 2)
	inserted := addLibraryTrack(t, music, "Inserted", 3)

	require.NoError(t, queue.PlayMedia(ctx, []string{first, second}, media.QueueOptionReplace))
	require.NoError(t, queue.PlayMedia(ctx, []string{inserted}, media.QueueOptionNext))

	items := queue.Items()
	require.Len(t, items, 3)
	assert.Equal(t, inserted, items[1].URI)
	// "next" does not steal playback from the current item
	assert.Equal(t, 0, queue.Snapshot().CurrentIndex)
}

func TestPlayMediaClampDegradesToReplace(t *testing.T) {
	m, music := newTestPlayerModule(t)
	registerPlayer(t, m, "p1")
	queue, err := m.Manager().Queue("p1")
	require.NoError(t, err)
	ctx := context.Background()

	existing := addLibraryTrack(t, music, "Existing", 0)
	require.NoError(t, queue.PlayMedia(ctx, []string{existing}, media.QueueOptionReplace))

	var uris []string
	for i := 1; i <= playMediaClamp+1; i++ {
		uris = append(uris, addLibraryTrack(t, music, "Bulk Song", i))
	}
	require.NoError(t, queue.PlayMedia(ctx, []string{uris[0]}, media.QueueOptionNext))
	// still an insert at this size
	assert.Equal(t, 2, queue.Snapshot().Items)

	require.NoError(t, queue.PlayMedia(ctx, uris, media.QueueOptionNext))
	// over the clamp the request replaces the whole queue
	assert.Equal(t, len(uris), queue.Snapshot().Items)
	assert.Equal(t, 0, queue.Snapshot().CurrentIndex)
}

func TestNextPreviousAndRepeat(t *testing.T) {
	m, music := newTestPlayerModule(t)
	control := registerPlayer(t, m, "p1")
	queue, err := m.Manager().Queue("p1")
	require.NoError(t, err)
	ctx := context.Background()

	uris := []string{
		addLibraryTrack(t, music, "Track One", 1),
		addLibraryTrack(t, music, "Track Two", 2),
	}
	require.NoError(t, queue.PlayMedia(ctx, uris, media.QueueOptionReplace))
	require.NoError(t, queue.Next(ctx))
	assert.Equal(t, 1, queue.Snapshot().CurrentIndex)

	// end of queue without repeat stops playback
	require.NoError(t, queue.Next(ctx))
	assert.Equal(t, media.PlayerStateIdle, queue.Snapshot().State)
	assert.Equal(t, 1, control.stops)

	// repeat-all wraps to the start
	queue.SetRepeat(media.RepeatModeAll)
	require.NoError(t, queue.PlayIndex(ctx, 1))
	require.NoError(t, queue.Next(ctx))
	assert.Equal(t, 0, queue.Snapshot().CurrentIndex)

	// a user skip advances even under repeat-one
	queue.SetRepeat(media.RepeatModeOne)
	require.NoError(t, queue.Next(ctx))
	assert.Equal(t, 1, queue.Snapshot().CurrentIndex)

	// but auto-advance replays the same item
	played := control.playCount()
	state := control.Player()
	state.State = media.PlayerStateIdle
	m.Manager().UpdateState(state)
	assert.Equal(t, 1, queue.Snapshot().CurrentIndex)
	assert.Equal(t, played+1, control.playCount())
}

func TestPreviousRestartsAfterThreshold(t *testing.T) {
	m, music := newTestPlayerModule(t)
	registerPlayer(t, m, "p1")
	queue, err := m.Manager().Queue("p1")
	require.NoError(t, err)
	ctx := context.Background()

	uris := []string{
		addLibraryTrack(t, music, "Prev One", 1),
		addLibraryTrack(t, music, "Prev Two", 2),
	}
	require.NoError(t, queue.PlayMedia(ctx, uris, media.QueueOptionReplace))
	require.NoError(t, queue.PlayIndex(ctx, 1))

	// early in the track, previous steps back
	queue.onElapsed(3)
	require.NoError(t, queue.Previous(ctx))
	assert.Equal(t, 0, queue.Snapshot().CurrentIndex)

	require.NoError(t, queue.PlayIndex(ctx, 1))
	queue.onElapsed(42)
	require.NoError(t, queue.Previous(ctx))
	// deep into the track it restarts instead
	assert.Equal(t, 1, queue.Snapshot().CurrentIndex)
}

func TestAutoAdvanceOnIdleReport(t *testing.T) {
	m, music := newTestPlayerModule(t)
	control := registerPlayer(t, m, "p1")
	queue, err := m.Manager().Queue("p1")
	require.NoError(t, err)
	ctx := context.Background()

	uris := []string{
		addLibraryTrack(t, music, "Auto One", 1),
		addLibraryTrack(t, music, "Auto Two", 2),
	}
	require.NoError(t, queue.PlayMedia(ctx, uris, media.QueueOptionReplace))
	require.Equal(t, 1, control.playCount())

	// the driver reports idle while the queue expects playback: advance
	state := control.Player()
	state.State = media.PlayerStateIdle
	m.Manager().UpdateState(state)

	assert.Equal(t, 1, queue.Snapshot().CurrentIndex)
	assert.Equal(t, 2, control.playCount())
}

func TestPowerOffFreezesQueue(t *testing.T) {
	m, music := newTestPlayerModule(t)
	control := registerPlayer(t, m, "p1")
	queue, err := m.Manager().Queue("p1")
	require.NoError(t, err)
	ctx := context.Background()

	uri := addLibraryTrack(t, music, "Freeze Song", 1)
	require.NoError(t, queue.PlayMedia(ctx, []string{uri}, media.QueueOptionReplace))
	queue.onElapsed(33)

	state := control.Player()
	state.Powered = false
	state.ElapsedTime = 0
	m.Manager().UpdateState(state)

	snap := queue.Snapshot()
	assert.Equal(t, media.PlayerStateOff, snap.State)
	// elapsed time survives the power-off
	require.NotNil(t, snap.CurrentItem)
	assert.Equal(t, 33.0, snap.CurrentItem.ElapsedTime)

	player, err := m.Manager().Player("p1")
	require.NoError(t, err)
	assert.Equal(t, media.PlayerStateOff, player.State)
	// no new play command was issued by the off report
	assert.Equal(t, 1, control.playCount())
}

func TestShuffleKeepsCurrentAndReordersTail(t *testing.T) {
	m, music := newTestPlayerModule(t)
	registerPlayer(t, m, "p1")
	queue, err := m.Manager().Queue("p1")
	require.NoError(t, err)
	ctx := context.Background()

	var uris []string
	for i := 1; i <= 6; i++ {
		uris = append(uris, addLibraryTrack(t, music, "Shuffle Song", i))
	}
	require.NoError(t, queue.PlayMedia(ctx, uris, media.QueueOptionReplace))
	current := queue.CurrentItem().URI

	queue.SetShuffle(true)

	items := queue.Items()
	require.Len(t, items, 6)
	assert.Equal(t, current, items[0].URI)
	seen := make(map[string]struct{})
	for i, item := range items {
		assert.Equal(t, i, item.Position)
		seen[item.URI] = struct{}{}
	}
	// same set, possibly different order
	assert.Len(t, seen, 6)
}

func TestGroupVolume(t *testing.T) {
	m, _ := newTestPlayerModule(t)
	childA := registerPlayer(t, m, "child-a")
	childB := registerPlayer(t, m, "child-b")
	childA.player.VolumeLevel = 20
	childB.player.VolumeLevel = 40

	group := newFakeControl("group-1")
	group.player.IsGroup = true
	group.player.GroupChilds = []string{"child-a", "child-b"}
	require.NoError(t, m.Manager().RegisterControl(group))

	// refresh manager snapshots with the child volume levels
	m.Manager().UpdateState(childA.Player())
	m.Manager().UpdateState(childB.Player())

	ctx := context.Background()
	// group volume 30 = avg(20, 40); doubling it doubles each member
	require.NoError(t, m.Manager().SetVolume(ctx, "group-1", 60))
	assert.Equal(t, []int{40}, childA.volumes)
	assert.Equal(t, []int{80}, childB.volumes)
}

func TestGroupVolumeUnchangedSendsNoCommands(t *testing.T) {
	m, _ := newTestPlayerModule(t)
	childA := registerPlayer(t, m, "same-a")
	childB := registerPlayer(t, m, "same-b")
	childA.player.VolumeLevel = 20
	childB.player.VolumeLevel = 40

	group := newFakeControl("group-s")
	group.player.IsGroup = true
	group.player.GroupChilds = []string{"same-a", "same-b"}
	require.NoError(t, m.Manager().RegisterControl(group))

	m.Manager().UpdateState(childA.Player())
	m.Manager().UpdateState(childB.Player())

	// 30 is already the group average: no child receives a command
	require.NoError(t, m.Manager().SetVolume(context.Background(), "group-s", 30))
	assert.Empty(t, childA.volumes)
	assert.Empty(t, childB.volumes)
}

func TestGroupVolumeFromZero(t *testing.T) {
	m, _ := newTestPlayerModule(t)
	childA := registerPlayer(t, m, "zero-a")
	childB := registerPlayer(t, m, "zero-b")

	group := newFakeControl("group-z")
	group.player.IsGroup = true
	group.player.GroupChilds = []string{"zero-a", "zero-b"}
	require.NoError(t, m.Manager().RegisterControl(group))

	ctx := context.Background()
	// all members at zero: proportional scaling is impossible, set directly
	require.NoError(t, m.Manager().SetVolume(ctx, "group-z", 25))
	assert.Equal(t, []int{25}, childA.volumes)
	assert.Equal(t, []int{25}, childB.volumes)
}

func TestVolumeSteps(t *testing.T) {
	m, _ := newTestPlayerModule(t)
	control := registerPlayer(t, m, "p1")
	control.player.VolumeLevel = 50
	m.Manager().UpdateState(control.Player())

	ctx := context.Background()
	require.NoError(t, m.Manager().VolumeUp(ctx, "p1"))
	m.Manager().UpdateState(control.Player())
	require.NoError(t, m.Manager().VolumeDown(ctx, "p1"))
	assert.Equal(t, []int{55, 50}, control.volumes)
}

func TestTickPollCadence(t *testing.T) {
	m, _ := newTestPlayerModule(t)
	busy := registerPlayer(t, m, "tick-busy")
	lazy := registerPlayer(t, m, "tick-lazy")

	busy.mu.Lock()
	busy.player.State = media.PlayerStatePlaying
	busy.player.ShouldPoll = true
	busy.mu.Unlock()
	lazy.mu.Lock()
	lazy.player.ShouldPoll = true
	lazy.mu.Unlock()
	m.Manager().UpdateState(busy.Player())
	m.Manager().UpdateState(lazy.Player())

	ctx := context.Background()
	for i := 0; i < PollInterval; i++ {
		m.Manager().tick(ctx)
	}
	// a playing player is polled on every tick, idle ones on the slow cadence
	assert.Equal(t, PollInterval, busy.pollCount())
	assert.Equal(t, 1, lazy.pollCount())
}

func TestCommandsWithoutFeatureAreRejected(t *testing.T) {
	m, _ := newTestPlayerModule(t)
	control := newFakeControl("bare")
	control.player.Features = nil
	require.NoError(t, m.Manager().RegisterControl(control))

	ctx := context.Background()
	assert.ErrorIs(t, m.Manager().SetVolume(ctx, "bare", 10), media.ErrUnsupported)
	assert.ErrorIs(t, m.Manager().SetMute(ctx, "bare", true), media.ErrUnsupported)
	assert.ErrorIs(t, m.Manager().Seek(ctx, "bare", 30), media.ErrUnsupported)
	assert.ErrorIs(t, m.Manager().Power(ctx, "bare", true), media.ErrUnsupported)
}

func TestUnknownPlayer(t *testing.T) {
	m, _ := newTestPlayerModule(t)
	_, err := m.Manager().Player("ghost")
	assert.ErrorIs(t, err, media.ErrPlayerUnavailable)
	_, err = m.Manager().Queue("ghost")
	assert.ErrorIs(t, err, media.ErrPlayerUnavailable)
}
