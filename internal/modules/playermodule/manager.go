package playermodule

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/marcelveldt/music-assistant/internal/events"
	"github.com/marcelveldt/music-assistant/internal/media"
)

const (
	// pollTick is the manager housekeeping cadence.
	pollTick = 1
	// PollInterval is how many ticks pass between driver polls.
	PollInterval = 10

	volumeStep = 5
)

// Manager owns the player roster and their queues.
type Manager struct {
	logger hclog.Logger
	bus    *events.Bus
	module *Module

	mu      sync.RWMutex
	players map[string]*playerEntry
	queues  map[string]*Queue
}

type playerEntry struct {
	control   PlayerControl
	state     *media.Player
	pollTicks int
}

func newManager(module *Module, logger hclog.Logger, bus *events.Bus) *Manager {
	return &Manager{
		logger:  logger,
		bus:     bus,
		module:  module,
		players: make(map[string]*playerEntry),
		queues:  make(map[string]*Queue),
	}
}

// RegisterControl adds a player driver to the roster and creates its queue.
func (m *Manager) RegisterControl(control PlayerControl) error {
	state := control.Player()
	if state == nil || state.PlayerID == "" {
		return fmt.Errorf("%w: control without player id", media.ErrInvalidData)
	}
	snapshot := *state
	m.mu.Lock()
	_, existed := m.players[snapshot.PlayerID]
	m.players[snapshot.PlayerID] = &playerEntry{control: control, state: &snapshot}
	if _, ok := m.queues[snapshot.PlayerID]; !ok {
		m.queues[snapshot.PlayerID] = newQueue(snapshot.PlayerID, m.module)
	}
	m.mu.Unlock()

	if existed {
		m.bus.Publish(events.PlayerControlUpdated, snapshot.PlayerID, &snapshot)
	} else {
		m.bus.Publish(events.PlayerControlRegistered, snapshot.PlayerID, &snapshot)
		m.bus.Publish(events.PlayerAdded, snapshot.PlayerID, &snapshot)
	}
	m.logger.Info("player registered", "player_id", snapshot.PlayerID, "name", snapshot.Name)
	return nil
}

// RemovePlayer drops a player and its queue.
func (m *Manager) RemovePlayer(playerID string) {
	m.mu.Lock()
	entry, ok := m.players[playerID]
	delete(m.players, playerID)
	delete(m.queues, playerID)
	m.mu.Unlock()
	if !ok {
		return
	}
	m.bus.Publish(events.PlayerRemoved, playerID, entry.state)
}

// UpdateState ingests a raw driver state report and recomputes the derived
// fields. A player reported off keeps its last elapsed time.
func (m *Manager) UpdateState(raw *media.Player) {
	if raw == nil || raw.PlayerID == "" {
		return
	}
	m.mu.Lock()
	entry, ok := m.players[raw.PlayerID]
	if !ok {
		m.mu.Unlock()
		return
	}
	prev := entry.state
	next := *raw
	if next.State == media.PlayerStateOff || !next.Powered {
		next.State = media.PlayerStateOff
		next.ElapsedTime = prev.ElapsedTime
	}
	entry.state = &next
	queue := m.queues[raw.PlayerID]
	m.mu.Unlock()

	m.bus.Publish(events.PlayerChanged, next.PlayerID, &next)
	if queue != nil {
		queue.onPlayerUpdate(&next)
	}
}

// Player returns the derived state snapshot of one player.
func (m *Manager) Player(playerID string) (*media.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.players[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", media.ErrPlayerUnavailable, playerID)
	}
	snapshot := *entry.state
	return &snapshot, nil
}

// Players returns all known players.
func (m *Manager) Players() []*media.Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*media.Player, 0, len(m.players))
	for _, entry := range m.players {
		snapshot := *entry.state
		out = append(out, &snapshot)
	}
	return out
}

// Queue returns the queue of one player.
func (m *Manager) Queue(playerID string) (*Queue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	queue, ok := m.queues[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", media.ErrPlayerUnavailable, playerID)
	}
	return queue, nil
}

func (m *Manager) entry(playerID string) (*playerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.players[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", media.ErrPlayerUnavailable, playerID)
	}
	return entry, nil
}

// Power switches a player (and, for groups, every member) on or off.
func (m *Manager) Power(ctx context.Context, playerID string, on bool) error {
	entry, err := m.entry(playerID)
	if err != nil {
		return err
	}
	if entry.state.IsGroup {
		for _, childID := range entry.state.GroupChilds {
			if child, err := m.entry(childID); err == nil && child.state.HasFeature(media.PlayerFeaturePower) {
				if err := child.control.Power(ctx, on); err != nil {
					m.logger.Warn("group power failed", "player_id", childID, "error", err)
				}
			}
		}
		return nil
	}
	if !entry.state.HasFeature(media.PlayerFeaturePower) {
		return media.ErrUnsupported
	}
	return entry.control.Power(ctx, on)
}

// SetVolume sets the absolute volume. For groups the target level rescales
// every powered member proportionally to its current share; when all
// members sit at zero they are all set to the target directly.
func (m *Manager) SetVolume(ctx context.Context, playerID string, level int) error {
	level = clampVolume(level)
	entry, err := m.entry(playerID)
	if err != nil {
		return err
	}
	if entry.state.IsGroup {
		return m.setGroupVolume(ctx, entry.state, level)
	}
	if !entry.state.HasFeature(media.PlayerFeatureVolumeSet) {
		return media.ErrUnsupported
	}
	return entry.control.SetVolume(ctx, level)
}

// VolumeUp raises the volume by one step.
func (m *Manager) VolumeUp(ctx context.Context, playerID string) error {
	player, err := m.Player(playerID)
	if err != nil {
		return err
	}
	return m.SetVolume(ctx, playerID, m.currentVolume(player)+volumeStep)
}

// VolumeDown lowers the volume by one step.
func (m *Manager) VolumeDown(ctx context.Context, playerID string) error {
	player, err := m.Player(playerID)
	if err != nil {
		return err
	}
	return m.SetVolume(ctx, playerID, m.currentVolume(player)-volumeStep)
}

// SetMute mutes or unmutes a player.
func (m *Manager) SetMute(ctx context.Context, playerID string, muted bool) error {
	entry, err := m.entry(playerID)
	if err != nil {
		return err
	}
	if !entry.state.HasFeature(media.PlayerFeatureMute) {
		return media.ErrUnsupported
	}
	return entry.control.SetMute(ctx, muted)
}

// Seek jumps to an absolute position in the current item.
func (m *Manager) Seek(ctx context.Context, playerID string, positionSeconds int) error {
	entry, err := m.entry(playerID)
	if err != nil {
		return err
	}
	if !entry.state.HasFeature(media.PlayerFeatureSeek) {
		return media.ErrUnsupported
	}
	return entry.control.Seek(ctx, positionSeconds)
}

// currentVolume reports the effective volume: group players average their
// powered members.
func (m *Manager) currentVolume(player *media.Player) int {
	if !player.IsGroup {
		return player.VolumeLevel
	}
	sum, count := 0, 0
	for _, childID := range player.GroupChilds {
		child, err := m.Player(childID)
		if err != nil || !child.Powered {
			continue
		}
		sum += child.VolumeLevel
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / count
}

func (m *Manager) setGroupVolume(ctx context.Context, group *media.Player, level int) error {
	current := m.currentVolume(group)
	// the group already sits at the requested level: no child is touched
	if level == current {
		return nil
	}
	for _, childID := range group.GroupChilds {
		entry, err := m.entry(childID)
		if err != nil || !entry.state.Powered {
			continue
		}
		if !entry.state.HasFeature(media.PlayerFeatureVolumeSet) {
			continue
		}
		target := level
		if current > 0 {
			target = clampVolume(int(math.Round(float64(entry.state.VolumeLevel) * float64(level) / float64(current))))
		}
		if err := entry.control.SetVolume(ctx, target); err != nil {
			m.logger.Warn("group volume failed", "player_id", childID, "error", err)
		}
	}
	return nil
}

func clampVolume(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}

// tick advances housekeeping: elapsed time bookkeeping and driver polls.
// Playing players are polled every tick; everything else on the
// PollInterval cadence.
func (m *Manager) tick(ctx context.Context) {
	type elapsedUpdate struct {
		queue   *Queue
		elapsed float64
	}
	type pollTarget struct {
		playerID string
		control  PlayerControl
	}
	var updates []elapsedUpdate
	var polls []pollTarget

	m.mu.Lock()
	for playerID, entry := range m.players {
		playing := entry.state.State == media.PlayerStatePlaying
		if playing {
			entry.state.ElapsedTime += pollTick
			if queue, ok := m.queues[playerID]; ok {
				updates = append(updates, elapsedUpdate{queue, entry.state.ElapsedTime})
			}
		}
		if !entry.state.ShouldPoll {
			continue
		}
		entry.pollTicks++
		if playing || entry.pollTicks >= PollInterval {
			entry.pollTicks = 0
			polls = append(polls, pollTarget{playerID, entry.control})
		}
	}
	m.mu.Unlock()

	for _, update := range updates {
		update.queue.onElapsed(update.elapsed)
	}
	for _, poll := range polls {
		raw, err := poll.control.Poll(ctx)
		if err != nil {
			m.logger.Debug("player poll failed", "player_id", poll.playerID, "error", err)
			continue
		}
		m.UpdateState(raw)
	}
}
