package playermodule

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/marcelveldt/music-assistant/internal/events"
	"github.com/marcelveldt/music-assistant/internal/modules/musicmodule"
)

// commandTimeout bounds internally issued player commands.
const commandTimeout = 10 * time.Second

// StreamURLBuilder renders the transport url a player fetches for a queue
// item. The stream module installs the real implementation at startup.
type StreamURLBuilder func(playerID, queueItemID string) string

// Module is the player management module.
type Module struct {
	logger  hclog.Logger
	bus     *events.Bus
	music   *musicmodule.Module
	manager *Manager

	urlMu     sync.RWMutex
	streamURL StreamURLBuilder

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the player module.
func New(logger hclog.Logger, bus *events.Bus, music *musicmodule.Module) *Module {
	m := &Module{
		logger: logger.Named("players"),
		bus:    bus,
		music:  music,
	}
	m.manager = newManager(m, m.logger, bus)
	m.streamURL = func(playerID, queueItemID string) string {
		return "/stream/" + playerID + "/" + queueItemID
	}
	return m
}

func (m *Module) ID() string                { return "players" }
func (m *Module) Name() string              { return "Player Manager" }
func (m *Module) Core() bool                { return true }
func (m *Module) Migrate(db *gorm.DB) error { return nil }
func (m *Module) Init() error               { return nil }

// Manager exposes the player roster.
func (m *Module) Manager() *Manager { return m.manager }

// SetStreamURLBuilder installs the transport url renderer.
func (m *Module) SetStreamURLBuilder(builder StreamURLBuilder) {
	m.urlMu.Lock()
	m.streamURL = builder
	m.urlMu.Unlock()
}

func (m *Module) buildStreamURL(playerID, queueItemID string) string {
	m.urlMu.RLock()
	defer m.urlMu.RUnlock()
	return m.streamURL(playerID, queueItemID)
}

// Start launches the housekeeping loop: elapsed time bookkeeping and
// driver polling.
func (m *Module) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go m.loop(loopCtx)
	return nil
}

// Stop terminates the housekeeping loop.
func (m *Module) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	return nil
}

func (m *Module) loop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(pollTick * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.manager.tick(ctx)
		}
	}
}
