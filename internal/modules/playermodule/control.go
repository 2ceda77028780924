// Package playermodule manages the player roster, per-player queues and
// playback commands. Player drivers register a PlayerControl; the manager
// owns the derived state and fans commands out to group members.
package playermodule

import (
	"context"

	"github.com/marcelveldt/music-assistant/internal/media"
)

// PlayerControl is the driver contract for one player. Drivers report raw
// state through Manager.UpdateState and execute the commands below.
// Commands for capabilities the player did not declare return
// media.ErrUnsupported.
type PlayerControl interface {
	// Player returns the current raw state snapshot.
	Player() *media.Player

	PlayURL(ctx context.Context, url string) error
	Stop(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error

	Power(ctx context.Context, on bool) error
	SetVolume(ctx context.Context, level int) error
	SetMute(ctx context.Context, muted bool) error
	Seek(ctx context.Context, positionSeconds int) error

	// Poll refetches the raw state; only called for players that set
	// ShouldPoll.
	Poll(ctx context.Context) (*media.Player, error)
}
