package script

import (
	"github.com/Thinkofname/UniverCity/internal/script/ui"
)

// Bridges are the host-side collaborators scripts can reach. Every bridge
// entry is exposed as an opaque call boundary in the capability registry;
// a nil bridge simply leaves its capabilities uninstalled, so the allow-list
// never contains a primitive with nothing behind it.
type Bridges struct {
	UI       UIBridge
	Audio    AudioBridge
	Level    LevelBridge
	Players  PlayerBridge
	Commands CommandSink
	Notifier Notifier
}

// UIBridge renders built node trees. Client side only.
type UIBridge interface {
	AddRoot(n *ui.Node)
	RemoveRoot(n *ui.Node)
	ShowTooltip(key string, content *ui.Node, x, y int)
	HideTooltip(key string)
}

// AudioBridge triggers sound playback. Client side only.
type AudioBridge interface {
	Play(sound string)
}

// LevelBridge answers level and tile queries. Both sides.
type LevelBridge interface {
	TileAt(x, y int) string
}

// PlayerBridge exposes player control to mission scripts. Server side only.
type PlayerBridge interface {
	Players() []int
	GiveMoney(player, amount int)
}

// CommandSink collects commands generated by mission scripts for networked
// submission. Server side only.
type CommandSink interface {
	Submit(name string, payload []byte)
}

// Notifier delivers script notifications to a player's client. Used by the
// free-roam notify_player callback.
type Notifier interface {
	Notify(player int, script, method string, payload []byte) error
}
