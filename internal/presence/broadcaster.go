package presence

import (
	"encoding/json"
	"log/slog"

	"github.com/samber/lo"

	"github.com/HarshPratapSingh1/ChatVerse/internal/metrics"
	"github.com/HarshPratapSingh1/ChatVerse/pkg/state"
)

// RosterEntry is one verified identity in the online roster push.
type RosterEntry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// RosterPush is the wire form sent to every connection on membership change.
type RosterPush struct {
	Online []RosterEntry `json:"online"`
}

// Broadcaster publishes the online roster to every registered connection
// whenever registry membership changes. Delivery is best-effort: a send
// failure closes that one connection (whose close path deregisters it and
// republishes) and never aborts the loop.
type Broadcaster struct {
	logger   *slog.Logger
	registry state.Manager
}

func NewBroadcaster(logger *slog.Logger, registry state.Manager) *Broadcaster {
	return &Broadcaster{
		logger:   logger.With(slog.String("component", "presence_broadcaster")),
		registry: registry,
	}
}

// Publish builds one roster snapshot and sends it to all connections,
// verified or not. It iterates a snapshot copy, so concurrent
// registrations and removals cannot tear the loop.
func (b *Broadcaster) Publish() {
	conns := b.registry.Snapshot()

	online := lo.FilterMap(conns, func(c *state.Connection, _ int) (RosterEntry, bool) {
		if c.Identity.IsAnonymous() {
			return RosterEntry{}, false
		}
		return RosterEntry{UserID: c.Identity.UserID, Username: c.Identity.Username}, true
	})
	// One entry per identity, however many connections it holds open.
	online = lo.UniqBy(online, func(e RosterEntry) string { return e.UserID })
	if online == nil {
		online = []RosterEntry{}
	}

	payload, err := json.Marshal(RosterPush{Online: online})
	if err != nil {
		b.logger.Error("Failed to marshal roster push", slog.Any("error", err))
		return
	}

	for _, conn := range conns {
		if err := conn.Transport.Send(payload); err != nil {
			b.logger.Warn("Roster push failed, evicting connection",
				slog.String("connID", conn.ID.String()),
				slog.Any("error", err),
			)
			conn.Transport.Close(err)
		}
	}
	metrics.RosterBroadcasts.Inc()
	b.logger.Debug("Roster published", slog.Int("online", len(online)), slog.Int("connections", len(conns)))
}
