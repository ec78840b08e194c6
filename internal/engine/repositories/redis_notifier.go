package repositories

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cardroomhq/blackjack/internal/engine"
	"github.com/cardroomhq/blackjack/internal/engine/domain/table"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	// TableChannelPrefix is the pub/sub channel carrying one table's
	// live updates: "table:{id}"
	TableChannelPrefix = "table:"

	// LobbyChannel carries lobby roster updates
	LobbyChannel = "lobby"
)

// Event types carried on the channels
const (
	EventTableUpdated = "table-updated"
	EventTableDeleted = "table-deleted"
)

// TableEvent is the envelope published on table and lobby channels
type TableEvent struct {
	Event   string         `json:"event"`
	TableID uuid.UUID      `json:"table_id"`
	Table   *table.View    `json:"table,omitempty"`
	Summary *table.Summary `json:"summary,omitempty"`
}

// RedisNotifier publishes committed table changes to redis pub/sub so the
// websocket hub can fan them out to subscribed viewers. Publish failures
// are logged and dropped: the write already committed, and viewers
// reconcile on their next read.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier creates a redis-backed notifier
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

var _ engine.Notifier = (*RedisNotifier)(nil)

// TableChanged publishes the updated table view to its channel and a
// summary to the lobby
func (n *RedisNotifier) TableChanged(ctx context.Context, t *table.Table) {
	view := t.View()
	summary := t.Summarize()

	n.publish(ctx, TableChannelPrefix+t.ID.String(), TableEvent{
		Event:   EventTableUpdated,
		TableID: t.ID,
		Table:   &view,
	})
	n.publish(ctx, LobbyChannel, TableEvent{
		Event:   EventTableUpdated,
		TableID: t.ID,
		Summary: &summary,
	})
}

// TableDeleted announces a table's removal on both channels
func (n *RedisNotifier) TableDeleted(ctx context.Context, id uuid.UUID) {
	event := TableEvent{Event: EventTableDeleted, TableID: id}
	n.publish(ctx, TableChannelPrefix+id.String(), event)
	n.publish(ctx, LobbyChannel, event)
}

func (n *RedisNotifier) publish(ctx context.Context, channel string, event TableEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal table event", "channel", channel, "error", err)
		return
	}
	if err := n.client.Publish(ctx, channel, data).Err(); err != nil {
		slog.Error("failed to publish table event", "channel", channel, "error", err)
	}
}
