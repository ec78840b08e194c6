package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cardroomhq/blackjack/internal/engine/repositories"
	"github.com/go-redis/redis/v8"
)

// inbound delivers one redis pub/sub payload to the hub for routing
type inbound struct {
	channel string
	payload []byte
}

// subscription links a client to a pub/sub channel
type subscription struct {
	client  *Client
	channel string
}

// Hub maintains the set of active clients and routes table updates from
// redis pub/sub to the clients watching each table or the lobby. It is
// read-only fan-out: player intents go over the HTTP API, not the socket.
type Hub struct {
	rdb *redis.Client

	clients map[*Client]bool

	// channel name -> clients watching it
	watchers map[string]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	deliver     chan inbound
}

func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		rdb:         rdb,
		clients:     make(map[*Client]bool),
		watchers:    make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		deliver:     make(chan inbound, 256),
	}
}

// Run owns all hub state. It must be started once, before any client
// connects.
func (h *Hub) Run(ctx context.Context) {
	go h.pumpRedis(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			h.dropClient(client)
		case sub := <-h.subscribe:
			h.addWatcher(sub)
		case sub := <-h.unsubscribe:
			h.removeWatcher(sub)
		case msg := <-h.deliver:
			h.routeMessage(msg)
		}
	}
}

// pumpRedis bridges the table and lobby pub/sub channels into the hub
func (h *Hub) pumpRedis(ctx context.Context) {
	pubsub := h.rdb.PSubscribe(ctx, repositories.TableChannelPrefix+"*")
	defer pubsub.Close()
	if err := pubsub.Subscribe(ctx, repositories.LobbyChannel); err != nil {
		slog.Error("failed to subscribe to lobby channel", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			h.deliver <- inbound{channel: msg.Channel, payload: []byte(msg.Payload)}
		}
	}
}

func (h *Hub) dropClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for channel, watchers := range h.watchers {
		delete(watchers, client)
		if len(watchers) == 0 {
			delete(h.watchers, channel)
		}
	}
	close(client.send)
}

func (h *Hub) addWatcher(sub subscription) {
	if !validChannel(sub.channel) {
		return
	}
	if h.watchers[sub.channel] == nil {
		h.watchers[sub.channel] = make(map[*Client]bool)
	}
	h.watchers[sub.channel][sub.client] = true
}

func (h *Hub) removeWatcher(sub subscription) {
	if watchers, ok := h.watchers[sub.channel]; ok {
		delete(watchers, sub.client)
		if len(watchers) == 0 {
			delete(h.watchers, sub.channel)
		}
	}
}

func (h *Hub) routeMessage(msg inbound) {
	for client := range h.watchers[msg.channel] {
		select {
		case client.send <- msg.payload:
		default:
			h.dropClient(client)
		}
	}
}

// validChannel restricts client subscriptions to the channels the hub
// actually pumps
func validChannel(channel string) bool {
	return channel == repositories.LobbyChannel ||
		strings.HasPrefix(channel, repositories.TableChannelPrefix)
}
