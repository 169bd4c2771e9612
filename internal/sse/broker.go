package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/chaos-ops/display-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

// Event types pushed to displays. Both are best-effort nudges layered over
// the poll loop; a display that never receives them still converges on the
// next poll tick.
const (
	EventPaired = "paired"
	EventPlan   = "plan"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	DeviceID string
	Events   chan Event
	Done     chan struct{}
}

// Broker fans push events out to connected displays. Events travel through
// Redis pub/sub so a push reaches the node holding the display's SSE
// connection regardless of which node handled the admin request.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]bool // deviceID -> set of clients
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(deviceID string) *Client {
	client := &Client{
		DeviceID: deviceID,
		Events:   make(chan Event, 100),
		Done:     make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[deviceID] == nil {
		b.clients[deviceID] = make(map[*Client]bool)
		go b.subscribeToRedis(deviceID)
	}
	b.clients[deviceID][client] = true
	clientCount := len(b.clients[deviceID])
	b.mu.Unlock()

	log.Info().
		Str("deviceId", deviceID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[client.DeviceID]; ok {
		delete(clients, client)
		close(client.Done)

		if len(clients) == 0 {
			delete(b.clients, client.DeviceID)
		}

		log.Info().
			Str("deviceId", client.DeviceID).
			Int("clientCount", len(clients)).
			Msg("sse client unsubscribed")
	}
}

func (b *Broker) Publish(ctx context.Context, deviceID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.DeviceChannel(deviceID)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(deviceID string) {
	channel := redisclient.DeviceChannel(deviceID)
	pubsub := b.redis.Subscribe(b.ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("deviceId", deviceID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(deviceID, event)
		}
	}
}

func (b *Broker) broadcast(deviceID string, event Event) {
	b.mu.RLock()
	clients := b.clients[deviceID]
	b.mu.RUnlock()

	for client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("deviceId", deviceID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
}

func (b *Broker) ClientCount(deviceID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[deviceID])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}
