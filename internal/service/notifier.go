package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/chaos-ops/display-server-go/internal/model"
	"github.com/chaos-ops/display-server-go/internal/sse"
)

// PairedEvent is pushed to a display when an admin claims its code, so the
// kiosk can flip to its paired screen without waiting for the next poll.
type PairedEvent struct {
	OrganisationID string  `json:"organisationId"`
	DeviceName     *string `json:"deviceName,omitempty"`
}

// Notifier delivers best-effort push events to a display. Delivery is never
// guaranteed and never acknowledged; the poll loop remains the sole
// correctness channel. A Noop implementation is a valid substitute.
type Notifier interface {
	NotifyPaired(ctx context.Context, deviceID string, event PairedEvent)
	NotifyPlan(ctx context.Context, deviceID string, plan *model.DayPlan)
}

type brokerNotifier struct {
	broker *sse.Broker
}

func NewBrokerNotifier(broker *sse.Broker) Notifier {
	return &brokerNotifier{broker: broker}
}

func (n *brokerNotifier) NotifyPaired(ctx context.Context, deviceID string, event PairedEvent) {
	n.publish(ctx, deviceID, sse.EventPaired, event)
}

func (n *brokerNotifier) NotifyPlan(ctx context.Context, deviceID string, plan *model.DayPlan) {
	n.publish(ctx, deviceID, sse.EventPlan, plan)
}

func (n *brokerNotifier) publish(ctx context.Context, deviceID string, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("deviceId", deviceID).Str("event", eventType).Msg("failed to marshal push event")
		return
	}

	if err := n.broker.Publish(ctx, deviceID, sse.Event{Type: eventType, Data: data}); err != nil {
		log.Warn().Err(err).Str("deviceId", deviceID).Str("event", eventType).Msg("push delivery failed")
	}
}

// NoopNotifier drops every event. Used in tests and wherever the push
// channel is unavailable.
type NoopNotifier struct{}

func (NoopNotifier) NotifyPaired(context.Context, string, PairedEvent) {}

func (NoopNotifier) NotifyPlan(context.Context, string, *model.DayPlan) {}
