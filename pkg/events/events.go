package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coreward/atomix/pkg/cluster"
	"github.com/coreward/atomix/pkg/comm"
	"github.com/coreward/atomix/pkg/log"
	"github.com/coreward/atomix/pkg/types"
)

// serviceName is the pkg/comm service this fabric registers to receive
// events published by other members.
const serviceName = "events.Publish"

// Event is one published message on a topic.
type Event struct {
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Subscriber receives events for the topic it was handed out for.
type Subscriber chan Event

// Broker is the cluster event fabric. Publish reaches every member's
// local subscribers for a topic, whether they subscribed on this node or
// another.
type Broker struct {
	fabric     *comm.Fabric
	membership *cluster.Membership

	mu   sync.RWMutex
	subs map[string]map[Subscriber]struct{}
}

// New creates a broker and registers its inbound handler on fabric.
// Open/Close of the fabric itself is the composition root's concern;
// Broker only needs it already registered before remote publishes
// arrive.
func New(fabric *comm.Fabric, membership *cluster.Membership) *Broker {
	b := &Broker{
		fabric:     fabric,
		membership: membership,
		subs:       make(map[string]map[Subscriber]struct{}),
	}
	fabric.Register(serviceName, b.handleRemote)
	return b
}

func (b *Broker) handleRemote(ctx context.Context, payload []byte) ([]byte, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, err
	}
	b.deliverLocal(evt)
	return nil, nil
}

// Subscribe returns a buffered channel of events published on topic.
// Unsubscribe must be called to release it.
func (b *Broker) Subscribe(topic string) Subscriber {
	sub := make(Subscriber, 64)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[Subscriber]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub from topic and closes it.
func (b *Broker) Unsubscribe(topic string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subs[topic]; ok {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			close(sub)
		}
	}
}

// Publish delivers data on topic to local subscribers and fans it out,
// best effort, to every other known member.
func (b *Broker) Publish(topic string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	evt := Event{Topic: topic, Data: raw, Timestamp: time.Now()}

	b.deliverLocal(evt)
	b.fanOut(evt)
	return nil
}

func (b *Broker) deliverLocal(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[evt.Topic] {
		select {
		case sub <- evt:
		default:
			// Subscriber buffer full, drop rather than block the publisher.
		}
	}
}

func (b *Broker) fanOut(evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}

	local := b.membership.Local().ID
	l := log.WithComponent("events")

	for _, member := range b.membership.Members() {
		if member.Node.ID == local {
			continue
		}
		go func(id types.NodeID) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := b.fabric.Call(ctx, id, serviceName, payload); err != nil {
				l.Debug().Err(err).Str("node_id", string(id)).Str("topic", evt.Topic).Msg("event fan-out failed")
			}
		}(member.Node.ID)
	}
}

// SubscriberCount returns the number of local subscribers for topic.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
