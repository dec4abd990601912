package reviewevents

import (
	"context"
	"encoding/json"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/prooflink/internal/config"
	"go.uber.org/zap"
)

// Broadcaster publishes review events to the local hub and, when redis
// is configured, to a pub/sub topic per parent so every instance sees
// the same stream. Without redis it degrades to single-instance fanout.
type Broadcaster struct {
	hub         *Hub
	log         *zap.Logger
	client      *redis.Client
	topicPrefix string
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewBroadcaster(cfg config.Config, hub *Hub, log *zap.Logger) *Broadcaster {
	b := &Broadcaster{
		hub:         hub,
		log:         log.Named("reviewevents"),
		topicPrefix: cfg.Events.TopicPrefix,
		done:        make(chan struct{}),
	}
	if addr := strings.TrimSpace(cfg.Events.RedisAddr); addr != "" {
		b.client = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Events.RedisPassword,
			DB:       cfg.Events.RedisDB,
		})
	}
	return b
}

func (b *Broadcaster) Publish(ctx context.Context, event Event) {
	if b == nil {
		return
	}
	if b.client == nil {
		b.hub.Publish(event.ParentID, event)
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Warn("marshal review event failed", zap.Error(err))
		return
	}
	if err := b.client.Publish(ctx, b.topicPrefix+event.ParentID, payload).Err(); err != nil {
		b.log.Warn("publish review event failed",
			zap.String("parent_id", event.ParentID),
			zap.Error(err),
		)
		// Local subscribers still get the event.
		b.hub.Publish(event.ParentID, event)
	}
}

// Start consumes the redis topics back into the local hub. No-op when
// redis is not configured.
func (b *Broadcaster) Start() {
	if b == nil {
		return
	}
	if b.client == nil {
		close(b.done)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	sub := b.client.PSubscribe(ctx, b.topicPrefix+"*")

	go func() {
		defer close(b.done)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.log.Warn("decode review event failed", zap.Error(err))
					continue
				}
				b.hub.Publish(event.ParentID, event)
			}
		}
	}()
}

func (b *Broadcaster) Stop() {
	if b == nil {
		return
	}
	if b.cancel != nil {
		b.cancel()
	}
	<-b.done
	if b.client != nil {
		_ = b.client.Close()
	}
}
