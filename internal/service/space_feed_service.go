package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/observability"
)

const spaceFeedBufferSize = 16

// Space feed event types.
const (
	SpaceEventSubmissionCreated  = "submission.created"
	SpaceEventSubmissionUpdated  = "submission.updated"
	SpaceEventSubmissionReviewed = "submission.reviewed"
)

// SpaceEventPublisher fans submission changes out to live listeners.
type SpaceEventPublisher interface {
	Publish(ctx context.Context, event dto.SpaceEvent)
}

// SpaceFeedService streams space events to subscribers on this node and relays them across nodes.
type SpaceFeedService interface {
	SpaceEventPublisher
	// Subscribe registers a listener. The returned cleanup must be called when the caller's scope ends.
	Subscribe(spaceID string) (<-chan dto.SpaceEvent, func())
	Start(ctx context.Context)
}

type spaceFeedService struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *spaceBroker
	nodeID       string
	now          func() time.Time
}

type spaceFeedEnvelope struct {
	Source string         `json:"source"`
	Event  dto.SpaceEvent `json:"event"`
}

type spaceBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.SpaceEvent]struct{}
}

// NewSpaceFeedService constructs the feed. Redis and NATS are optional relays.
func NewSpaceFeedService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) SpaceFeedService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":feed"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".feed"
	}

	return &spaceFeedService{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "space_feed_service").Logger(),
		broker: &spaceBroker{
			subscribers: make(map[string]map[chan dto.SpaceEvent]struct{}),
		},
		nodeID: uuid.NewString(),
		now:    time.Now,
	}
}

func (s *spaceFeedService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *spaceFeedService) Publish(ctx context.Context, event dto.SpaceEvent) {
	if event.SentAt.IsZero() {
		event.SentAt = s.now().UTC()
	}

	s.broker.broadcast(event.SpaceID, event)
	observability.FeedEvents().WithLabelValues("local").Inc()

	if err := s.relay(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("space_id", event.SpaceID).Msg("failed to relay space event")
	}
}

func (s *spaceFeedService) Subscribe(spaceID string) (<-chan dto.SpaceEvent, func()) {
	channel := make(chan dto.SpaceEvent, spaceFeedBufferSize)

	s.broker.subscribe(spaceID, channel)
	observability.StreamClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(spaceID, channel)
			observability.StreamClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (s *spaceFeedService) relay(ctx context.Context, event dto.SpaceEvent) error {
	payload, err := json.Marshal(spaceFeedEnvelope{Source: s.nodeID, Event: event})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *spaceFeedService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("space feed redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

func (s *spaceFeedService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats space feed subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain space feed nats subscription")
		}
	}()
}

func (s *spaceFeedService) handleEnvelope(payload []byte) {
	var envelope spaceFeedEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid space feed payload")
		return
	}

	if envelope.Source == s.nodeID || envelope.Event.SpaceID == "" {
		return
	}

	observability.FeedEvents().WithLabelValues("remote").Inc()
	s.broker.broadcast(envelope.Event.SpaceID, envelope.Event)
}

func (b *spaceBroker) subscribe(spaceID string, ch chan dto.SpaceEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[spaceID]; !exists {
		b.subscribers[spaceID] = make(map[chan dto.SpaceEvent]struct{})
	}
	b.subscribers[spaceID][ch] = struct{}{}
}

func (b *spaceBroker) unsubscribe(spaceID string, ch chan dto.SpaceEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[spaceID]; ok {
		if _, present := subscribers[ch]; !present {
			return
		}
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, spaceID)
		}
	}
}

func (b *spaceBroker) broadcast(spaceID string, event dto.SpaceEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[spaceID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *spaceBroker) count(spaceID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[spaceID])
}
