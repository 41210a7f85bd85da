// Package bus is a thin, typed wrapper around Redis pub/sub. It is a
// best-effort wakeup mechanism only: the store remains the system of
// record, and every subscriber must re-read the store after waking rather
// than accumulate state purely from events it happened to receive.
package bus

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// Topic names, versioned so a future incompatible payload change can ship
// alongside the old one instead of breaking in-flight consumers.
const (
	TopicSearchRequest       = "events:v1:search:request"
	TopicTorrentSearchResult = "events:v1:torrent:search_result"
	TopicTorrentAdded        = "events:v1:torrent:added"
)

// SearchRequest asks the indexer search workers to look for a title.
type SearchRequest struct {
	ImdbID  string `json:"imdb_id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Year    int    `json:"year"`
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
}

// TorrentSearchResult is one indexer's raw hit, handed to the torrent
// processor pool for parsing, scoring and storage.
type TorrentSearchResult struct {
	ImdbID  string `json:"imdb_id"`
	Indexer string `json:"indexer"`
	Title   string `json:"title"`
	GUID    string `json:"guid"`
	Link    string `json:"link"`
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
}

// TorrentAdded announces that the processor stored a new torrent for a
// title, so any resolver blocked waiting on it can stop waiting and re-read.
type TorrentAdded struct {
	ImdbID  string `json:"imdb_id"`
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
}

// Bus publishes and subscribes to the topics above over Redis pub/sub.
type Bus struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

func (b *Bus) publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, topic, data).Err()
}

func (b *Bus) PublishSearchRequest(ctx context.Context, req SearchRequest) error {
	return b.publish(ctx, TopicSearchRequest, req)
}

func (b *Bus) PublishTorrentSearchResult(ctx context.Context, res TorrentSearchResult) error {
	return b.publish(ctx, TopicTorrentSearchResult, res)
}

func (b *Bus) PublishTorrentAdded(ctx context.Context, added TorrentAdded) error {
	return b.publish(ctx, TopicTorrentAdded, added)
}

// Consumer is a named subscriber with a bounded in-process queue: when a
// slow consumer's queue is full, newly arriving messages are dropped rather
// than stalling Redis's delivery loop for every other subscriber.
type Consumer[T any] struct {
	Name string
	Ch   <-chan T
	sub  *redis.PubSub
}

// Close unsubscribes. Safe to call once.
func (c *Consumer[T]) Close() error {
	return c.sub.Close()
}

// Subscribe opens a named consumer on topic, decoding each message into T.
// queueDepth bounds the in-process channel; when full, new messages are
// dropped rather than blocking the Redis receive loop.
func Subscribe[T any](ctx context.Context, b *Bus, topic string, queueDepth int) *Consumer[T] {
	name := "consumer-" + uuid.NewString()
	sub := b.rdb.Subscribe(ctx, topic)
	out := make(chan T, queueDepth)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var payload T
				if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
					log.Errorf("bus: consumer %s dropped malformed message on %s: %v", name, topic, err)
					continue
				}
				select {
				case out <- payload:
				default:
					log.Warnf("bus: consumer %s queue full on %s, dropping message", name, topic)
				}
			}
		}
	}()

	return &Consumer[T]{Name: name, Ch: out, sub: sub}
}
