// Package events publishes library activity (registrations, additions,
// checkouts, checkins) for consumers outside the server.
package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"catlibrary/pkg/domain"
)

// Publisher delivers library events.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, domain.Event) error { return nil }

type RedisStreamConfig struct {
	Addr     string
	Password string
	Stream   string
	MaxLen   int64
}

// RedisStreamPublisher appends events to a capped Redis stream.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(cfg RedisStreamConfig) (*RedisStreamPublisher, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("events stream required")
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisStreamPublisher{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream: stream,
		maxLen: maxLen,
	}, nil
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, event domain.Event) error {
	if event.Kind == "" {
		return errors.New("event kind required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	values := map[string]any{
		"kind":       string(event.Kind),
		"guest":      event.Guest,
		"created_at": event.CreatedAt.Format(time.RFC3339Nano),
	}
	if event.Nick != "" {
		values["nick"] = event.Nick
	}
	if event.Kind != domain.EventGuestRegistered {
		values["book_id"] = strconv.Itoa(int(event.BookID))
	}
	if event.Title != "" {
		values["title"] = event.Title
	}
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Kind, err)
	}
	return nil
}

// Recent returns up to count events, newest first.
func (p *RedisStreamPublisher) Recent(ctx context.Context, count int64) ([]domain.Event, error) {
	msgs, err := p.client.XRevRangeN(ctx, p.stream, "+", "-", count).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Event, 0, len(msgs))
	for _, msg := range msgs {
		event, err := decodeEvent(msg.Values)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", msg.ID, err)
		}
		out = append(out, event)
	}
	return out, nil
}

// Close releases the Redis connection pool.
func (p *RedisStreamPublisher) Close() error {
	return p.client.Close()
}

func decodeEvent(values map[string]any) (domain.Event, error) {
	str := func(key string) string {
		v, _ := values[key].(string)
		return v
	}
	event := domain.Event{
		Kind:  domain.EventKind(str("kind")),
		Guest: str("guest"),
		Nick:  str("nick"),
		Title: str("title"),
	}
	if event.Kind == "" {
		return domain.Event{}, errors.New("missing kind")
	}
	if raw := str("book_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Event{}, fmt.Errorf("book_id: %w", err)
		}
		event.BookID = domain.BookID(id)
	}
	if raw := str("created_at"); raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.Event{}, fmt.Errorf("created_at: %w", err)
		}
		event.CreatedAt = at
	}
	return event, nil
}
