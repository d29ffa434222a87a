// Package redisstream publishes gateway events to a Redis stream so an
// external consumer (dashboard, alerting, archive) can tail the gateway's
// activity without the gateway holding any of that state itself.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/masumi-network/masumi-gateway/observe"
)

const (
	defaultStream = "masumi:gateway:events"
	defaultMaxLen = 10000
)

type Sink struct {
	client   *goredis.Client
	addr     string
	password string
	db       int
	stream   string
	maxLen   int64
}

type Option func(*Sink)

func WithClient(client *goredis.Client) Option {
	return func(s *Sink) {
		if client != nil {
			s.client = client
		}
	}
}

func WithStream(stream string) Option {
	return func(s *Sink) {
		stream = strings.TrimSpace(stream)
		if stream != "" {
			s.stream = stream
		}
	}
}

func WithPassword(password string) Option {
	return func(s *Sink) { s.password = password }
}

func WithDB(db int) Option {
	return func(s *Sink) { s.db = db }
}

// WithMaxLen caps the stream length (approximate trimming).
func WithMaxLen(maxLen int64) Option {
	return func(s *Sink) {
		if maxLen > 0 {
			s.maxLen = maxLen
		}
	}
}

func New(addr string, opts ...Option) (*Sink, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	s := &Sink{
		addr:   strings.TrimSpace(addr),
		stream: defaultStream,
		maxLen: defaultMaxLen,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = goredis.NewClient(&goredis.Options{Addr: s.addr, Password: s.password, DB: s.db})
	}
	if err := s.client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", s.addr, err)
	}
	return s, nil
}

func (s *Sink) Emit(ctx context.Context, event observe.Event) error {
	if s == nil || s.client == nil {
		return nil
	}
	event.Normalize()
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway event: %w", err)
	}
	err = s.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{"payload": string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish gateway event: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
