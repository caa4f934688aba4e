// Package memory keeps run notifications in process for tests and local wiring.
package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/JakeFAU/webcrawler/internal/crawler"
)

// Message is one recorded Publish call.
type Message struct {
	ID      string
	Topic   string
	Payload any
}

// Publisher records every publish in order. It is safe for concurrent use.
type Publisher struct {
	mu       sync.RWMutex
	messages []Message
}

var _ crawler.Publisher = (*Publisher)(nil)

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records payload under topic. IDs count up from "1".
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := strconv.Itoa(len(p.messages) + 1)
	p.messages = append(p.messages, Message{ID: id, Topic: topic, Payload: payload})
	return id, nil
}

// Messages returns a copy of everything published.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Message(nil), p.messages...)
}

// Topic returns the payloads published to topic, oldest first.
func (p *Publisher) Topic(topic string) []any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []any
	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m.Payload)
		}
	}
	return out
}

// Completions returns the run notifications published to topic, skipping
// payloads of any other type.
func (p *Publisher) Completions(topic string) []crawler.RunCompleted {
	var out []crawler.RunCompleted
	for _, payload := range p.Topic(topic) {
		switch msg := payload.(type) {
		case crawler.RunCompleted:
			out = append(out, msg)
		case *crawler.RunCompleted:
			out = append(out, *msg)
		}
	}
	return out
}
