package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jsarmiento/plata/internal/service"
)

// fileProvider serves exported SMS dumps to the sync layer. The dump is a
// JSON array of {sender, body, receivedAt} objects, which is what the
// companion exporter app produces. Permissions are always granted: reading
// a local file needs none.
type fileProvider struct {
	messages []service.RawMessage
	stream   chan service.RawMessage
}

type dumpMessage struct {
	Sender     string    `json:"sender"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"receivedAt"`
}

func newFileProvider(path string) (*fileProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var dump []dumpMessage
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("parse sms dump %s: %w", path, err)
	}
	p := &fileProvider{stream: make(chan service.RawMessage)}
	close(p.stream)
	for _, m := range dump {
		p.messages = append(p.messages, service.RawMessage{
			Sender:     m.Sender,
			Body:       m.Body,
			ReceivedAt: m.ReceivedAt,
		})
	}
	// newest first, matching how a device query returns history
	sort.Slice(p.messages, func(i, j int) bool {
		return p.messages[i].ReceivedAt.After(p.messages[j].ReceivedAt)
	})
	return p, nil
}

func (p *fileProvider) CheckPermission(ctx context.Context) (service.PermissionState, error) {
	return service.PermissionGranted, nil
}

func (p *fileProvider) RequestPermission(ctx context.Context) (service.PermissionState, error) {
	return service.PermissionGranted, nil
}

func (p *fileProvider) Messages() <-chan service.RawMessage {
	return p.stream
}

func (p *fileProvider) Query(ctx context.Context, before time.Time, limit int) ([]service.RawMessage, error) {
	var out []service.RawMessage
	for _, m := range p.messages {
		if !before.IsZero() && !m.ReceivedAt.Before(before) {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// noProvider backs commands that never touch the SMS paths.
type noProvider struct{}

func (noProvider) CheckPermission(ctx context.Context) (service.PermissionState, error) {
	return service.PermissionDenied, nil
}

func (noProvider) RequestPermission(ctx context.Context) (service.PermissionState, error) {
	return service.PermissionDenied, nil
}

func (noProvider) Messages() <-chan service.RawMessage { return nil }

func (noProvider) Query(ctx context.Context, before time.Time, limit int) ([]service.RawMessage, error) {
	return nil, nil
}
