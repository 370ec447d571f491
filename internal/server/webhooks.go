package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"skytrack/internal/config"
	"skytrack/internal/domain"
	"skytrack/internal/engine"
	"skytrack/internal/logger"
	"skytrack/internal/repo"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// WebhookDispatcher polls the event log and POSTs new events to the
// configured hooks. Each hook keeps its own cursor; a failed delivery
// stops that hook's batch and is retried on the next tick.
type WebhookDispatcher struct {
	engine   engine.Engine
	hooks    []config.Webhook
	client   *http.Client
	log      logger.Logger
	interval time.Duration

	mu      sync.Mutex
	cursors map[int]int64
}

// NewWebhookDispatcher returns nil when no hook is enabled.
func NewWebhookDispatcher(e engine.Engine, hooks []config.Webhook, log logger.Logger) *WebhookDispatcher {
	var active []config.Webhook
	for _, h := range hooks {
		if h.IsEnabled() && strings.TrimSpace(h.URL) != "" {
			active = append(active, h)
		}
	}
	if len(active) == 0 {
		return nil
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &WebhookDispatcher{
		engine:   e,
		hooks:    active,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		log:      log.With("component", "webhooks"),
		interval: defaultWebhookInterval,
		cursors:  make(map[int]int64),
	}
}

// Run dispatches until ctx is cancelled. Cursors start at the newest event
// so only events recorded after startup are delivered.
func (d *WebhookDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		d.DispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *WebhookDispatcher) DispatchAll(ctx context.Context) {
	for i, hook := range d.hooks {
		if ctx.Err() != nil {
			return
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

func (d *WebhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.Webhook) {
	cursor, err := d.cursorFor(ctx, idx)
	if err != nil {
		d.log.Warn("webhook cursor init failed", "url", hook.URL, "error", err)
		return
	}
	events, err := d.engine.ListEvents(ctx, repo.EventFilter{AfterID: cursor, Limit: defaultWebhookBatch})
	if err != nil {
		d.log.Warn("webhook fetch events failed", "error", err)
		return
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range events {
		if !filter.match(evt.Type) {
			d.setCursor(idx, evt.ID)
			continue
		}
		if err := d.postEvent(ctx, hook, evt); err != nil {
			d.log.Warn("webhook delivery failed", "url", hook.URL, "event_id", evt.ID, "error", err)
			return
		}
		d.log.Debug("webhook delivered", "url", hook.URL, "event_id", evt.ID, "type", evt.Type)
		d.setCursor(idx, evt.ID)
	}
}

func (d *WebhookDispatcher) cursorFor(ctx context.Context, idx int) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur, nil
	}
	latest, err := d.engine.ListEvents(ctx, repo.EventFilter{Limit: 1})
	if err != nil {
		return 0, err
	}
	var cur int64
	if len(latest) > 0 {
		cur = latest[0].ID
	}
	d.cursors[idx] = cur
	return cur, nil
}

func (d *WebhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   int64           `json:"entity_id"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

func (d *WebhookDispatcher) postEvent(ctx context.Context, hook config.Webhook, evt domain.Event) error {
	payload := json.RawMessage("{}")
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	data, err := json.Marshal(webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	client := d.client
	if hook.Timeout > 0 && hook.Timeout != d.client.Timeout {
		client = &http.Client{Timeout: hook.Timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Skytrack-Event", evt.Type)
	req.Header.Set("X-Skytrack-Delivery", fmt.Sprintf("%d", evt.ID))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Skytrack-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// eventFilter matches exact types and prefix patterns ending in ".*".
type eventFilter struct {
	all      bool
	exact    map[string]struct{}
	prefixes []string
}

func newEventFilter(events []string) eventFilter {
	f := eventFilter{exact: map[string]struct{}{}}
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		switch {
		case key == "":
		case key == "*":
			return eventFilter{all: true}
		case strings.HasSuffix(key, ".*"):
			f.prefixes = append(f.prefixes, strings.TrimSuffix(key, "*"))
		default:
			f.exact[key] = struct{}{}
		}
	}
	if len(f.exact) == 0 && len(f.prefixes) == 0 {
		f.all = true
	}
	return f
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	if _, ok := f.exact[evt]; ok {
		return true
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(evt, p) {
			return true
		}
	}
	return false
}
