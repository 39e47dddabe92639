package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sam/internal/config"
)

const userAgent = "SAM-Go/2.4"

// Event names a notification type.
type Event string

const (
	EventLateArrival   Event = "late_arrival"
	EventNewDay        Event = "new_day"
	EventReportUpdated Event = "report_updated"
	EventError         Event = "error"
	EventTest          Event = "test"
)

// Payload carries event fields; keys are event specific.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventLateArrival:   cfg.Notifications.LateArrivals,
			EventNewDay:        cfg.Notifications.NewDay,
			EventReportUpdated: cfg.Notifications.Reports,
			EventError:         cfg.Notifications.Errors,
			EventTest:          true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, p Payload) (message, bool) {
	switch event {
	case EventLateArrival:
		body := fmt.Sprintf("⏰ Late arrival: %s at %s", p.str("name"), p.str("time"))
		if cutoff := p.str("cutoff"); cutoff != "" {
			body += fmt.Sprintf(" (cutoff %s)", cutoff)
		}
		return message{
			title: "SAM - Late Arrival",
			body:  body,
			tags:  []string{"sam", "attendance", "late"},
		}, true
	case EventNewDay:
		body := fmt.Sprintf("📅 New school day: %s", p.str("date"))
		if prev := p.str("previous_count"); prev != "" {
			body += fmt.Sprintf("\nPrevious day: %s scans", prev)
		}
		return message{
			title: "SAM - New Day",
			body:  body,
			tags:  []string{"sam", "day", "rollover"},
		}, true
	case EventReportUpdated:
		return message{
			title: "SAM - Report Updated",
			body:  fmt.Sprintf("📊 Report updated: %s cells, %s late markers", p.str("changed"), p.str("late_marked")),
			tags:  []string{"sam", "report", "updated"},
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := p.str("context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if errText := p.str("error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "SAM - Error",
			body:     b.String(),
			tags:     []string{"sam", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "SAM - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"sam", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (p Payload) str(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case error:
		return strings.TrimSpace(val.Error())
	default:
		return fmt.Sprint(val)
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
