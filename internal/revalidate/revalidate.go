// Package revalidate tells the presentation layer which cached pages are
// stale after a post changes. Delivery is fire-and-forget: failures are
// logged and never reach the caller.
package revalidate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Paths the presentation layer caches.
const (
	HomePath       = "/"
	CategoriesPath = "/categories"
)

func PostPath(slug string) string { return "/posts/" + slug }
func CategoryPath(slug string) string { return "/categories/" + slug }

// SecretHeader carries the shared secret on webhook calls.
const SecretHeader = "X-Revalidate-Secret"

// Notifier receives the set of stale paths. Implementations must not block
// the caller on network I/O.
type Notifier interface {
	Revalidate(ctx context.Context, paths ...string)
}

// LogNotifier only records the paths. Used when no webhook is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Revalidate(ctx context.Context, paths ...string) {
	if len(paths) == 0 {
		return
	}
	n.logger.InfoContext(ctx, "revalidate", slog.Any("paths", Dedupe(paths)))
}

// WebhookNotifier POSTs {"paths": [...]} to a URL on a background goroutine.
//
// WHY ASYNCHRONOUS?
// Revalidation is a side effect of a write, not part of it. The post is
// already committed when Revalidate is called, and a slow or unreachable
// frontend must not turn a successful PATCH into a timeout. Each call
// therefore starts its own goroutine and returns at once:
//
//	handler ──► service.Update ──► store ──► Revalidate ──► 200 OK
//	                                              └──► goroutine: POST webhook
//
// The sync.WaitGroup tracks goroutines still sending so that shutdown (and
// tests) can call Wait before the process exits.
type WebhookNotifier struct {
	url     string
	secret  string
	client  *http.Client
	logger  *slog.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

func NewWebhookNotifier(url, secret string, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:     url,
		secret:  secret,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

type payload struct {
	Paths []string `json:"paths"`
}

// Revalidate returns immediately. The request outlives ctx's cancellation
// (the originating HTTP request is usually done by then) but keeps its values.
func (n *WebhookNotifier) Revalidate(ctx context.Context, paths ...string) {
	if len(paths) == 0 {
		return
	}
	paths = Dedupe(paths)
	ctx = context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.send(ctx, paths); err != nil {
			n.logger.WarnContext(ctx, "revalidation webhook failed",
				slog.Any("paths", paths),
				slog.String("error", err.Error()),
			)
			return
		}
		n.logger.DebugContext(ctx, "revalidation sent", slog.Any("paths", paths))
	}()
}

// Wait blocks until in-flight notifications finish. Called on shutdown.
func (n *WebhookNotifier) Wait() {
	n.wg.Wait()
}

func (n *WebhookNotifier) send(ctx context.Context, paths []string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	body, err := json.Marshal(payload{Paths: paths})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set(SecretHeader, n.secret)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("revalidate: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Dedupe returns paths sorted with duplicates removed.
func Dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
