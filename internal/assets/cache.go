// ABOUTME: Decoded voiceover buffer cache
// ABOUTME: Fetches and decodes remote audio assets in parallel, memoized by slide
package assets

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/slidecast/slidecast-go/internal/audio"
	"github.com/slidecast/slidecast-go/internal/timeline"
	"golang.org/x/sync/errgroup"
)

// Cache holds decoded PCM buffers keyed by slide ID. Buffers are decoded
// once, converted to the engine's device format, and kept for the life of
// the editing session; there is no eviction. One cache is shared by every
// controller in the process.
type Cache struct {
	target audio.Format
	client *http.Client

	mu      sync.RWMutex
	buffers map[string]*audio.Buffer
}

// NewCache creates a cache that converts decoded assets to target.
func NewCache(target audio.Format) *Cache {
	return &Cache{
		target:  target,
		client:  &http.Client{},
		buffers: make(map[string]*audio.Buffer),
	}
}

// Get returns the decoded buffer for a slide. The second return is false
// when the slide has no audio, has not been ensured yet, or failed to
// decode; all three mean the same thing to playback: silence.
func (c *Cache) Get(slideID string) (*audio.Buffer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	buf, ok := c.buffers[slideID]
	return buf, ok
}

// Put stores an already-decoded buffer for a slide, converting it to the
// device format. Locally produced narration enters the cache this way
// without crossing HTTP.
func (c *Cache) Put(slideID string, buf *audio.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffers[slideID] = audio.Convert(buf, c.target)
}

// Len returns the number of cached buffers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.buffers)
}

// Ensure fetches and decodes every clip not already cached, in parallel.
// It resolves once all attempts have settled. A per-clip failure is logged
// and that slide stays silent; it does not abort the other fetches or fail
// the aggregate. Only context cancellation returns an error.
func (c *Cache) Ensure(ctx context.Context, clips []timeline.Clip) error {
	// The derived context is canceled as soon as Wait returns, so only the
	// caller's context may decide whether the aggregate failed.
	g, gctx := errgroup.WithContext(ctx)

	seen := make(map[string]bool)
	for _, clip := range clips {
		if clip.URL == "" || seen[clip.SlideID] {
			continue
		}
		seen[clip.SlideID] = true

		if _, ok := c.Get(clip.SlideID); ok {
			continue
		}

		clip := clip
		g.Go(func() error {
			buf, err := c.fetchAndDecode(gctx, clip.URL)
			if err != nil {
				// Slide degrades to silence, never to a user-visible error
				log.Printf("Audio asset failed for slide %s: %v", clip.SlideID, err)
				return nil
			}

			c.mu.Lock()
			c.buffers[clip.SlideID] = buf
			c.mu.Unlock()

			log.Printf("Audio asset cached: slide=%s frames=%d", clip.SlideID, buf.Frames())
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// fetchAndDecode downloads one asset and decodes it to the device format.
func (c *Cache) fetchAndDecode(ctx context.Context, url string) (*audio.Buffer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bad asset url: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset fetch failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset body: %w", err)
	}

	buf, err := audio.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode asset: %w", err)
	}

	return audio.Convert(buf, c.target), nil
}
