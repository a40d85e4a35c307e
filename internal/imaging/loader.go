package imaging

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// DefaultCacheFrames is the number of decoded frames a FrameCache keeps when
// no limit is given.
const DefaultCacheFrames = 16

// Open decodes a frame from disk. EXIF orientation is applied so that
// phone and broadcast stills arrive upright before any line geometry is
// computed on them.
func Open(path string) (image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

type cachedFrame struct {
	img     image.Image
	modTime time.Time
	size    int64
}

// FrameCache keeps recently decoded frames for the tool server so that a
// client calling extract, calibrate and overlay on the same still decodes it
// once.
//
// Entries are keyed by absolute path. A frame whose file changed on disk
// (modification time or size) is decoded again, which matters for grabbers
// that overwrite a fixed "latest.jpg". Once the limit is reached the oldest
// entry is dropped.
type FrameCache struct {
	mu     sync.Mutex
	limit  int
	frames map[string]*cachedFrame
	order  []string
}

// NewFrameCache returns an empty cache holding at most limit frames.
// A limit <= 0 selects DefaultCacheFrames.
func NewFrameCache(limit int) *FrameCache {
	if limit <= 0 {
		limit = DefaultCacheFrames
	}
	return &FrameCache{
		limit:  limit,
		frames: make(map[string]*cachedFrame),
	}
}

// Load returns the decoded frame for path, reading it from disk when it is
// not cached or is stale.
func (c *FrameCache) Load(path string) (image.Image, error) {
	img, _, err := c.load(path)
	return img, err
}

func (c *FrameCache) load(path string) (image.Image, bool, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open image: %w", err)
	}
	stat, err := os.Stat(key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open image: %w", err)
	}

	c.mu.Lock()
	if f, ok := c.frames[key]; ok && f.modTime.Equal(stat.ModTime()) && f.size == stat.Size() {
		c.mu.Unlock()
		return f.img, true, nil
	}
	c.mu.Unlock()

	img, err := Open(key)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.frames[key]; !ok {
		c.order = append(c.order, key)
	}
	c.frames[key] = &cachedFrame{img: img, modTime: stat.ModTime(), size: stat.Size()}
	for len(c.order) > c.limit {
		delete(c.frames, c.order[0])
		c.order = c.order[1:]
	}
	return img, false, nil
}

// Evict drops path from the cache. Unknown paths are ignored.
func (c *FrameCache) Evict(path string) {
	key, err := filepath.Abs(path)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.frames[key]; !ok {
		return
	}
	delete(c.frames, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of cached frames.
func (c *FrameCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// FrameInfo describes a frame as returned by the court_load_image tool.
type FrameInfo struct {
	Path          string `json:"path"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	Cached        bool   `json:"cached"`
}

// Describe loads path through the cache and reports its size and format.
// Format follows the file extension ("jpeg", "png", ...) and is "unknown"
// for extensions the decoder does not name; the payload itself is sniffed.
func Describe(c *FrameCache, path string) (*FrameInfo, error) {
	img, cached, err := c.load(path)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	if f, err := imaging.FormatFromFilename(path); err == nil {
		format = strings.ToLower(f.String())
	}

	b := img.Bounds()
	return &FrameInfo{
		Path:          path,
		Width:         b.Dx(),
		Height:        b.Dy(),
		Format:        format,
		FileSizeBytes: stat.Size(),
		Cached:        cached,
	}, nil
}
