package imagecache

import (
	"context"
	"image"
	"image/draw"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maxsupermanhd/regionmap/primitives"
	"go.uber.org/zap"
)

// MaxScale is the largest zoom out level tiles are kept for
const MaxScale = 6

const (
	DefaultAutosaveInterval = 15 * time.Second
	DefaultUnloadAfter      = 5 * time.Minute
)

type Config struct {
	// Root is the directory png files are kept in, empty disables persistence
	Root             string
	AutosaveInterval time.Duration
	// saved images not used for this long are dropped from memory
	UnloadAfter time.Duration
}

type CachedImage struct {
	Img          *image.RGBA
	Loc          primitives.ImageLocation
	SyncedToDisk bool
	ModTime      time.Time
	lastUse      time.Time
}

type Stats struct {
	Root     string
	Cached   int
	Unsaved  int
	Hits     int64
	Misses   int64
	Evicted  int64
	Failures int64
}

type ImageCache struct {
	logger      *zap.Logger
	cfg         Config
	lock        sync.Mutex
	cache       map[primitives.ImageLocation]*CachedImage
	statHits    atomic.Int64
	statMisses  atomic.Int64
	statEvicted atomic.Int64
	statFailed  atomic.Int64
}

func NewImageCache(logger *zap.Logger, cfg Config) *ImageCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AutosaveInterval <= 0 {
		logger.Debug("autosave interval defaulted", zap.Duration("interval", DefaultAutosaveInterval))
		cfg.AutosaveInterval = DefaultAutosaveInterval
	}
	if cfg.UnloadAfter <= 0 {
		cfg.UnloadAfter = DefaultUnloadAfter
	}
	return &ImageCache{
		logger: logger,
		cfg:    cfg,
		cache:  map[primitives.ImageLocation]*CachedImage{},
	}
}

// Run saves dirty images every autosave interval and unloads stale ones
// until ctx is done, then saves one last time
func (c *ImageCache) Run(ctx context.Context) {
	autosaveTimer := time.NewTicker(c.cfg.AutosaveInterval)
	defer autosaveTimer.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := c.Save(); err != nil {
				c.logger.Error("final cache save failed", zap.Error(err))
			}
			return
		case <-autosaveTimer.C:
			if err := c.Save(); err != nil {
				c.logger.Warn("cache autosave failed", zap.Error(err))
			}
			c.unloadStale(time.Now())
		}
	}
}

// Get returns a copy of the image at loc from memory or disk.
// Image is nil when nothing is cached.
func (c *ImageCache) Get(loc primitives.ImageLocation) (*CachedImage, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	l, ok := c.cache[loc]
	if ok {
		c.statHits.Add(1)
		l.lastUse = time.Now()
		return copyCachedImage(l), nil
	}
	c.statMisses.Add(1)
	if c.cfg.Root == "" {
		return &CachedImage{Loc: loc}, nil
	}
	l, err := c.cacheLoad(loc)
	if err != nil {
		c.statFailed.Add(1)
		return nil, err
	}
	if l.Img != nil {
		c.logger.Debug("image loaded from disk", zap.Stringer("loc", loc))
		c.cache[loc] = l
	}
	return copyCachedImage(l), nil
}

// Set stores a copy of img, it is written to disk on next save
func (c *ImageCache) Set(loc primitives.ImageLocation, img *image.RGBA) {
	now := time.Now()
	c.lock.Lock()
	defer c.lock.Unlock()
	c.cache[loc] = &CachedImage{
		Img:     copyRGBA(img),
		Loc:     loc,
		ModTime: now,
		lastUse: now,
	}
}

// Invalidate drops every variant and zoom level covering region x:z of
// dim from memory and disk. Returns number of dropped images.
func (c *ImageCache) Invalidate(dim string, x, z int) int {
	c.lock.Lock()
	defer c.lock.Unlock()
	n := 0
	for loc := range c.cache {
		if loc.Dimension == dim && loc.X == x>>loc.S && loc.Z == z>>loc.S {
			delete(c.cache, loc)
			n++
		}
	}
	if c.cfg.Root != "" {
		n += c.removeFiles(dim, x, z)
	}
	c.logger.Debug("invalidated region", zap.String("dim", dim), zap.Int("x", x), zap.Int("z", z), zap.Int("images", n))
	return n
}

func (c *ImageCache) unloadStale(now time.Time) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for loc, v := range c.cache {
		if v.SyncedToDisk && now.Sub(v.lastUse) > c.cfg.UnloadAfter {
			delete(c.cache, loc)
			c.statEvicted.Add(1)
		}
	}
}

func (c *ImageCache) Stats() Stats {
	c.lock.Lock()
	defer c.lock.Unlock()
	unsaved := 0
	for _, v := range c.cache {
		if !v.SyncedToDisk {
			unsaved++
		}
	}
	return Stats{
		Root:     c.cfg.Root,
		Cached:   len(c.cache),
		Unsaved:  unsaved,
		Hits:     c.statHits.Load(),
		Misses:   c.statMisses.Load(),
		Evicted:  c.statEvicted.Load(),
		Failures: c.statFailed.Load(),
	}
}

func copyCachedImage(img *CachedImage) *CachedImage {
	return &CachedImage{
		Img:          copyRGBA(img.Img),
		Loc:          img.Loc,
		SyncedToDisk: img.SyncedToDisk,
		ModTime:      img.ModTime,
		lastUse:      img.lastUse,
	}
}

func copyRGBA(from *image.RGBA) *image.RGBA {
	if from == nil {
		return nil
	}
	dx := from.Rect.Dx()
	dy := from.Rect.Dy()
	to := image.NewRGBA(image.Rect(0, 0, dx, dy))
	draw.DrawMask(to, to.Rect, from, from.Rect.Min, nil, image.Point{}, draw.Src)
	return to
}
