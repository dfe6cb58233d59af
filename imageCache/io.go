package imagecache

import (
	"errors"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/maxsupermanhd/regionmap/primitives"
	"go.uber.org/zap"
)

// Save writes every image not yet on disk, c.lock must not be held
func (c *ImageCache) Save() error {
	if c.cfg.Root == "" {
		return nil
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	var ret *multierror.Error
	saved := 0
	for k, v := range c.cache {
		if v.SyncedToDisk {
			continue
		}
		err := c.cacheSave(v.Img, k)
		if err != nil {
			c.statFailed.Add(1)
			c.logger.Warn("failed to save cached image", zap.Stringer("loc", k), zap.String("path", c.cacheGetFilenameLoc(k)), zap.Error(err))
			ret = multierror.Append(ret, err)
			continue
		}
		v.SyncedToDisk = true
		saved++
	}
	if saved > 0 {
		c.logger.Debug("cache saved", zap.Int("images", saved))
	}
	return ret.ErrorOrNil()
}

func (c *ImageCache) cacheGetFilename(dim, variant string, s, x, z int) string {
	return path.Join(c.cfg.Root, dim, variant, strconv.FormatInt(int64(s), 10), strconv.FormatInt(int64(x), 10)+"x"+strconv.FormatInt(int64(z), 10)+".png")
}

func (c *ImageCache) cacheGetFilenameLoc(loc primitives.ImageLocation) string {
	return c.cacheGetFilename(loc.Dimension, loc.Variant, loc.S, loc.X, loc.Z)
}

func (c *ImageCache) cacheSave(img *image.RGBA, loc primitives.ImageLocation) error {
	storePath := c.cacheGetFilenameLoc(loc)
	err := os.MkdirAll(path.Dir(storePath), 0764)
	if err != nil {
		return err
	}
	file, err := os.Create(storePath)
	if err != nil {
		return err
	}
	err = png.Encode(file, img)
	if err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// cacheLoad reads an image from disk, missing file is not an error and
// gives a CachedImage with nil Img
func (c *ImageCache) cacheLoad(loc primitives.ImageLocation) (*CachedImage, error) {
	fp := c.cacheGetFilenameLoc(loc)
	f, err := os.Open(fp)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &CachedImage{Loc: loc, SyncedToDisk: true}, nil
		}
		return nil, err
	}
	defer f.Close()
	ii, err := png.Decode(f)
	if err != nil {
		os.Remove(fp)
		return nil, err
	}
	ret := &CachedImage{
		Loc:          loc,
		SyncedToDisk: true,
		ModTime:      c.getModTimeFp(fp),
	}
	if iirgba, ok := ii.(*image.RGBA); ok {
		ret.Img = iirgba
		return ret, nil
	}
	b := ii.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), ii, b.Min, draw.Src)
	ret.Img = dst
	return ret, nil
}

func (c *ImageCache) removeFiles(dim string, x, z int) int {
	n := 0
	for s := 0; s <= MaxScale; s++ {
		pattern := c.cacheGetFilename(dim, "*", s, x>>s, z>>s)
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil {
				c.logger.Warn("failed to remove cached image", zap.String("path", m), zap.Error(err))
				continue
			}
			n++
		}
	}
	return n
}

// ModTime is the time the image at loc was rendered, zero when unknown
func (c *ImageCache) ModTime(loc primitives.ImageLocation) time.Time {
	c.lock.Lock()
	l, ok := c.cache[loc]
	c.lock.Unlock()
	if ok {
		return l.ModTime
	}
	if c.cfg.Root == "" {
		return time.Time{}
	}
	return c.getModTimeFp(c.cacheGetFilenameLoc(loc))
}

func (c *ImageCache) getModTimeFp(fp string) time.Time {
	info, err := os.Stat(fp)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
