package orientation

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"carousel3d/carousel"
)

const (
	// maxImageBytes bounds how much of a remote or local image is read.
	maxImageBytes = 32 << 20

	defaultConcurrency = 4
)

// Resolver determines item orientations from their images.
type Resolver struct {
	Cache  Cache
	Logger *slog.Logger
	Client *http.Client

	// BaseDir anchors relative image paths. Empty means the working directory.
	BaseDir string

	// Concurrency bounds parallel image reads in ResolveAll.
	Concurrency int
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

func (r *Resolver) client() *http.Client {
	if r.Client == nil {
		return &http.Client{Timeout: 10 * time.Second}
	}
	return r.Client
}

// Resolve returns the orientation for item. An explicit hint wins; items
// without an image are square. Images that cannot be read resolve to square
// and that result is cached too, so a broken reference is only tried once.
// The only errors returned are context errors.
func (r *Resolver) Resolve(ctx context.Context, item carousel.Item) (carousel.Orientation, error) {
	if item.Orientation.Valid() {
		return item.Orientation, nil
	}
	if item.Image == "" {
		return carousel.Square, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	log := r.logger().With("item", item.ID, "image", item.Image)

	if r.Cache != nil {
		e, ok, err := r.Cache.Get(ctx, item.Image)
		if err != nil {
			log.Warn("orientation cache lookup failed", "error", err)
		} else if ok {
			return e.Orientation, nil
		}
	}

	e := Entry{Orientation: carousel.Square, UpdatedAt: time.Now()}
	w, h, err := r.measure(ctx, item.Image)
	switch {
	case ctx.Err() != nil:
		return "", ctx.Err()
	case err != nil:
		log.Warn("could not read image, using square", "error", err)
	default:
		e.Width, e.Height = w, h
		e.Orientation = carousel.ClassifyAspectRatio(float64(w) / float64(h))
		log.Debug("image orientation resolved",
			"width", w,
			"height", h,
			"orientation", e.Orientation)
	}

	if r.Cache != nil {
		if err := r.Cache.Set(ctx, item.Image, e); err != nil {
			log.Warn("orientation cache store failed", "error", err)
		}
	}
	return e.Orientation, nil
}

// ResolveAll resolves every item concurrently and returns the results keyed
// by item ID.
func (r *Resolver) ResolveAll(ctx context.Context, items []carousel.Item) (carousel.OrientationMap, error) {
	out := make(carousel.OrientationMap, len(items))
	var mu sync.Mutex

	limit := r.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, it := range items {
		g.Go(func() error {
			o, err := r.Resolve(gctx, it)
			if err != nil {
				return err
			}
			mu.Lock()
			out[it.ID] = o
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve orientations: %w", err)
	}
	return out, nil
}

// measure returns the displayed pixel size of the image at ref. JPEGs are
// decoded with EXIF orientation applied so rotated camera photos report the
// size they are shown at.
func (r *Resolver) measure(ctx context.Context, ref string) (int, int, error) {
	data, err := r.read(ctx, ref)
	if err != nil {
		return 0, 0, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode header: %w", err)
	}

	w, h := cfg.Width, cfg.Height
	if format == "jpeg" {
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			return 0, 0, fmt.Errorf("decode jpeg: %w", err)
		}
		b := img.Bounds()
		w, h = b.Dx(), b.Dy()
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("degenerate image size %dx%d", w, h)
	}
	return w, h, nil
}

func (r *Resolver) read(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return r.fetch(ctx, ref)
	}

	path := ref
	if !filepath.IsAbs(path) && r.BaseDir != "" {
		path = filepath.Join(r.BaseDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxImageBytes))
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
}
