package mapview

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"log/slog"
	"math"
	"slices"

	"golang.org/x/image/vector"
	"golang.org/x/sync/errgroup"
)

// Icon names referenced by layer styles.
const (
	IconCamera = "camera-icon"
	IconPump   = "pump-icon"
	IconHazard = "hazard-icon"
	IconCross  = "cross-icon"
)

// IconSpec declares an icon to fetch and register.
type IconSpec struct {
	Name string
	File string
	SDF  bool
}

// DefaultIcons are the file-backed icons every map uses.
var DefaultIcons = []IconSpec{
	{Name: IconCamera, File: "camera.png", SDF: true},
	{Name: IconPump, File: "pump.png", SDF: true},
	{Name: IconHazard, File: "danger.png", SDF: false},
}

// IconLoader fetches and decodes an icon file.
type IconLoader interface {
	LoadIcon(ctx context.Context, file string) (image.Image, error)
}

// FSIconLoader decodes PNG icons from a filesystem.
type FSIconLoader struct {
	FS fs.FS
}

// LoadIcon implements IconLoader.
func (l FSIconLoader) LoadIcon(ctx context.Context, file string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.FS == nil {
		return nil, fmt.Errorf("no icon filesystem")
	}
	f, err := l.FS.Open(file)
	if err != nil {
		return nil, fmt.Errorf("opening icon %s: %w", file, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding icon %s: %w", file, err)
	}
	return img, nil
}

// emptyIcon stands in for an icon that failed to load.
func emptyIcon() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 1, 1))
}

// LoadIcons fetches every icon concurrently, then registers them on the
// surface in declaration order followed by the generated cross glyph. An
// icon that cannot be loaded is registered as an empty image. Icons already
// on the surface are skipped, so a call that failed halfway can be retried.
// It returns only once every icon is registered.
func LoadIcons(ctx context.Context, s Surface, loader IconLoader, specs []IconSpec, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	specs = slices.DeleteFunc(slices.Clone(specs), func(spec IconSpec) bool { return s.HasImage(spec.Name) })
	images := make([]image.Image, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			var img image.Image
			var err error
			if loader != nil {
				img, err = loader.LoadIcon(gctx, spec.File)
			} else {
				err = fmt.Errorf("no icon loader")
			}
			if err != nil {
				logger.Error("Icon load failed, using empty image", "icon", spec.Name, "error", err)
				img = emptyIcon()
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, spec := range specs {
		if err := s.AddImage(spec.Name, images[i], ImageOptions{SDF: spec.SDF}); err != nil {
			return fmt.Errorf("registering icon %s: %w", spec.Name, err)
		}
	}
	if s.HasImage(IconCross) {
		return nil
	}
	if err := s.AddImage(IconCross, CrossIcon(), ImageOptions{SDF: true}); err != nil {
		return fmt.Errorf("registering icon %s: %w", IconCross, err)
	}
	return nil
}

// CrossIcon draws the 8x8 "X" glyph repeated along postponed sections.
func CrossIcon() image.Image {
	const size = 8
	const stroke = 3

	r := vector.NewRasterizer(size, size)
	strokeSegment(r, 0, 0, size, size, stroke)
	strokeSegment(r, 0, size, size, 0, stroke)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	r.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{})
	return dst
}

// strokeSegment adds a segment of the given width to r as a quad.
func strokeSegment(r *vector.Rasterizer, x0, y0, x1, y1, width float32) {
	dx, dy := x1-x0, y1-y0
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return
	}
	nx, ny := -dy/length*width/2, dx/length*width/2

	r.MoveTo(x0+nx, y0+ny)
	r.LineTo(x1+nx, y1+ny)
	r.LineTo(x1-nx, y1-ny)
	r.LineTo(x0-nx, y0-ny)
	r.ClosePath()
}
