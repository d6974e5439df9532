package telemetry

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/reacture/engine/internal/world"
	"github.com/reacture/engine/pkg/core"
)

// FrameSize is the edge length of stored frames.
const FrameSize = 128

// ArenaHalfExtent bounds the ground plane drawn by TopDown.
const ArenaHalfExtent = 50.0

// ErrEmptyImage is returned when a capture has no pixels.
var ErrEmptyImage = errors.New("telemetry: empty image")

// FrameSource renders the current view.
type FrameSource interface {
	Capture() (*image.RGBA, error)
}

// Downsample reduces img to size x size by nearest-neighbour sampling and
// drops the alpha channel.
func Downsample(img *image.RGBA, size int) (core.FrameRecord, error) {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW <= 0 || srcH <= 0 || size <= 0 {
		return core.FrameRecord{}, ErrEmptyImage
	}
	px := make([]byte, 0, size*size*3)
	for y := range size {
		sy := b.Min.Y + y*srcH/size
		for x := range size {
			sx := b.Min.X + x*srcW/size
			i := img.PixOffset(sx, sy)
			px = append(px, img.Pix[i], img.Pix[i+1], img.Pix[i+2])
		}
	}
	return core.FrameRecord{Width: size, Height: size, Pixels: px}, nil
}

// TopDown is a software frame source: an overhead view centred on the robot,
// rotated so the robot's forward direction points up.
type TopDown struct {
	World  *world.World
	Width  int
	Height int
	Scale  float64 // metres per pixel
}

// NewTopDown returns a 256x256 view covering 64 m.
func NewTopDown(w *world.World) *TopDown {
	return &TopDown{World: w, Width: 256, Height: 256, Scale: 0.25}
}

func rgb(hex uint32) color.RGBA {
	return color.RGBA{R: uint8(hex >> 16), G: uint8(hex >> 8), B: uint8(hex), A: 0xff}
}

func blend(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 { return uint8(math.Round(float64(x)*(1-t) + float64(y)*t)) }
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 0xff}
}

var (
	cautionColor = rgb(0xFFD700)
	victimColor  = rgb(0xFF6347)
	deadColor    = rgb(0x555555)
	stationColor = rgb(0x00FF7F)
	robotColor   = rgb(0xFFFFFF)
)

// toWorld maps the centre of pixel (x, y) to the ground plane.
func (t *TopDown) toWorld(rot mgl64.Mat3, x, y int) core.Vec3 {
	local := core.Vec3{
		(float64(x) + 0.5 - float64(t.Width)/2) * t.Scale,
		0,
		(float64(y) + 0.5 - float64(t.Height)/2) * t.Scale,
	}
	return t.World.Robot.Position.Add(rot.Mul3x1(local))
}

// toPixel maps a ground-plane point to pixel coordinates.
func (t *TopDown) toPixel(inv mgl64.Mat3, p core.Vec3) (float64, float64) {
	d := p.Sub(t.World.Robot.Position)
	d[1] = 0
	local := inv.Mul3x1(d)
	return local[0]/t.Scale + float64(t.Width)/2, local[2]/t.Scale + float64(t.Height)/2
}

// Capture draws the ground, hazard zones, rubble, victims, the fuel station
// and the robot.
func (t *TopDown) Capture() (*image.RGBA, error) {
	if t.Width <= 0 || t.Height <= 0 || t.Scale <= 0 {
		return nil, ErrEmptyImage
	}
	w := t.World
	env := w.Env
	img := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: rgb(env.SkyColor)}, image.Point{}, draw.Src)

	rot := mgl64.Rotate3DY(w.Robot.Yaw)
	inv := mgl64.Rotate3DY(-w.Robot.Yaw)
	ground, hazard := rgb(env.GroundColor), rgb(env.HazardColor)

	for y := range t.Height {
		for x := range t.Width {
			p := t.toWorld(rot, x, y)
			if math.Abs(p[0]) > ArenaHalfExtent || math.Abs(p[2]) > ArenaHalfExtent {
				continue
			}
			c := ground
			for _, z := range w.Zones {
				if !z.Contains(p) {
					continue
				}
				switch z.Class {
				case core.ZoneDanger:
					c = blend(c, hazard, 0.5)
				case core.ZoneCaution:
					c = blend(c, cautionColor, 0.35)
				}
			}
			img.SetRGBA(x, y, c)
		}
	}

	span := math.Hypot(float64(t.Width), float64(t.Height)) * t.Scale / 2
	pos := w.Robot.Position
	rubble := rgb(env.RubbleColor)
	for _, p := range w.RubbleNear(pos[0], pos[2], span+w.MaxRubbleRadius()) {
		t.fillPiece(img, rot, inv, p, rubble)
	}

	for _, v := range w.Victims {
		switch v.State {
		case core.VictimAlive:
			t.fillDisc(img, inv, v.Position, world.VictimRadius*2, victimColor)
		case core.VictimDied:
			t.fillDisc(img, inv, v.Position, world.VictimRadius*2, deadColor)
		}
	}
	t.fillDisc(img, inv, w.Station.Position, 1.5, stationColor)
	t.fillDisc(img, inv, pos, 0.6, robotColor)
	return img, nil
}

// fillPiece rasterizes the yaw-rotated footprint of a rubble piece.
func (t *TopDown) fillPiece(img *image.RGBA, rot, inv mgl64.Mat3, p *core.RubblePiece, c color.RGBA) {
	cx, cy := t.toPixel(inv, p.Position)
	r := math.Hypot(p.Width, p.Depth) / 2 / t.Scale
	toLocal := mgl64.Rotate3DY(-p.Rotation[1])
	for y := max(0, int(cy-r)); y <= min(t.Height-1, int(cy+r)); y++ {
		for x := max(0, int(cx-r)); x <= min(t.Width-1, int(cx+r)); x++ {
			q := toLocal.Mul3x1(t.toWorld(rot, x, y).Sub(p.Position))
			if math.Abs(q[0]) <= p.Width/2 && math.Abs(q[2]) <= p.Depth/2 {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func (t *TopDown) fillDisc(img *image.RGBA, inv mgl64.Mat3, centre core.Vec3, radius float64, c color.RGBA) {
	cx, cy := t.toPixel(inv, centre)
	r := max(radius/t.Scale, 1)
	for y := max(0, int(cy-r)); y <= min(t.Height-1, int(cy+r)); y++ {
		for x := max(0, int(cx-r)); x <= min(t.Width-1, int(cx+r)); x++ {
			if math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy) <= r {
				img.SetRGBA(x, y, c)
			}
		}
	}
}
