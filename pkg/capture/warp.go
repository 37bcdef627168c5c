package capture

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"

	"github.com/teslashibe/go-docscan/pkg/geometry"
)

// Homography is a projective transform in row-major order with h[8] fixed
// to 1.
type Homography struct {
	h [9]float64
}

// Apply maps a point through the transform.
func (t Homography) Apply(p geometry.Point) geometry.Point {
	h := t.h
	d := h[6]*p.X + h[7]*p.Y + h[8]
	return geometry.Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / d,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / d,
	}
}

// solveHomography computes the transform taking each src corner to the
// matching dst corner. Four point pairs give an 8x8 linear system.
func solveHomography(src, dst [4]geometry.Point) (Homography, error) {
	A := mat.NewDense(8, 8, nil)
	B := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y

		// u = (h0*x + h1*y + h2) / (h6*x + h7*y + 1)
		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		A.Set(i*2, 6, -u*x)
		A.Set(i*2, 7, -u*y)
		B.SetVec(i*2, u)

		// v = (h3*x + h4*y + h5) / (h6*x + h7*y + 1)
		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		A.Set(i*2+1, 6, -v*x)
		A.Set(i*2+1, 7, -v*y)
		B.SetVec(i*2+1, v)
	}

	var params mat.VecDense
	if err := params.SolveVec(A, B); err != nil {
		return Homography{}, err
	}

	var t Homography
	for i := 0; i < 8; i++ {
		t.h[i] = params.AtVec(i)
	}
	t.h[8] = 1
	return t, nil
}

// Deskew maps the quadrilateral region of img onto a flat rectangle sized by
// the quadrilateral's longer opposing sides, sampling bilinearly.
func Deskew(img image.Image, quad geometry.Quadrilateral) (*image.NRGBA, error) {
	top := quad.TopLeft.Distance(quad.TopRight)
	bottom := quad.BottomLeft.Distance(quad.BottomRight)
	left := quad.TopLeft.Distance(quad.BottomLeft)
	right := quad.TopRight.Distance(quad.BottomRight)

	outW := int(math.Round(math.Max(top, bottom)))
	outH := int(math.Round(math.Max(left, right)))
	if outW < 8 || outH < 8 {
		return nil, ErrDegenerateQuad
	}

	w := float64(outW)
	h := float64(outH)
	rect := [4]geometry.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
	srcOf, err := solveHomography(rect, [4]geometry.Point{
		quad.TopLeft, quad.TopRight, quad.BottomRight, quad.BottomLeft,
	})
	if err != nil {
		return nil, err
	}

	src := toNRGBA(img)
	out := image.NewNRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			p := srcOf.Apply(geometry.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5})
			r, g, b, a := sampleBilinear(src, p.X-0.5, p.Y-0.5)
			i := out.PixOffset(x, y)
			out.Pix[i+0] = r
			out.Pix[i+1] = g
			out.Pix[i+2] = b
			out.Pix[i+3] = a
		}
	}
	return out, nil
}

// fitWidth scales img down so its width does not exceed maxW, preserving
// aspect ratio. Images already small enough pass through untouched.
func fitWidth(img *image.NRGBA, maxW int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() <= maxW {
		return img
	}
	h := b.Dy() * maxW / b.Dx()
	dst := image.NewNRGBA(image.Rect(0, 0, maxW, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

// toNRGBA returns img as a zero-origin NRGBA, copying only when needed.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(dst, image.Point{}, img, b, xdraw.Over, nil)
	return dst
}

// sampleBilinear reads the color at a fractional position, clamping to the
// image edge.
func sampleBilinear(img *image.NRGBA, x, y float64) (r, g, b, a uint8) {
	w := img.Rect.Dx()
	h := img.Rect.Dy()

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	c := func(xi, yi int) []uint8 {
		xi = clampInt(xi, 0, w-1)
		yi = clampInt(yi, 0, h-1)
		i := img.PixOffset(xi, yi)
		return img.Pix[i : i+4]
	}

	p00 := c(x0, y0)
	p10 := c(x0+1, y0)
	p01 := c(x0, y0+1)
	p11 := c(x0+1, y0+1)

	mix := func(ch int) uint8 {
		top := float64(p00[ch])*(1-fx) + float64(p10[ch])*fx
		bot := float64(p01[ch])*(1-fx) + float64(p11[ch])*fx
		return uint8(math.Round(top*(1-fy) + bot*fy))
	}
	return mix(0), mix(1), mix(2), mix(3)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
