package frustum

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/rimage/transform"
)

// RenderPreview splats camera-frame points onto the image plane for
// inspection: each point lands at its projected pixel, the nearest depth
// wins, and hue encodes normalized depth. This is a diagnostic preview,
// not a faithful rendering. An empty point set yields a blank image.
func RenderPreview(ptsCam []r3.Vector, intrinsics *transform.PinholeCameraIntrinsics) (*rimage.Image, error) {
	if intrinsics == nil || intrinsics.CheckValid() != nil {
		return nil, ErrNoIntrinsics
	}
	w, h := intrinsics.Width, intrinsics.Height
	img := rimage.NewImage(w, h)
	if len(ptsCam) == 0 {
		return img, nil
	}

	minZ, maxZ := math.Inf(1), math.Inf(-1)
	for _, p := range ptsCam {
		if p.Z <= 0 {
			continue
		}
		minZ = math.Min(minZ, p.Z)
		maxZ = math.Max(maxZ, p.Z)
	}
	if minZ > maxZ {
		// Nothing in front of the camera.
		return img, nil
	}
	span := maxZ - minZ
	if span < 1e-12 {
		span = 1
	}

	// Z-buffer so closer points overwrite farther ones.
	zbuf := mat.NewDense(h, w, nil)
	for _, p := range ptsCam {
		if p.Z <= 0 {
			continue
		}
		u := int(math.Round((p.X/p.Z)*intrinsics.Fx + intrinsics.Ppx))
		v := int(math.Round((p.Y/p.Z)*intrinsics.Fy + intrinsics.Ppy))
		if u < 0 || u >= w || v < 0 || v >= h {
			continue
		}
		if prev := zbuf.At(v, u); prev != 0 && prev <= p.Z {
			continue
		}
		zbuf.Set(v, u, p.Z)

		// Near points red, far points blue.
		hue := 240.0 * (p.Z - minZ) / span
		img.SetXY(u, v, rimage.NewColorFromHSV(hue, 1.0, 1.0))
	}
	return img, nil
}
