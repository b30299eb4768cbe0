package frustum

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/rimage/transform"
	"go.viam.com/rdk/spatialmath"
	rdkutils "go.viam.com/rdk/utils"
)

// LookAt derives camera extrinsics from a look-at pose. The camera sits at
// spherical offset (dist, elev, azim) from a target at the origin with +Y
// up, looking at the target. R's columns are the camera axes expressed in
// world coordinates; T is -R^T * C for camera center C.
func LookAt(pose ViewPose) (*spatialmath.RotationMatrix, r3.Vector) {
	elev := rdkutils.DegToRad(pose.Elev)
	azim := rdkutils.DegToRad(pose.Azim)

	center := r3.Vector{
		X: pose.Dist * math.Cos(elev) * math.Sin(azim),
		Y: pose.Dist * math.Sin(elev),
		Z: pose.Dist * math.Cos(elev) * math.Cos(azim),
	}

	zAxis := center.Mul(-1) // toward the target at the origin
	if n := zAxis.Norm(); n > 1e-12 {
		zAxis = zAxis.Mul(1.0 / n)
	} else {
		zAxis = r3.Vector{Z: 1}
	}

	up := r3.Vector{Y: 1}
	xAxis := up.Cross(zAxis)
	if n := xAxis.Norm(); n > 1e-12 {
		xAxis = xAxis.Mul(1.0 / n)
	} else {
		// Camera directly above or below the target; any horizontal axis works.
		xAxis = r3.Vector{X: 1}
	}
	yAxis := zAxis.Cross(xAxis)
	if n := yAxis.Norm(); n > 1e-12 {
		yAxis = yAxis.Mul(1.0 / n)
	}

	// Row-major with the axes as columns.
	rot, _ := spatialmath.NewRotationMatrix([]float64{
		xAxis.X, yAxis.X, zAxis.X,
		xAxis.Y, yAxis.Y, zAxis.Y,
		xAxis.Z, yAxis.Z, zAxis.Z,
	})

	trans := rotateTranspose(rot, center).Mul(-1)
	return rot, trans
}

// ToCameraFrame transforms points into the camera frame: subtract the
// translation, then apply the inverse rotation (R^T, R being orthonormal).
// Pure; the input slice is not modified.
func ToCameraFrame(pts []r3.Vector, rot *spatialmath.RotationMatrix, trans r3.Vector) []r3.Vector {
	out := make([]r3.Vector, len(pts))
	for i, p := range pts {
		out[i] = rotateTranspose(rot, p.Sub(trans))
	}
	return out
}

// FromCameraFrame is the exact inverse of ToCameraFrame: rotate by R, then
// add the translation.
func FromCameraFrame(pts []r3.Vector, rot *spatialmath.RotationMatrix, trans r3.Vector) []r3.Vector {
	out := make([]r3.Vector, len(pts))
	for i, p := range pts {
		out[i] = rotate(rot, p).Add(trans)
	}
	return out
}

// DepthMask marks points whose camera-frame depth lies strictly inside
// (minDepth, maxDepth). Points exactly at either bound are excluded.
func DepthMask(ptsCam []r3.Vector, minDepth, maxDepth float64) (VisibilityMask, error) {
	if minDepth >= maxDepth {
		return nil, ErrBadDepthBand
	}
	mask := make(VisibilityMask, len(ptsCam))
	for i, p := range ptsCam {
		mask[i] = p.Z > minDepth && p.Z < maxDepth
	}
	return mask, nil
}

// FOVMask marks points that project strictly inside the image bounds with a
// one-pixel margin on each edge. Points at or behind the image plane
// (Z <= 0) are rejected before the perspective divide.
func FOVMask(ptsCam []r3.Vector, intrinsics *transform.PinholeCameraIntrinsics) (VisibilityMask, error) {
	if intrinsics == nil || intrinsics.CheckValid() != nil {
		return nil, ErrNoIntrinsics
	}
	w := float64(intrinsics.Width)
	h := float64(intrinsics.Height)

	mask := make(VisibilityMask, len(ptsCam))
	for i, p := range ptsCam {
		if p.Z <= 0 {
			continue
		}
		u := (p.X/p.Z)*intrinsics.Fx + intrinsics.Ppx
		v := (p.Y/p.Z)*intrinsics.Fy + intrinsics.Ppy
		mask[i] = u > 1 && u < w-1 && v > 1 && v < h-1
	}
	return mask, nil
}

// VisibleMask is the conjunction of DepthMask and FOVMask.
func VisibleMask(
	ptsCam []r3.Vector,
	minDepth, maxDepth float64,
	intrinsics *transform.PinholeCameraIntrinsics,
) (VisibilityMask, error) {
	depth, err := DepthMask(ptsCam, minDepth, maxDepth)
	if err != nil {
		return nil, err
	}
	fov, err := FOVMask(ptsCam, intrinsics)
	if err != nil {
		return nil, err
	}
	return depth.And(fov)
}

// Apply returns the points selected by the mask.
func Apply(pts []r3.Vector, mask VisibilityMask) ([]r3.Vector, error) {
	if len(pts) != len(mask) {
		return nil, ErrMaskLength
	}
	out := make([]r3.Vector, 0, len(pts))
	for i, p := range pts {
		if mask[i] {
			out = append(out, p)
		}
	}
	return out, nil
}

// Points flattens a point cloud into a slice snapshot for repeated pose
// evaluations. Iteration order is whatever the cloud yields; the snapshot
// is immutable for the rest of the pass.
func Points(cloud pointcloud.PointCloud) []r3.Vector {
	if cloud == nil {
		return nil
	}
	pts := make([]r3.Vector, 0, cloud.Size())
	cloud.Iterate(0, 0, func(p r3.Vector, _ pointcloud.Data) bool {
		pts = append(pts, p)
		return true
	})
	return pts
}

// ToCloud packs a point slice back into a basic point cloud, e.g. for PCD
// output. Duplicate coordinates collapse to one cloud entry.
func ToCloud(pts []r3.Vector) pointcloud.PointCloud {
	cloud := pointcloud.NewBasicPointCloud(len(pts))
	for _, p := range pts {
		//nolint:errcheck
		cloud.Set(p, pointcloud.NewBasicData())
	}
	return cloud
}

func rotate(rot *spatialmath.RotationMatrix, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: rot.Row(0).Dot(v),
		Y: rot.Row(1).Dot(v),
		Z: rot.Row(2).Dot(v),
	}
}

func rotateTranspose(rot *spatialmath.RotationMatrix, v r3.Vector) r3.Vector {
	r0, r1, r2 := rot.Row(0), rot.Row(1), rot.Row(2)
	return r3.Vector{
		X: r0.X*v.X + r1.X*v.Y + r2.X*v.Z,
		Y: r0.Y*v.X + r1.Y*v.Y + r2.Y*v.Z,
		Z: r0.Z*v.X + r1.Z*v.Y + r2.Z*v.Z,
	}
}
