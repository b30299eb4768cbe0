package frustum

import (
	"github.com/golang/geo/r3"

	"go.viam.com/rdk/spatialmath"
)

// ViewPose is a look-at camera placement relative to a target at the
// origin: a distance along the viewing ray plus elevation and azimuth
// angles in degrees. These three scalars are the free parameters of the
// coverage optimization.
type ViewPose struct {
	Dist float64
	Elev float64
	Azim float64
}

// VisibilityMask marks, per point, membership in a visibility predicate.
// It is index-aligned with the point slice it was derived from and is
// never stored beyond the evaluation that produced it.
type VisibilityMask []bool

// Count returns the number of true entries.
func (m VisibilityMask) Count() int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

// And returns the elementwise conjunction of two masks of equal length.
func (m VisibilityMask) And(other VisibilityMask) (VisibilityMask, error) {
	if len(m) != len(other) {
		return nil, ErrMaskLength
	}
	out := make(VisibilityMask, len(m))
	for i := range m {
		out[i] = m[i] && other[i]
	}
	return out, nil
}

// IterationSnapshot is the diagnostic payload handed to the optimizer's
// snapshot callback at the configured cadence. The visible points are
// recomputed under the updated pose and are not part of the gradient path.
type IterationSnapshot struct {
	Iteration int
	Pose      ViewPose
	Reward    float64
	Loss      float64

	// Camera extrinsics for the updated pose.
	Rot   *spatialmath.RotationMatrix
	Trans r3.Vector

	// Points inside the frustum under the updated pose, in camera frame.
	Visible []r3.Vector
}

// Result summarizes one optimization run.
type Result struct {
	StartPose   ViewPose
	FinalPose   ViewPose
	StartReward float64
	FinalReward float64
	Iterations  int
}
