package frustum

import (
	"github.com/golang/geo/r3"

	"go.viam.com/rdk/rimage/transform"
)

// Estimator computes a scalar visibility reward for a look-at pose over a
// fixed point set, and a finite-difference surrogate gradient of that
// reward with respect to the three pose scalars. The reward itself is
// piecewise constant in the pose (a point is either in the frustum or
// not), so its true gradient is zero almost everywhere; perturbing each
// parameter by a small step and differencing the recomputed reward
// substitutes a locally informative direction.
type Estimator struct {
	intrinsics *transform.PinholeCameraIntrinsics
	cfg        EstimatorConfig
}

// NewEstimator returns an estimator for the given camera. A nil or invalid
// intrinsics set is rejected up front so pose evaluations cannot fail.
func NewEstimator(intrinsics *transform.PinholeCameraIntrinsics, cfg EstimatorConfig) (*Estimator, error) {
	if intrinsics == nil || intrinsics.CheckValid() != nil {
		return nil, ErrNoIntrinsics
	}
	if cfg.MinDepth >= cfg.MaxDepth {
		return nil, ErrBadDepthBand
	}
	return &Estimator{intrinsics: intrinsics, cfg: cfg}, nil
}

// Intrinsics returns the camera intrinsics the estimator projects with.
func (e *Estimator) Intrinsics() *transform.PinholeCameraIntrinsics {
	return e.intrinsics
}

// Reward counts the points visible from the pose: inside the depth band
// and inside the camera field of view. Non-negative and bounded above by
// len(pts). Deterministic for identical inputs.
func (e *Estimator) Reward(pose ViewPose, pts []r3.Vector) float64 {
	rot, trans := LookAt(pose)
	cam := ToCameraFrame(pts, rot, trans)
	mask, err := VisibleMask(cam, e.cfg.MinDepth, e.cfg.MaxDepth, e.intrinsics)
	if err != nil {
		// Config and intrinsics were validated at construction.
		return 0
	}
	return float64(mask.Count())
}

// Sensitivities returns the forward finite difference of the reward along
// each pose parameter independently: perturb one scalar by Delta holding
// the other two fixed, recompute, and difference against the base reward.
// The base reward is returned alongside so callers evaluate it once.
func (e *Estimator) Sensitivities(pose ViewPose, pts []r3.Vector) (reward, dDist, dElev, dAzim float64) {
	reward = e.Reward(pose, pts)
	delta := e.cfg.Delta

	dDist = e.Reward(ViewPose{pose.Dist + delta, pose.Elev, pose.Azim}, pts) - reward
	dElev = e.Reward(ViewPose{pose.Dist, pose.Elev + delta, pose.Azim}, pts) - reward
	dAzim = e.Reward(ViewPose{pose.Dist, pose.Elev, pose.Azim + delta}, pts) - reward
	return reward, dDist, dElev, dAzim
}

// GradientEstimate chains an upstream scalar gradient through the
// finite-difference sensitivities, behaving like the backward pass of a
// custom differentiable primitive.
func (e *Estimator) GradientEstimate(pose ViewPose, pts []r3.Vector, upstream float64) (gDist, gElev, gAzim float64) {
	_, dDist, dElev, dAzim := e.Sensitivities(pose, pts)
	return upstream * dDist, upstream * dElev, upstream * dAzim
}

// Loss maps a reward to the reciprocal loss minimized by the optimizer.
// The epsilon term keeps it finite when nothing is visible.
func (e *Estimator) Loss(reward float64) float64 {
	return 1.0 / (reward + e.cfg.Epsilon)
}

// Visible returns the camera-frame points inside the frustum under the
// pose, for diagnostics and visualization.
func (e *Estimator) Visible(pose ViewPose, pts []r3.Vector) []r3.Vector {
	rot, trans := LookAt(pose)
	cam := ToCameraFrame(pts, rot, trans)
	mask, err := VisibleMask(cam, e.cfg.MinDepth, e.cfg.MaxDepth, e.intrinsics)
	if err != nil {
		return nil
	}
	visible, err := Apply(cam, mask)
	if err != nil {
		return nil
	}
	return visible
}
