package frustum

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
)

// adam is a first-order stochastic optimizer over the three pose scalars
// with a learning rate per parameter. Standard bias-corrected moment
// estimates; only the rates differ between parameters.
type adam struct {
	lr [3]float64
	m  [3]float64
	v  [3]float64
	t  int

	beta1, beta2, eps float64
}

func newAdam(distLR, elevLR, azimLR float64) *adam {
	return &adam{
		lr:    [3]float64{distLR, elevLR, azimLR},
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
	}
}

// step applies one descent update to the pose given loss gradients.
func (a *adam) step(pose ViewPose, grad [3]float64) ViewPose {
	a.t++
	params := [3]float64{pose.Dist, pose.Elev, pose.Azim}
	for i := 0; i < 3; i++ {
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*grad[i]
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*grad[i]*grad[i]
		mHat := a.m[i] / (1 - math.Pow(a.beta1, float64(a.t)))
		vHat := a.v[i] / (1 - math.Pow(a.beta2, float64(a.t)))
		params[i] -= a.lr[i] * mHat / (math.Sqrt(vHat) + a.eps)
	}
	return ViewPose{Dist: params[0], Elev: params[1], Azim: params[2]}
}

// SnapshotFunc receives periodic diagnostic snapshots during optimization.
// Returning an error aborts the run.
type SnapshotFunc func(IterationSnapshot) error

// Optimize runs gradient descent on the reciprocal visibility loss from
// the start pose, using the estimator's finite-difference surrogate as the
// sole gradient signal. The loop runs for the fixed iteration budget or
// until ctx is cancelled; each iteration is one synchronous
// forward+backward+step sequence and pose updates are atomic from the
// loop's perspective.
func Optimize(
	ctx context.Context,
	est *Estimator,
	pts []r3.Vector,
	start ViewPose,
	cfg OptimizerConfig,
	snapshot SnapshotFunc,
) (*Result, error) {
	if len(pts) == 0 {
		return nil, ErrTooFewPoints
	}

	opt := newAdam(cfg.DistLR, cfg.ElevLR, cfg.AzimLR)
	pose := start
	startReward := est.Reward(start, pts)
	reward := startReward

	iters := 0
	for i := 0; i < cfg.Iterations; i++ {
		select {
		case <-ctx.Done():
			return &Result{
				StartPose:   start,
				FinalPose:   pose,
				StartReward: startReward,
				FinalReward: reward,
				Iterations:  iters,
			}, ctx.Err()
		default:
		}

		var dDist, dElev, dAzim float64
		reward, dDist, dElev, dAzim = est.Sensitivities(pose, pts)
		loss := est.Loss(reward)

		// d(1/(r+eps))/dr, chained through the surrogate sensitivities.
		upstream := -1.0 / ((reward + est.cfg.Epsilon) * (reward + est.cfg.Epsilon))
		grad := [3]float64{upstream * dDist, upstream * dElev, upstream * dAzim}

		pose = opt.step(pose, grad)
		iters++

		if snapshot != nil && cfg.VizEvery > 0 && i%cfg.VizEvery == 0 {
			rot, trans := LookAt(pose)
			snap := IterationSnapshot{
				Iteration: i,
				Pose:      pose,
				Reward:    reward,
				Loss:      loss,
				Rot:       rot,
				Trans:     trans,
				Visible:   est.Visible(pose, pts),
			}
			if err := snapshot(snap); err != nil {
				return nil, err
			}
		}
	}

	reward = est.Reward(pose, pts)
	return &Result{
		StartPose:   start,
		FinalPose:   pose,
		StartReward: startReward,
		FinalReward: reward,
		Iterations:  iters,
	}, nil
}
