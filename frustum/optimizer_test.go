package frustum

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
)

// generateClusterCloud returns n points in a ball of the given radius
// around center.
func generateClusterCloud(center r3.Vector, radius float64, n int, seed int64) []r3.Vector {
	//nolint:gosec
	rng := rand.New(rand.NewSource(seed))
	pts := make([]r3.Vector, 0, n)
	for len(pts) < n {
		p := r3.Vector{
			X: (rng.Float64()*2 - 1) * radius,
			Y: (rng.Float64()*2 - 1) * radius,
			Z: (rng.Float64()*2 - 1) * radius,
		}
		if p.Norm() > radius {
			continue
		}
		pts = append(pts, center.Add(p))
	}
	return pts
}

func TestOptimizeFullyVisibleClusterIsStable(t *testing.T) {
	// A small cluster at the target, fully inside the frustum: the reward
	// is already maximal and flat, so every sensitivity is zero and the
	// pose must not move.
	est := newTestEstimator(t)
	pts := generateClusterCloud(r3.Vector{}, 0.2, 150, 1)
	start := ViewPose{Dist: 3, Elev: 0, Azim: 0}

	cfg := DefaultOptimizerConfig()
	cfg.Iterations = 50
	cfg.VizEvery = 0

	result, err := Optimize(context.Background(), est, pts, start, cfg, nil)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if result.StartReward != float64(len(pts)) {
		t.Fatalf("start reward %.0f, want all %d points visible", result.StartReward, len(pts))
	}
	if result.FinalReward != result.StartReward {
		t.Errorf("reward changed from %.0f to %.0f on a flat objective", result.StartReward, result.FinalReward)
	}
	if result.FinalPose != start {
		t.Errorf("pose drifted from %+v to %+v with zero gradients", start, result.FinalPose)
	}
}

func TestOptimizeImprovesPartialCoverage(t *testing.T) {
	// A strip of points extending past the left edge of the frustum:
	// reorienting toward the cluster strictly increases the count.
	est := newTestEstimator(t)

	//nolint:gosec
	rng := rand.New(rand.NewSource(21))
	pts := make([]r3.Vector, 300)
	for i := range pts {
		pts[i] = r3.Vector{
			X: 1.2 + rng.Float64(),
			Y: (rng.Float64() - 0.5) * 0.4,
			Z: (rng.Float64() - 0.5) * 0.4,
		}
	}

	start := ViewPose{Dist: 3, Elev: 0, Azim: 0}
	cfg := DefaultOptimizerConfig()
	cfg.VizEvery = 0

	startReward := est.Reward(start, pts)
	if startReward == 0 || startReward == float64(len(pts)) {
		t.Fatalf("test geometry broken: start reward %.0f should be partial", startReward)
	}

	result, err := Optimize(context.Background(), est, pts, start, cfg, nil)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	t.Logf("reward %.0f -> %.0f, pose %+v -> %+v",
		result.StartReward, result.FinalReward, result.StartPose, result.FinalPose)

	if result.FinalReward <= result.StartReward {
		t.Errorf("final reward %.0f not above start %.0f", result.FinalReward, result.StartReward)
	}
	if result.Iterations != cfg.Iterations {
		t.Errorf("ran %d iterations, want the full budget %d", result.Iterations, cfg.Iterations)
	}
}

func TestOptimizeSnapshotCadence(t *testing.T) {
	est := newTestEstimator(t)
	pts := generateClusterCloud(r3.Vector{}, 0.5, 100, 2)

	cfg := DefaultOptimizerConfig()
	cfg.Iterations = 12
	cfg.VizEvery = 4

	var snaps []IterationSnapshot
	_, err := Optimize(context.Background(), est, pts, ViewPose{Dist: 3}, cfg, func(s IterationSnapshot) error {
		snaps = append(snaps, s)
		return nil
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if len(snaps) != 3 {
		t.Fatalf("got %d snapshots, want 3 (iterations 0, 4, 8)", len(snaps))
	}
	for i, s := range snaps {
		if s.Iteration != i*4 {
			t.Errorf("snapshot %d at iteration %d, want %d", i, s.Iteration, i*4)
		}
		if s.Rot == nil {
			t.Errorf("snapshot %d missing extrinsics", i)
		}
		if len(s.Visible) > len(pts) {
			t.Errorf("snapshot %d: %d visible of %d points", i, len(s.Visible), len(pts))
		}
	}
}

func TestOptimizeSnapshotErrorAborts(t *testing.T) {
	est := newTestEstimator(t)
	pts := generateClusterCloud(r3.Vector{}, 0.5, 50, 3)

	boom := errors.New("sink failed")
	cfg := DefaultOptimizerConfig()
	_, err := Optimize(context.Background(), est, pts, ViewPose{Dist: 3}, cfg, func(IterationSnapshot) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want the snapshot error", err)
	}
}

func TestOptimizeCancellation(t *testing.T) {
	est := newTestEstimator(t)
	pts := generateClusterCloud(r3.Vector{}, 0.5, 50, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Optimize(ctx, est, pts, ViewPose{Dist: 3}, DefaultOptimizerConfig(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if result == nil {
		t.Fatal("cancelled run must still return the partial result")
	}
	if result.Iterations != 0 {
		t.Errorf("ran %d iterations after cancellation", result.Iterations)
	}
}

func TestOptimizeEmptyPoints(t *testing.T) {
	est := newTestEstimator(t)
	if _, err := Optimize(context.Background(), est, nil, ViewPose{Dist: 3}, DefaultOptimizerConfig(), nil); err != ErrTooFewPoints {
		t.Errorf("got %v, want ErrTooFewPoints", err)
	}
}

func TestAdamZeroGradientIsNoOp(t *testing.T) {
	opt := newAdam(0.05, 1.2, 1.2)
	pose := ViewPose{Dist: 2, Elev: 30, Azim: -10}
	for i := 0; i < 5; i++ {
		pose = opt.step(pose, [3]float64{})
	}
	if pose != (ViewPose{Dist: 2, Elev: 30, Azim: -10}) {
		t.Errorf("pose moved to %+v under zero gradients", pose)
	}
}

func TestAdamFrozenDistance(t *testing.T) {
	// A zero distance learning rate freezes translation regardless of
	// the gradient.
	opt := newAdam(0, 1.2, 1.2)
	pose := ViewPose{Dist: 2}
	pose = opt.step(pose, [3]float64{-5, -5, -5})
	if pose.Dist != 2 {
		t.Errorf("distance moved to %f with zero learning rate", pose.Dist)
	}
	if pose.Elev == 0 || pose.Azim == 0 {
		t.Error("elevation/azimuth should move under a nonzero gradient")
	}
}
