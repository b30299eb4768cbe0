package viewopt

import (
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"google.golang.org/protobuf/encoding/protojson"

	commonpb "go.viam.com/api/common/v1"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/spatialmath"

	"github.com/biotinker/viewopt/frustum"
)

func newTestRobot(t *testing.T) *Robot {
	t.Helper()
	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()
	return &Robot{
		logger: logging.NewTestLogger(t),
		cfg:    cfg,
		state:  &ScanState{},
	}
}

func generateTestCloud(t *testing.T, n int) pointcloud.PointCloud {
	t.Helper()
	//nolint:gosec // deterministic test data
	rng := rand.New(rand.NewSource(7))
	cloud := pointcloud.NewBasicEmpty()
	for i := 0; i < n; i++ {
		p := r3.Vector{
			X: rng.Float64() * 100,
			Y: rng.Float64() * 100,
			Z: rng.Float64() * 100,
		}
		if err := cloud.Set(p, nil); err != nil {
			t.Fatalf("failed to add point: %v", err)
		}
	}
	return cloud
}

func TestSavePoseArtifacts(t *testing.T) {
	r := newTestRobot(t)
	if err := ensureOutputDir(r); err != nil {
		t.Fatalf("ensureOutputDir failed: %v", err)
	}

	pose := spatialmath.NewPoseFromPoint(r3.Vector{X: 1.5, Y: -2.0, Z: 3.0})
	if err := savePoseArtifacts(r, pose); err != nil {
		t.Fatalf("savePoseArtifacts failed: %v", err)
	}

	pbData, err := os.ReadFile(filepath.Join(r.cfg.OutputDir, poseFile))
	if err != nil {
		t.Fatalf("pose artifact missing: %v", err)
	}
	var pbPose commonpb.Pose
	if err := protojson.Unmarshal(pbData, &pbPose); err != nil {
		t.Fatalf("pose artifact not a protojson pose: %v", err)
	}
	if pbPose.X != 1.5 || pbPose.Y != -2.0 || pbPose.Z != 3.0 {
		t.Errorf("pose artifact translation (%f, %f, %f), want (1.5, -2, 3)", pbPose.X, pbPose.Y, pbPose.Z)
	}

	data, err := os.ReadFile(filepath.Join(r.cfg.OutputDir, odomFile))
	if err != nil {
		t.Fatalf("odom artifact missing: %v", err)
	}
	var odom struct {
		Frame       string             `json:"frame"`
		Translation map[string]float64 `json:"translation"`
		Quaternion  map[string]float64 `json:"quaternion"`
	}
	if err := json.Unmarshal(data, &odom); err != nil {
		t.Fatalf("odom artifact not valid JSON: %v", err)
	}
	if odom.Frame != "world" {
		t.Errorf("odom frame %q, want world", odom.Frame)
	}
	if odom.Translation["x"] != 1.5 || odom.Translation["y"] != -2.0 || odom.Translation["z"] != 3.0 {
		t.Errorf("odom translation wrong: %v", odom.Translation)
	}
	// Identity orientation must serialize as the unit quaternion.
	if math.Abs(odom.Quaternion["w"]-1) > 1e-9 {
		t.Errorf("identity orientation quaternion w=%f, want 1", odom.Quaternion["w"])
	}
	for _, k := range []string{"x", "y", "z"} {
		if math.Abs(odom.Quaternion[k]) > 1e-9 {
			t.Errorf("identity orientation quaternion %s=%f, want 0", k, odom.Quaternion[k])
		}
	}
}

func TestPublishSnapshotNoVisiblePoints(t *testing.T) {
	r := newTestRobot(t)
	intrinsics := frustum.DefaultIntrinsics()

	snap := frustum.IterationSnapshot{
		Iteration: 0,
		Pose:      frustum.ViewPose{Dist: -0.6, Elev: -30, Azim: 20},
		Rot:       spatialmath.NewZeroPose().Orientation().RotationMatrix(),
		Trans:     r3.Vector{},
	}
	if err := publishSnapshot(r, snap, intrinsics); err != nil {
		t.Fatalf("publishSnapshot failed: %v", err)
	}

	// Pose channels are always written; the cloud and preview are skipped.
	if _, err := os.Stat(filepath.Join(r.cfg.OutputDir, poseFile)); err != nil {
		t.Errorf("pose artifact missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.cfg.OutputDir, visiblePointsFile)); !os.IsNotExist(err) {
		t.Errorf("visible cloud written with zero visible points")
	}
	if _, err := os.Stat(filepath.Join(r.cfg.OutputDir, previewImageFile)); !os.IsNotExist(err) {
		t.Errorf("preview written with zero visible points")
	}
}

func TestPublishSnapshotWithVisiblePoints(t *testing.T) {
	r := newTestRobot(t)
	intrinsics := frustum.DefaultIntrinsics()

	// Points in front of the camera near the optical axis.
	visible := []r3.Vector{
		{X: 0, Y: 0, Z: 2},
		{X: 0.1, Y: 0.1, Z: 2.5},
		{X: -0.1, Y: 0.05, Z: 3},
	}
	snap := frustum.IterationSnapshot{
		Iteration: 4,
		Reward:    3,
		Loss:      1.0 / 3,
		Rot:       spatialmath.NewZeroPose().Orientation().RotationMatrix(),
		Trans:     r3.Vector{},
		Visible:   visible,
	}
	if err := publishSnapshot(r, snap, intrinsics); err != nil {
		t.Fatalf("publishSnapshot failed: %v", err)
	}

	for _, name := range []string{poseFile, odomFile, visiblePointsFile, previewImageFile} {
		if _, err := os.Stat(filepath.Join(r.cfg.OutputDir, name)); err != nil {
			t.Errorf("artifact %s missing: %v", name, err)
		}
	}

	// The visible cloud must round-trip through PCD.
	f, err := os.Open(filepath.Join(r.cfg.OutputDir, visiblePointsFile))
	if err != nil {
		t.Fatalf("failed to open visible cloud: %v", err)
	}
	defer f.Close() //nolint:errcheck
	cloud, err := pointcloud.ReadPCD(f)
	if err != nil {
		t.Fatalf("failed to read visible cloud: %v", err)
	}
	if cloud.Size() != len(visible) {
		t.Errorf("visible cloud has %d points, want %d", cloud.Size(), len(visible))
	}
}

func TestSaveFilteredCloud(t *testing.T) {
	r := newTestRobot(t)
	cloud := generateTestCloud(t, 50)

	if err := saveFilteredCloud(r, cloud); err != nil {
		t.Fatalf("saveFilteredCloud failed: %v", err)
	}

	f, err := os.Open(filepath.Join(r.cfg.OutputDir, filteredCloudFile))
	if err != nil {
		t.Fatalf("filtered cloud missing: %v", err)
	}
	defer f.Close() //nolint:errcheck
	got, err := pointcloud.ReadPCD(f)
	if err != nil {
		t.Fatalf("failed to read filtered cloud: %v", err)
	}
	if got.Size() != cloud.Size() {
		t.Errorf("filtered cloud has %d points, want %d", got.Size(), cloud.Size())
	}
}

func TestDownsamplePointCloud(t *testing.T) {
	r := newTestRobot(t)
	cloud := generateTestCloud(t, 1000)

	down := downsamplePointCloud(r, cloud, 100)
	if down.Size() > 110 || down.Size() < 90 {
		t.Errorf("downsampled to %d points, want about 100", down.Size())
	}

	// A cloud already under the target is kept whole.
	small := generateTestCloud(t, 50)
	kept := downsamplePointCloud(r, small, 100)
	if kept.Size() != small.Size() {
		t.Errorf("small cloud reduced from %d to %d points", small.Size(), kept.Size())
	}
}
