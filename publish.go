package viewopt

import (
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/encoding/protojson"

	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/rimage/transform"
	"go.viam.com/rdk/spatialmath"

	"github.com/biotinker/viewopt/frustum"
)

// Output channels under OutputDir. Each artifact overwrites the previous
// one on its channel.
const (
	filteredCloudFile = "filtered.pcd"
	allPointsFile     = "points_all.pcd"
	visiblePointsFile = "points_visible.pcd"
	previewImageFile  = "preview.png"
	poseFile          = "pose.json"
	odomFile          = "odom.json"
)

// ensureOutputDir creates the artifact directory if needed.
func ensureOutputDir(r *Robot) error {
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

// saveFilteredCloud writes the live pipeline's filtered cloud to its
// output channel.
func saveFilteredCloud(r *Robot, cloud pointcloud.PointCloud) error {
	if err := ensureOutputDir(r); err != nil {
		return err
	}
	return savePointCloudToPCD(cloud, filepath.Join(r.cfg.OutputDir, filteredCloudFile))
}

// publishSnapshot emits the diagnostic artifacts for one optimizer
// snapshot: the camera pose (both Viam-native and translation+quaternion
// forms), the visible-points cloud, and a rendered preview. With zero
// visible points the cloud and preview are skipped rather than erroring.
func publishSnapshot(r *Robot, snap frustum.IterationSnapshot, intrinsics *transform.PinholeCameraIntrinsics) error {
	if err := ensureOutputDir(r); err != nil {
		return err
	}

	camPose := spatialmath.NewPose(snap.Trans, snap.Rot)
	if err := savePoseArtifacts(r, camPose); err != nil {
		return err
	}

	if len(snap.Visible) == 0 {
		r.logger.Debugf("Iteration %d: no visible points, skipping preview", snap.Iteration)
		return nil
	}

	visibleCloud := frustum.ToCloud(snap.Visible)
	if err := savePointCloudToPCD(visibleCloud, filepath.Join(r.cfg.OutputDir, visiblePointsFile)); err != nil {
		return fmt.Errorf("save visible points: %w", err)
	}

	img, err := frustum.RenderPreview(snap.Visible, intrinsics)
	if err != nil {
		return fmt.Errorf("render preview: %w", err)
	}
	if err := saveImageToPNG(img, filepath.Join(r.cfg.OutputDir, previewImageFile)); err != nil {
		return fmt.Errorf("save preview: %w", err)
	}

	r.logger.Debugf("Iteration %d: reward=%.0f loss=%.3g visible=%d",
		snap.Iteration, snap.Reward, snap.Loss, len(snap.Visible))
	return nil
}

// savePoseArtifacts writes the world-frame camera pose estimate to its two
// channels: the Viam protobuf pose as protojson, and a translation plus
// unit quaternion.
func savePoseArtifacts(r *Robot, pose spatialmath.Pose) error {
	pb, err := protojson.Marshal(spatialmath.PoseToProtobuf(pose))
	if err != nil {
		return fmt.Errorf("marshal pose: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.cfg.OutputDir, poseFile), pb, 0o644); err != nil {
		return fmt.Errorf("write pose: %w", err)
	}

	q := pose.Orientation().Quaternion()
	pt := pose.Point()
	odom := struct {
		Frame       string             `json:"frame"`
		Translation map[string]float64 `json:"translation"`
		Quaternion  map[string]float64 `json:"quaternion"`
	}{
		Frame:       "world",
		Translation: map[string]float64{"x": pt.X, "y": pt.Y, "z": pt.Z},
		Quaternion:  map[string]float64{"w": q.Real, "x": q.Imag, "y": q.Jmag, "z": q.Kmag},
	}
	data, err := json.Marshal(odom)
	if err != nil {
		return fmt.Errorf("marshal odom: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.cfg.OutputDir, odomFile), data, 0o644); err != nil {
		return fmt.Errorf("write odom: %w", err)
	}
	return nil
}

// savePointCloudToPCD writes a point cloud to a PCD file in binary format.
func savePointCloudToPCD(cloud pointcloud.PointCloud, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	if err := pointcloud.ToPCD(cloud, file, pointcloud.PCDBinary); err != nil {
		return fmt.Errorf("write PCD: %w", err)
	}
	return nil
}

// saveImageToPNG writes an image to disk as PNG.
func saveImageToPNG(img *rimage.Image, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encode PNG: %w", err)
	}
	return nil
}
