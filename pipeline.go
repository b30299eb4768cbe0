package viewopt

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/geo/r3"

	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/rimage/transform"
	"go.viam.com/rdk/spatialmath"

	"github.com/biotinker/viewopt/frustum"
)

// maxPipelinePoints caps cloud size before filtering; larger clouds are
// downsampled for per-cycle latency.
const maxPipelinePoints = 30000

// WatchAndFilter polls the cloud camera at the configured period and, for
// each cycle, republishes the frustum-filtered cloud in the view camera's
// frame. Cycles that fail (camera not ready, transform lookup failure)
// are logged and skipped; the next poll starts fresh. Handlers run
// synchronously, one cycle at a time.
func WatchAndFilter(ctx context.Context, r *Robot) error {
	period := time.Duration(r.cfg.PollPeriodMs) * time.Millisecond
	r.logger.Infof("Watching %s, filtering by %s frustum every %v", r.cfg.CloudCamera, r.cfg.ViewCamera, period)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := FilterOnce(ctx, r); err != nil {
			r.logger.Warnf("Filter cycle failed: %v", err)
			continue
		}
		r.state.CyclesProcessed++
	}
}

// FilterOnce runs one filter cycle: capture a cloud, look up the camera
// transform, apply the depth-band and field-of-view masks, and write the
// filtered cloud to the output channel. Skips (with an error describing
// why) until both a cloud and intrinsics are available.
func FilterOnce(ctx context.Context, r *Robot) error {
	cloud, err := r.cloudCam.NextPointCloud(ctx, nil)
	if err != nil {
		return fmt.Errorf("point cloud not available yet: %w", err)
	}
	if cloud == nil || cloud.Size() == 0 {
		return fmt.Errorf("empty point cloud from %s", r.cfg.CloudCamera)
	}
	if cloud.Size() > maxPipelinePoints {
		cloud = downsamplePointCloud(r, cloud, maxPipelinePoints)
	}
	r.state.LastCloud = cloud

	// Intrinsics are re-fetched every cycle and passed by value into the
	// projection so there is no camera-info state carried across cycles.
	intrinsics, err := viewIntrinsics(ctx, r)
	if err != nil {
		return err
	}

	rot, trans, err := viewTransform(ctx, r)
	if err != nil {
		// Fatal to this cycle only; no retry queue.
		return fmt.Errorf("transform lookup %s -> %s: %w", r.cfg.ViewCamera, r.cfg.CloudCamera, err)
	}

	pts := frustum.Points(cloud)
	ptsCam := frustum.ToCameraFrame(pts, rot, trans)
	mask, err := frustum.VisibleMask(ptsCam, r.cfg.MinDepthMm, r.cfg.MaxDepthMm, intrinsics)
	if err != nil {
		return fmt.Errorf("visibility mask: %w", err)
	}
	visible, err := frustum.Apply(ptsCam, mask)
	if err != nil {
		return fmt.Errorf("apply mask: %w", err)
	}

	filtered := frustum.ToCloud(visible)
	r.state.LastFiltered = filtered
	r.logger.Infof("Observed %d of %d points from %s", filtered.Size(), cloud.Size(), r.cfg.ViewCamera)

	if err := saveFilteredCloud(r, filtered); err != nil {
		return fmt.Errorf("publish filtered cloud: %w", err)
	}
	return nil
}

// viewIntrinsics fetches the view camera's pinhole intrinsics. The cycle
// is skipped until the camera reports them.
func viewIntrinsics(ctx context.Context, r *Robot) (*transform.PinholeCameraIntrinsics, error) {
	props, err := r.viewCam.Properties(ctx)
	if err != nil {
		return nil, fmt.Errorf("camera properties not available yet: %w", err)
	}
	if props.IntrinsicParams == nil {
		return nil, fmt.Errorf("camera %s has not reported intrinsics yet", r.cfg.ViewCamera)
	}
	intrinsics := *props.IntrinsicParams
	if err := intrinsics.CheckValid(); err != nil {
		return nil, fmt.Errorf("camera %s intrinsics invalid: %w", r.cfg.ViewCamera, err)
	}
	return &intrinsics, nil
}

// viewTransform looks up the rigid transform of the view camera in the
// cloud camera's frame via the robot's frame system. When both roles are
// served by one camera the cloud is already in its frame.
func viewTransform(ctx context.Context, r *Robot) (*spatialmath.RotationMatrix, r3.Vector, error) {
	if r.viewCam == r.cloudCam {
		pose := spatialmath.NewZeroPose()
		return pose.Orientation().RotationMatrix(), r3.Vector{}, nil
	}

	poseInCloudFrame, err := r.fsSvc.GetPose(ctx, r.viewCam.Name().Name, r.cloudCam.Name().Name, nil, nil)
	if err != nil {
		return nil, r3.Vector{}, err
	}
	pose := poseInCloudFrame.Pose()
	return pose.Orientation().RotationMatrix(), pose.Point(), nil
}

// downsamplePointCloud thins a cloud to approximately targetPoints by
// stride sampling.
func downsamplePointCloud(r *Robot, cloud pointcloud.PointCloud, targetPoints int) pointcloud.PointCloud {
	step := cloud.Size() / targetPoints
	if step < 1 {
		step = 1
	}
	downsampled := pointcloud.NewBasicEmpty()
	i := 0
	cloud.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
		if i%step == 0 {
			if err := downsampled.Set(p, d); err != nil {
				r.logger.Warnf("Failed to add point: %v", err)
			}
		}
		i++
		return true
	})
	r.logger.Debugf("Downsampled %d points to %d", cloud.Size(), downsampled.Size())
	return downsampled
}
