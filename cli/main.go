package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/biotinker/viewopt"
	"github.com/biotinker/viewopt/frustum"
	"github.com/biotinker/viewopt/internal/creds"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/robot/client"
	"go.viam.com/utils/rpc"
)

var steps = map[string]func(context.Context, *viewopt.Robot) error{
	"filter":   viewopt.FilterOnce,
	"watch":    viewopt.WatchAndFilter,
	"optimize": viewopt.OptimizeCoverage,
	"run":      viewopt.Run,
}

const validSteps = "filter, watch, optimize, run"

func main() {
	credsPath := flag.String("creds", "", "path to robot credentials JSON file (or set VIEWOPT_* env vars)")
	step := flag.String("step", "", "step to run: "+validSteps)
	cloudCam := flag.String("cloud-cam", "", "point cloud camera name (overrides default)")
	viewCam := flag.String("view-cam", "", "view camera name (overrides default)")
	outDir := flag.String("out", "", "artifact output directory (overrides default)")
	pcdPath := flag.String("pcd", "", "optimize over a PCD file instead of a live capture")
	flag.Parse()

	logger := logging.NewLogger("viewopt-cli")

	if *step == "" {
		logger.Fatal("-step flag is required; valid steps: " + validSteps)
	}
	if _, ok := steps[*step]; !ok {
		logger.Fatalf("unknown step %q; valid steps: %s", *step, validSteps)
	}

	// Offline optimization over a PCD file needs no robot at all.
	if *step == "optimize" && *pcdPath != "" {
		if err := optimizeFile(*pcdPath, *outDir, logger); err != nil {
			logger.Fatal(err)
		}
		return
	}

	robotCreds, err := creds.Load(*credsPath)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	machine, err := client.New(
		ctx,
		robotCreds.Address,
		logger,
		client.WithDialOptions(rpc.WithEntityCredentials(
			robotCreds.EntityID,
			rpc.Credentials{
				Type:    rpc.CredentialsTypeAPIKey,
				Payload: robotCreds.APIKey,
			})),
	)
	if err != nil {
		logger.Fatal(err)
	}
	defer machine.Close(context.Background())

	logger.Info("Connected to robot")

	cfg := viewopt.DefaultConfig()
	if *cloudCam != "" {
		cfg.CloudCamera = *cloudCam
		if *viewCam == "" {
			cfg.ViewCamera = *cloudCam
		}
	}
	if *viewCam != "" {
		cfg.ViewCamera = *viewCam
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}

	r, err := viewopt.NewRobot(ctx, machine, cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}

	logger.Infof("=== Running step: %s ===", *step)
	if err := steps[*step](ctx, r); err != nil {
		logger.Fatal(err)
	}
	logger.Infof("Step %s completed successfully", *step)

	if result := r.State().LastResult; result != nil {
		logger.Infof("Reward %.0f -> %.0f over %d iterations",
			result.StartReward, result.FinalReward, result.Iterations)
		logger.Infof("Final pose: dist=%.2f elev=%.1f azim=%.1f",
			result.FinalPose.Dist, result.FinalPose.Elev, result.FinalPose.Azim)
	}
}

// optimizeFile runs the coverage optimization over a PCD file with the
// reference intrinsics and meter-band defaults.
func optimizeFile(path, outDir string, logger logging.Logger) error {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cloud, err := pointcloud.ReadPCD(f)
	if err != nil {
		return fmt.Errorf("read PCD %s: %w", path, err)
	}
	logger.Infof("Loaded %d points from %s", cloud.Size(), path)

	est, err := frustum.NewEstimator(frustum.DefaultIntrinsics(), frustum.DefaultEstimatorConfig())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := frustum.DefaultOptimizerConfig()
	result, err := frustum.Optimize(ctx, est, frustum.Points(cloud), cfg.Start, cfg, nil)
	if err != nil {
		return err
	}

	logger.Infof("Reward %.0f -> %.0f over %d iterations", result.StartReward, result.FinalReward, result.Iterations)
	logger.Infof("Final pose: dist=%.2f elev=%.1f azim=%.1f",
		result.FinalPose.Dist, result.FinalPose.Elev, result.FinalPose.Azim)

	if outDir != "" {
		visible := est.Visible(result.FinalPose, frustum.Points(cloud))
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		out, err := os.Create(outDir + "/points_visible.pcd")
		if err != nil {
			return err
		}
		defer out.Close()
		return pointcloud.ToPCD(frustum.ToCloud(visible), out, pointcloud.PCDBinary)
	}
	return nil
}
