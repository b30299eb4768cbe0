package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/biotinker/viewopt"
	"github.com/biotinker/viewopt/internal/creds"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/robot/client"
	"go.viam.com/utils/rpc"
)

func main() {
	credsPath := flag.String("creds", "", "path to robot credentials JSON file (or set VIEWOPT_* env vars)")
	flag.Parse()

	logger := logging.NewDebugLogger("viewopt")

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
	logger.Info("Resources:", machine.ResourceNames())

	r, err := viewopt.NewRobot(ctx, machine, viewopt.DefaultConfig(), logger)
	if err != nil {
		logger.Fatal(err)
	}

	if err := viewopt.Run(ctx, r); err != nil {
		logger.Fatal(err)
	}
}
