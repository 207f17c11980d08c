// Command egm-bridge runs the EGM motion bridge: a UDP server the robot
// controller's EGM client connects to, replying to each telemetry message
// with a motion reference.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/motion.bridge/internal/config"
	"github.com/banshee-data/motion.bridge/internal/egm"
	"github.com/banshee-data/motion.bridge/internal/egm/network"
	"github.com/banshee-data/motion.bridge/internal/egm/recorder"
)

var (
	configFile = flag.String("config", "", "Path to config file")
	listen     = flag.String("listen", "", "UDP listen address (overrides config)")
	demo       = flag.Bool("demo", false, "Enable demo outputs (overrides config)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *listen != "" {
		cfg.Server.Address = *listen
	}
	if *demo {
		cfg.Robot.UseDemoOutputs = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var opts []egm.Option
	if cfg.Telemetry.Enabled {
		sink, err := newSink(cfg.Telemetry)
		if err != nil {
			log.Fatalf("Failed to open telemetry sink: %v", err)
		}
		async := recorder.NewAsync(sink, cfg.Telemetry.Buffer)
		async.Start(ctx)
		opts = append(opts, egm.WithRecorder(async))
	}

	iface, err := egm.NewBaseInterface(cfg.Interface(), opts...)
	if err != nil {
		log.Fatalf("Invalid interface configuration: %v", err)
	}

	server := network.NewServer(network.ServerConfig{
		Address: cfg.Server.Address,
		RcvBuf:  cfg.Server.RcvBuf,
	}, iface)
	iface.BindTransport(server)

	log.Printf("Starting EGM bridge on %s (axes=%d demo=%v)",
		cfg.Server.Address, cfg.Robot.Axes, cfg.Robot.UseDemoOutputs)

	if err := server.Start(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Server error: %v", err)
	}
}

func newSink(tc config.TelemetryConfig) (recorder.Sink, error) {
	if tc.SQLitePath != "" {
		return recorder.NewSQLiteStore(tc.SQLitePath)
	}
	path := tc.CSVPath
	if path == "" {
		path = "egm_telemetry.csv"
	}
	return recorder.NewCSVSink(path)
}
