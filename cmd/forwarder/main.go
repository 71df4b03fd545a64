// Command forwarder runs the Forwarding Plane (§4.3, §6.3): it bootstraps
// from the currently-present interfaces, opens the device-control channel,
// and switches frames between every interface it is told about until
// killed.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/syslog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"ethbridge/bridge"
)

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

var (
	daemon  = flag.Bool("daemon", getEnvBoolOrDefault("FORWARDER_DAEMON", false), "Run as daemon in background [env: FORWARDER_DAEMON]")
	pidFile = flag.String("pid-file", getEnvOrDefault("FORWARDER_PID_FILE", "/tmp/forwarder.pid"), "PID file for daemon mode [env: FORWARDER_PID_FILE]")
	logFile = flag.String("log-file", getEnvOrDefault("FORWARDER_LOG_FILE", ""), "Log file (empty for syslog) [env: FORWARDER_LOG_FILE]")
	stop    = flag.Bool("stop", false, "Stop running daemon")
)

func setupLogging(logFile string, isDaemon bool) error {
	if logFile == "" {
		if isDaemon {
			syslogWriter, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, "forwarder")
			if err != nil {
				return fmt.Errorf("failed to connect to syslog: %v", err)
			}
			log.SetOutput(syslogWriter)
			log.SetFlags(0)
		} else {
			log.SetOutput(os.Stdout)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
	} else {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
	return nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <forwarder-address>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "forwarder-address is the unixgram socket path the device manager\n")
		fmt.Fprintf(os.Stderr, "sends device-observation datagrams to (§6.1).\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	dm := bridge.NewDaemonManager(*pidFile, *logFile)

	if *stop {
		if err := dm.Stop(); err != nil {
			log.Fatalf("Failed to stop daemon: %v", err)
		}
		fmt.Printf("Daemon stopped\n")
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	controlAddr := flag.Arg(0)

	if *daemon {
		args := []string{}
		for i, arg := range os.Args {
			if arg != "-daemon" {
				args = append(args, os.Args[i])
			}
		}
		if err := dm.Daemonize(args); err != nil {
			log.Fatalf("Failed to start daemon: %v", err)
		}
		fmt.Printf("Daemon started\n")
		os.Exit(0)
	}

	if err := setupLogging(*logFile, *daemon); err != nil {
		log.Fatalf("Failed to setup logging: %v", err)
	}

	plane, err := bridge.NewPlane()
	if err != nil {
		log.Fatalf("Failed to create forwarding plane: %v", err)
	}

	if err := plane.Bootstrap(); err != nil {
		log.Fatalf("Bootstrap failed: %v", err)
	}

	go func() {
		if err := plane.RunControl(controlAddr); err != nil {
			log.Printf("Control channel exited: %v", err)
		}
	}()

	go logStatsPeriodically(plane, 60*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %s, shutting down...", sig)
		_ = plane.Close()
		dm.Cleanup()
		os.Exit(0)
	}()

	log.Printf("Forwarder listening for device updates on %s", controlAddr)
	if err := plane.Run(); err != nil {
		log.Fatalf("Forwarding plane stopped: %v", err)
	}
}

func logStatsPeriodically(plane *bridge.Plane, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		stats := plane.Stats()
		log.Printf("Stats: %d interfaces, %d queued frames, %d MAC entries",
			stats["interfaces"], stats["queued_frames"], stats["mac_entries"])
	}
}
