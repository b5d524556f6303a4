// Package config parses the CLI flags of SPEC_FULL.md §6.7, following the
// teacher's flag.* + os.Getenv fallback style in cmd/valkyrie/main.go.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// Config holds every process-level knob.
type Config struct {
	UpdateInterval  time.Duration
	SafetyRadiusM   float64
	SafetyRadiusTol float64
	MaxD2CPA        float64
	GunnerusMMSI    string
	DomainsPath     string
	Listen          string
	Mode            string
	ReplayPath      string
	SerialPort      string
	SerialBaud      int
	LogLevel        string
	LogFormat       string
}

// Parse builds a Config from CLI flags, falling back to environment
// variables and then the documented defaults.
func Parse(args []string) Config {
	fs := flag.NewFlagSet("colav", flag.ExitOnError)

	updateInterval := fs.Float64("update-interval", envFloat("COLAV_UPDATE_INTERVAL", 1), "coordinator update interval, seconds")
	safetyRadius := fs.Float64("safety-radius", envFloat("COLAV_SAFETY_RADIUS", 200), "safety radius, meters")
	safetyRadiusTol := fs.Float64("safety-radius-tol", envFloat("COLAV_SAFETY_RADIUS_TOL", 1.5), "safety radius tolerance factor")
	maxD2CPA := fs.Float64("max-d2cpa", envFloat("COLAV_MAX_D2CPA", 2000), "max distance to CPA, meters")
	gunnerusMMSI := fs.String("gunnerus-mmsi", os.Getenv("COLAV_GUNNERUS_MMSI"), "own-ship MMSI to exclude from AIS processing")
	domainsPath := fs.String("domains-path", envOr("COLAV_DOMAINS_PATH", "cbf_domains.json"), "ship-domain table JSON path")
	listen := fs.String("listen", envOr("COLAV_LISTEN", ":8088"), "HTTP/WS listen address")
	mode := fs.String("mode", envOr("COLAV_MODE", "rt"), "data source mode: rt|replay|4dof")
	replayPath := fs.String("replay-path", os.Getenv("COLAV_REPLAY_PATH"), "replay log file path (mode=replay)")
	serialPort := fs.String("serial-port", os.Getenv("COLAV_SERIAL_PORT"), "serial device path (mode=rt)")
	serialBaud := fs.Int("serial-baud", envInt("COLAV_SERIAL_BAUD", 38400), "serial baud rate (mode=rt)")
	logLevel := fs.String("log-level", envOr("COLAV_LOG_LEVEL", "info"), "log level")
	logFormat := fs.String("log-format", envOr("COLAV_LOG_FORMAT", "json"), "log format: json|text")

	fs.Parse(args)

	return Config{
		UpdateInterval:  time.Duration(*updateInterval * float64(time.Second)),
		SafetyRadiusM:   *safetyRadius,
		SafetyRadiusTol: *safetyRadiusTol,
		MaxD2CPA:        *maxD2CPA,
		GunnerusMMSI:    *gunnerusMMSI,
		DomainsPath:     *domainsPath,
		Listen:          *listen,
		Mode:            *mode,
		ReplayPath:      *replayPath,
		SerialPort:      *serialPort,
		SerialBaud:      *serialBaud,
		LogLevel:        *logLevel,
		LogFormat:       *logFormat,
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		var f float64
		if _, err := fmt.Sscan(v, &f); err == nil {
			return f
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscan(v, &i); err == nil {
			return i
		}
	}
	return def
}
