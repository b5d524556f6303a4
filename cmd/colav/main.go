// Command colav runs the collision-avoidance core: it ingests NMEA/AIS
// sentences from a configurable transport, computes CPA geometry and
// COLREGS-style encounter classification, runs a CBF-filtered maneuver
// rollout against the nearest threat, and streams the results to connected
// clients over WebSocket.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rvgdss/colav/internal/arpa"
	"github.com/rvgdss/colav/internal/cbf"
	"github.com/rvgdss/colav/internal/config"
	"github.com/rvgdss/colav/internal/coordinator"
	"github.com/rvgdss/colav/internal/relay"
	"github.com/rvgdss/colav/internal/simserver"
	"github.com/rvgdss/colav/internal/transport/replay"
	"github.com/rvgdss/colav/internal/transport/serialport"
	"github.com/rvgdss/colav/internal/transport/tcp"
	"github.com/rvgdss/colav/internal/types"
	"github.com/rvgdss/colav/pkg/utils"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// frameSource is the common contract every transport adapter implements.
type frameSource interface {
	Frames(ctx context.Context) <-chan string
}

func main() {
	cfg := config.Parse(os.Args[1:])

	logger := utils.NewLogger(cfg.LogLevel, "stdout", cfg.LogFormat)
	logger.WithFields(map[string]any{
		"version": version,
		"mode":    cfg.Mode,
		"listen":  cfg.Listen,
	}).Info("colav: starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	domains, err := coordinator.LoadDomains(cfg.DomainsPath)
	if err != nil {
		logger.WithError(err).Warn("colav: failed to load domain table, using defaults")
		domains = defaultDomainTable()
	}

	hub := relay.NewHub(logger, nil)
	coord := coordinator.New(coordinator.Config{
		UpdateInterval: cfg.UpdateInterval,
		DomainsPath:    cfg.DomainsPath,
		Arpa: arpa.Config{
			SafetyRadiusM:   cfg.SafetyRadiusM,
			SafetyRadiusTol: cfg.SafetyRadiusTol,
			MaxD2CPA:        cfg.MaxD2CPA,
			GunnerusMMSI:    cfg.GunnerusMMSI,
		},
		Cbf: cbf.DefaultConfig(),
	}, logger, hub, domains)
	hub.SetControlHandler(coord.OnControl)

	router := simserver.New(coord, hub, logger)

	source := buildSource(cfg, logger)
	go ingress(ctx, source, router, logger)

	go coord.Run(ctx)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/status", statusHandler(coord))
	mux.HandleFunc("/version", versionHandler)
	mux.Handle("/ws", hub)

	server := &http.Server{Addr: cfg.Listen, Handler: mux}
	go func() {
		logger.WithField("addr", cfg.Listen).Info("colav: http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("colav: http server failed to bind")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("colav: shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("colav: http shutdown error")
	}
}

// defaultTCPAddr is the conventional NMEA-0183-over-TCP port used when
// -mode=rt is selected without a -serial-port.
const defaultTCPAddr = "localhost:10110"

func buildSource(cfg config.Config, logger *logrus.Logger) frameSource {
	switch cfg.Mode {
	case "replay":
		return replay.New(cfg.ReplayPath, logger)
	case "4dof":
		return replay.New(cfg.ReplayPath, logger) // self-play mode reuses the replay reader for scripted input
	default:
		if cfg.SerialPort != "" {
			return serialport.New(cfg.SerialPort, cfg.SerialBaud, logger)
		}
		return tcp.New(defaultTCPAddr, logger)
	}
}

func ingress(ctx context.Context, source frameSource, router *simserver.Router, logger *logrus.Logger) {
	frames := source.Frames(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-frames:
			if !ok {
				return
			}
			router.Route(line)
		}
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statusHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(coord.Status())
	}
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	})
}

// defaultDomainTable is used when cbf_domains.json is absent or invalid;
// conservative placeholder envelopes so the CBF rollout has something to
// constrain against on first boot.
func defaultDomainTable() types.DomainTable {
	square := types.Domain{
		D:  []float64{3, 3, 3, 3},
		Z1: []float64{1, 0, -1, 0},
		Z2: []float64{0, 1, 0, -1},
	}
	table := make(types.DomainTable, len(types.RequiredClasses))
	for _, class := range types.RequiredClasses {
		table[class] = square
	}
	return table
}
