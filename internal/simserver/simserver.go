// Package simserver routes incoming typed NMEA/AIS records: own-ship fixes
// (GPRMC, PSIMSNS) update the coordinator's OwnShip state, AIS position
// reports are smoothed, position-predicted and distance-gated before they
// reach the coordinator, and every decorated record is forwarded to the
// relay as JSON passthrough telemetry.
package simserver

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/rvgdss/colav/internal/geo"
	"github.com/rvgdss/colav/internal/nmea"
	"github.com/rvgdss/colav/internal/relay"
	"github.com/rvgdss/colav/internal/types"
)

const (
	defaultPredictedInterval = 30.0 // seconds
	defaultDistanceFilter    = 1.0  // geodetic degrees
)

// Sink is the coordinator-side hook this router drives: own-ship fix
// updates, AIS target updates, and a read-back of the current own-ship fix
// used for PSIMSNS heading merges and AIS distance-gating.
type Sink interface {
	UpdateOwnShip(types.OwnShip)
	UpdateTarget(mmsi string, lat, lon, courseDeg, speedKn float64)
	OwnShipSnapshot() types.OwnShip
}

// Router decodes raw sentences, decorates AIS records, and forwards
// everything to the relay hub.
type Router struct {
	sink   Sink
	hub    *relay.Hub
	logger *logrus.Logger

	predictedInterval float64
	distanceFilter    float64
}

func New(sink Sink, hub *relay.Hub, logger *logrus.Logger) *Router {
	return &Router{
		sink:              sink,
		hub:               hub,
		logger:            logger,
		predictedInterval: defaultPredictedInterval,
		distanceFilter:    defaultDistanceFilter,
	}
}

// Route parses one raw line and dispatches it. Malformed or unrecognized
// lines are logged at warn and dropped.
func (r *Router) Route(line string) {
	rec, err := nmea.Parse(line)
	if err != nil {
		r.logger.WithError(err).WithField("line", line).Warn("simserver: dropped unparseable sentence")
		return
	}

	switch v := rec.(type) {
	case nmea.GPRMC:
		r.routeGPRMC(v)
	case nmea.GPGGA:
		r.hub.Broadcast(v.MessageID(), v)
	case nmea.PSIMSNS:
		r.routePSIMSNS(v)
	case nmea.AISPositionReport:
		r.routeAIS(v)
	}
}

func (r *Router) routeGPRMC(v nmea.GPRMC) {
	lat := geo.DegToDec(v.Lat, v.LatDir)
	lon := geo.DegToDec(v.Lon, v.LonDir)
	own := types.OwnShip{
		Lat:    lat,
		Lon:    lon,
		Speed:  geo.KnToMps(v.SpeedOverGrndKn),
		Course: v.TrueCourseDeg * math.Pi / 180,
	}
	r.sink.UpdateOwnShip(own)
	r.hub.Broadcast(v.MessageID(), v)
}

func (r *Router) routePSIMSNS(v nmea.PSIMSNS) {
	// Heading-only update: preserve position/speed, overwrite course.
	own := r.sink.OwnShipSnapshot()
	own.Course = v.HeadDeg * math.Pi / 180
	r.sink.UpdateOwnShip(own)
	r.hub.Broadcast(v.MessageID(), v)
}

// routeAIS projects the report forward by predictedInterval seconds,
// distance-gates it against own-ship, and — if it survives — updates the
// coordinator's target map and forwards the decorated record.
func (r *Router) routeAIS(v nmea.AISPositionReport) {
	own := r.sink.OwnShipSnapshot()

	if math.Abs(v.Lat-own.Lat) > r.distanceFilter || math.Abs(v.Lon-own.Lon) > r.distanceFilter {
		return
	}

	latP, lonP := predictPosition(v, r.predictedInterval)

	r.sink.UpdateTarget(v.MMSI, v.Lat, v.Lon, v.CourseDeg, v.SpeedKn)

	decorated := map[string]any{
		"mmsi":    v.MMSI,
		"lat":     v.Lat,
		"lon":     v.Lon,
		"course":  v.CourseDeg,
		"heading": v.HeadingDeg,
		"speed":   v.SpeedKn,
		"lat_p":   latP,
		"lon_p":   lonP,
	}
	r.hub.Broadcast(v.MessageID(), decorated)
}

// predictPosition projects a constant-velocity position interval seconds
// ahead in a local ENU tangent frame centered on the report itself.
func predictPosition(v nmea.AISPositionReport, interval float64) (lat, lon float64) {
	if v.SpeedKn == 0 {
		return v.Lat, v.Lon
	}
	courseRad := v.CourseDeg * math.Pi / 180
	speed := geo.KnToMps(v.SpeedKn)
	dx := speed * interval * math.Sin(courseRad)
	dy := speed * interval * math.Cos(courseRad)
	return geo.XYZToCoords(dx, dy, v.Lat, v.Lon, 0, 0)
}
