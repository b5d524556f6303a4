package simserver

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/rvgdss/colav/internal/nmea"
	"github.com/rvgdss/colav/internal/relay"
	"github.com/rvgdss/colav/internal/types"
)

type fakeSink struct {
	own           types.OwnShip
	lastTargetMMSI string
	lastLat, lastLon, lastCourse, lastSpeed float64
}

func (f *fakeSink) UpdateOwnShip(own types.OwnShip) { f.own = own }

func (f *fakeSink) UpdateTarget(mmsi string, lat, lon, courseDeg, speedKn float64) {
	f.lastTargetMMSI = mmsi
	f.lastLat, f.lastLon, f.lastCourse, f.lastSpeed = lat, lon, courseDeg, speedKn
}

func (f *fakeSink) OwnShipSnapshot() types.OwnShip { return f.own }

func testHub() *relay.Hub {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	return relay.NewHub(logger, nil)
}

func TestRouteGPRMCUpdatesOwnShip(t *testing.T) {
	sink := &fakeSink{}
	r := New(sink, testHub(), logrus.New())

	r.Route("$GPRMC,123519,A,6324.6020,N,01024.0280,E,10.0,090.0,230394,,,A")

	if sink.own.Course == 0 {
		t.Fatalf("expected nonzero course after GPRMC route")
	}
	if sink.own.Lat == 0 || sink.own.Lon == 0 {
		t.Fatalf("expected own-ship position set after GPRMC route")
	}
}

func TestRoutePSIMSNSMergesHeadingOnly(t *testing.T) {
	sink := &fakeSink{own: types.OwnShip{Lat: 63.4, Lon: 10.4, Speed: 5}}
	r := New(sink, testHub(), logrus.New())

	r.Route("$PSIMSNS,123519,1.0,2.0,0.1,090.0")

	if sink.own.Lat != 63.4 || sink.own.Lon != 10.4 {
		t.Fatalf("PSIMSNS route must not alter position, got (%v,%v)", sink.own.Lat, sink.own.Lon)
	}
	if sink.own.Course == 0 {
		t.Fatalf("expected heading-derived course to be set")
	}
}

func TestRouteAISDropsTargetsBeyondDistanceFilter(t *testing.T) {
	sink := &fakeSink{own: types.OwnShip{Lat: 63.4, Lon: 10.4}}
	r := New(sink, testHub(), logrus.New())

	r.Route("!AI257999999,70.0,20.0,090.0,090.0,10.0")

	if sink.lastTargetMMSI != "" {
		t.Fatalf("expected far-away AIS target to be distance-filtered, got update for %q", sink.lastTargetMMSI)
	}
}

func TestRouteAISUpdatesTargetWithinRange(t *testing.T) {
	sink := &fakeSink{own: types.OwnShip{Lat: 63.4, Lon: 10.4}}
	r := New(sink, testHub(), logrus.New())

	r.Route("!AI257999999,63.402,10.402,090.0,090.0,10.0")

	if sink.lastTargetMMSI != "257999999" {
		t.Fatalf("expected target 257999999 to be updated, got %q", sink.lastTargetMMSI)
	}
	if sink.lastLat != 63.402 || sink.lastLon != 10.402 {
		t.Fatalf("unexpected target position: (%v,%v)", sink.lastLat, sink.lastLon)
	}
}

func TestRouteDropsUnparseableLine(t *testing.T) {
	sink := &fakeSink{}
	r := New(sink, testHub(), logrus.New())

	r.Route("not a valid sentence at all")

	if sink.lastTargetMMSI != "" || sink.own.Lat != 0 {
		t.Fatalf("expected unparseable line to be dropped with no sink updates")
	}
}

func TestPredictPositionStationaryTargetStaysPut(t *testing.T) {
	rec, err := nmea.Parse("!AI257999999,63.4,10.4,000.0,000.0,0.0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v := rec.(nmea.AISPositionReport)

	lat, lon := predictPosition(v, defaultPredictedInterval)
	if lat != v.Lat || lon != v.Lon {
		t.Fatalf("expected stationary target's predicted position to equal its fix, got (%v,%v)", lat, lon)
	}
}
