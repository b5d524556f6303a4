package coordinator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rvgdss/colav/internal/arpa"
	"github.com/rvgdss/colav/internal/cbf"
	"github.com/rvgdss/colav/internal/relay"
	"github.com/rvgdss/colav/internal/types"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	return l
}

func squareDomainTable() types.DomainTable {
	square := types.Domain{D: []float64{3, 3, 3, 3}, Z1: []float64{1, 0, -1, 0}, Z2: []float64{0, 1, 0, -1}}
	table := make(types.DomainTable, len(types.RequiredClasses))
	for _, c := range types.RequiredClasses {
		table[c] = square
	}
	return table
}

func TestTickSkipsWhenNoTargets(t *testing.T) {
	hub := relay.NewHub(testLogger(), nil)
	c := New(Config{UpdateInterval: time.Second, Arpa: arpa.DefaultConfig(), Cbf: cbf.DefaultConfig()}, testLogger(), hub, squareDomainTable())
	c.tick() // must not panic with an empty target map
}

func TestUpdateTargetAndTickProducesArpaAndEncounterEmission(t *testing.T) {
	hub := relay.NewHub(testLogger(), nil)
	c := New(Config{UpdateInterval: time.Second, Arpa: arpa.DefaultConfig(), Cbf: cbf.DefaultConfig()}, testLogger(), hub, squareDomainTable())

	c.UpdateOwnShip(types.OwnShip{Lat: 63.4, Lon: 10.4, Speed: 5, Course: 0})
	c.UpdateTarget("257999999", 63.402, 10.4, 180, 5)

	c.tick()

	st := c.Status()
	if st.TrackedTargets != 1 {
		t.Fatalf("expected 1 tracked target, got %d", st.TrackedTargets)
	}
	if st.TickCount != 1 {
		t.Fatalf("expected tick count 1, got %d", st.TickCount)
	}
}

func TestDomainTableRoundTripsThroughPersistDomains(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cbf_domains.json")
	table := squareDomainTable()

	if err := persistDomains(path, table); err != nil {
		t.Fatalf("persistDomains: %v", err)
	}
	loaded, err := LoadDomains(path)
	if err != nil {
		t.Fatalf("LoadDomains: %v", err)
	}
	for _, class := range types.RequiredClasses {
		if len(loaded[class].D) != len(table[class].D) {
			t.Fatalf("class %s: domain length mismatch after round-trip", class)
		}
	}
}

func TestHandleDomainUpdateRejectsIncompleteTable(t *testing.T) {
	hub := relay.NewHub(testLogger(), nil)
	dir := t.TempDir()
	c := New(Config{UpdateInterval: time.Second, DomainsPath: filepath.Join(dir, "cbf_domains.json"), Arpa: arpa.DefaultConfig(), Cbf: cbf.DefaultConfig()}, testLogger(), hub, squareDomainTable())

	before := c.domainFor(types.Safe)

	c.handleDomainUpdate([]byte(`{"SAFE":{"d":[1],"z1":[1],"z2":[0]}}`))

	after := c.domainFor(types.Safe)
	if len(after.D) != len(before.D) {
		t.Fatalf("expected rejected update to leave domain table unchanged")
	}
}
