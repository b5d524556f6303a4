// Package aistrack maintains bounded per-MMSI history of AIS reports and
// applies a zero-phase low-pass filter once enough samples have
// accumulated, smoothing the zig-zag and course noise raw AIS broadcasts
// otherwise show in the UI and feed into the encounter classifier.
package aistrack

import (
	"math"
	"time"

	"github.com/rvgdss/colav/internal/fusion"
	"github.com/rvgdss/colav/internal/types"
)

const (
	minSamplesForFilter = 15
	normalizedCutoff    = 0.2 // 0.1 x Nyquist(0.5)
)

// Smoother holds per-MMSI state and the shared filter design: a zero-phase
// Butterworth pass for position/course history, plus a per-target Kalman
// track filter that derives course from fused velocity rather than
// filtering the course angle directly (avoiding wraparound artifacts near
// 0/360 degrees).
type Smoother struct {
	filter  butter3Lowpass
	tracks  map[string]*fusion.TrackFilter
}

// New constructs a Smoother with the fixed filter design used throughout
// the pipeline (cutoff and order are not run-time configurable).
func New() *Smoother {
	return &Smoother{
		filter: newButter3Lowpass(normalizedCutoff),
		tracks: make(map[string]*fusion.TrackFilter),
	}
}

// Update appends a new raw sample to target's histories, evicts beyond
// types.HistoryLen, and republishes PosHistory/FilteredCourse.
func (s *Smoother) Update(target *types.AisTarget, lat, lon, course float64) {
	target.LatHistory = appendCapped(target.LatHistory, lat)
	target.LonHistory = appendCapped(target.LonHistory, lon)
	target.CourseHistory = appendCapped(target.CourseHistory, course)

	latSeries := target.LatHistory
	lonSeries := target.LonHistory
	courseSeries := target.CourseHistory

	if len(latSeries) >= minSamplesForFilter {
		latSeries = s.filter.filtfilt(target.LatHistory)
		lonSeries = s.filter.filtfilt(target.LonHistory)
		courseSeries = s.filter.filtfilt(target.CourseHistory)
	}

	pos := make([][2]float64, len(latSeries))
	for i := range latSeries {
		pos[i] = [2]float64{lonSeries[i], latSeries[i]}
	}
	target.PosHistory = pos
	if len(courseSeries) > 0 {
		target.FilteredCourse = courseSeries[len(courseSeries)-1]
	}

	track, ok := s.tracks[target.MMSI]
	if !ok {
		track = fusion.NewTrackFilter()
		s.tracks[target.MMSI] = track
	}
	vx, vy := track.Update(time.Now(), lon, lat)
	if vx != 0 || vy != 0 {
		course := math.Atan2(vx, vy) * 180 / math.Pi
		if course < 0 {
			course += 360
		}
		target.FilteredCourse = course
	}
}

func appendCapped(hist []float64, v float64) []float64 {
	hist = append(hist, v)
	if len(hist) > types.HistoryLen {
		hist = hist[len(hist)-types.HistoryLen:]
	}
	return hist
}
