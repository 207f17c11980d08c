package egm

import (
	"math"

	"github.com/banshee-data/motion.bridge/internal/egm/wire"
)

// LowestSampleTime is the shortest sample time the controller supports
// (4 ms). It doubles as the nominal fallback when no valid pair of
// timestamps exists yet.
const LowestSampleTime = 0.004

// estimateSampleTime estimates the elapsed time [s] between two messages
// from their header timestamps (controller milliseconds). A non-positive
// delta (first message, clock reset, reordered capture) falls back to the
// nominal value.
func estimateSampleTime(previousMS, currentMS uint32, nominal float64) float64 {
	if nominal <= 0 {
		nominal = LowestSampleTime
	}
	if currentMS <= previousMS {
		return nominal
	}
	return float64(currentMS-previousMS) / 1000.0
}

// estimateVelocities writes the finite-difference velocities (cur-prev)/dt
// into dst. dst is reallocated only when the axis count changes. Mismatched
// or empty inputs degrade to zero velocities rather than failing.
func estimateVelocities(dst []float64, prev, cur []float64, dt float64) []float64 {
	if len(dst) != len(cur) {
		dst = make([]float64, len(cur))
	}
	if dt <= 0 || len(prev) != len(cur) {
		for i := range dst {
			dst[i] = 0
		}
		return dst
	}
	for i := range cur {
		dst[i] = (cur[i] - prev[i]) / dt
	}
	return dst
}

// estimateLinearVelocity computes the Cartesian linear velocity [mm/s]
// between two positions.
func estimateLinearVelocity(prev, cur wire.Cartesian, dt float64) [3]float64 {
	if dt <= 0 {
		return [3]float64{}
	}
	return [3]float64{
		(cur.X - prev.X) / dt,
		(cur.Y - prev.Y) / dt,
		(cur.Z - prev.Z) / dt,
	}
}

// estimateAngularVelocity computes Euler angle rates [deg/s] between two
// orientations. Differences are wrapped into (-180, 180] first so a
// crossing of the +-180 degree seam does not produce a spurious spike.
func estimateAngularVelocity(prev, cur wire.Quaternion, dt float64) [3]float64 {
	if dt <= 0 {
		return [3]float64{}
	}
	pe := quaternionToEuler(prev)
	ce := quaternionToEuler(cur)
	return [3]float64{
		wrapDegrees(ce.X-pe.X) / dt,
		wrapDegrees(ce.Y-pe.Y) / dt,
		wrapDegrees(ce.Z-pe.Z) / dt,
	}
}

// wrapDegrees wraps an angle difference into (-180, 180].
func wrapDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	switch {
	case d > 180:
		d -= 360
	case d <= -180:
		d += 360
	}
	return d
}

// quaternionToEuler converts a unit quaternion to ZYX Euler angles in
// degrees, matching the controller's Euler convention.
func quaternionToEuler(q wire.Quaternion) wire.Euler {
	// Normalize defensively; feedback quaternions are unit within noise.
	n := math.Sqrt(q.U0*q.U0 + q.U1*q.U1 + q.U2*q.U2 + q.U3*q.U3)
	if n == 0 {
		return wire.Euler{}
	}
	w, x, y, z := q.U0/n, q.U1/n, q.U2/n, q.U3/n

	const radToDeg = 180.0 / math.Pi

	sinp := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	return wire.Euler{
		X: math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y)) * radToDeg,
		Y: pitch * radToDeg,
		Z: math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z)) * radToDeg,
	}
}
