package rawfile

import (
	"fmt"
	"math"
)

// ExposureValue is the EV of the shot, normalized to ISO 100:
// log2(N^2/t) - log2(ISO/100). f/5.6 at 1/4000 and ISO 100 is about EV 17.
// The bool is false when the file lacked aperture, shutter or ISO.
func (m Metadata) ExposureValue() (float64, bool) {
	if m.FNumber <= 0 || m.ExposureTime <= 0 || m.ISO <= 0 {
		return 0, false
	}
	ev := math.Log2(m.FNumber*m.FNumber/m.ExposureTime) - math.Log2(float64(m.ISO)/100.0)
	return ev, true
}

// IlluminanceAtMaxExposure is roughly how many lux at the sensor would
// fully expose a channel, per the usual EV to illuminance scale (EV 0 is
// 2.5 lux).
func (m Metadata) IlluminanceAtMaxExposure() (float64, bool) {
	ev, ok := m.ExposureValue()
	if !ok {
		return 0, false
	}
	return 2.5 * math.Pow(2, ev), true
}

func (m Metadata) exposureString() string {
	ev, ok := m.ExposureValue()
	if !ok {
		return ""
	}
	lux, _ := m.IlluminanceAtMaxExposure()
	return fmt.Sprintf(", EV %.1f (%.0f lux)", ev, lux)
}
