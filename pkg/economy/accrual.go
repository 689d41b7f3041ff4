package economy

import (
	"math"
	"time"
)

// MinAccrualInterval debounces accrual recomputation. Requests arriving
// inside the window return the stored amounts unchanged and do not advance
// the accrual clock, so rapid polling cannot reset it without paying out.
const MinAccrualInterval = 10 * time.Second

// Accrue computes the currency mined between lastAccrual and now at
// ratePerHour (the live sum of owned mining power). It returns the delta
// and whether the caller should fold it in and advance the accrual clock.
// A negative elapsed time (clock skew) accrues nothing.
func Accrue(lastAccrual time.Time, ratePerHour float64, now time.Time) (float64, bool) {
	elapsed := now.Sub(lastAccrual)
	if elapsed < MinAccrualInterval {
		return 0, false
	}
	return elapsed.Seconds() * ratePerHour / 3600, true
}

// round2 rounds to two decimal places, the display precision of KVM.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
