package util

import (
	"fmt"
	"math"
)

// Timeify converts a duration in seconds to "HH:MM:SS" format. Used to
// report how long a pack/unpack run took, not a live progress estimate:
// PayloadMux's Run methods report completion or failure, never an
// incremental byte count mid-run, so there is no signal to drive a
// done/total/speed/ETA figure from.
func Timeify(seconds int) string {
	hours := int(math.Floor(float64(seconds) / 3600))
	seconds %= 3600
	minutes := int(math.Floor(float64(seconds) / 60))
	seconds %= 60
	hours = int(math.Max(float64(hours), 0))
	minutes = int(math.Max(float64(minutes), 0))
	seconds = int(math.Max(float64(seconds), 0))
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// Sizeify converts bytes to a human-readable string (KiB, MiB, GiB, TiB).
func Sizeify(size int64) string {
	if size >= int64(TiB) {
		return fmt.Sprintf("%.2f TiB", float64(size)/float64(TiB))
	} else if size >= int64(GiB) {
		return fmt.Sprintf("%.2f GiB", float64(size)/float64(GiB))
	} else if size >= int64(MiB) {
		return fmt.Sprintf("%.2f MiB", float64(size)/float64(MiB))
	} else {
		return fmt.Sprintf("%.2f KiB", float64(size)/float64(KiB))
	}
}
