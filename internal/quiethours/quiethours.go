// Package quiethours decides whether a tenant may be contacted at a given
// moment and, if not, when contact becomes permissible again. Everything
// here is pure integer arithmetic on epochs so it can be tested without a
// clock.
package quiethours

const secondsPerDay = 86400

// LocalHour returns the tenant-local hour (0..23) for a UTC epoch and a
// whole-hour UTC offset.
func LocalHour(epoch int64, utcOffsetHours int) int {
	local := epoch + int64(utcOffsetHours)*3600
	h := (local % secondsPerDay) / 3600
	if h < 0 {
		h += 24
	}
	return int(h)
}

// IsQuiet reports whether localHour falls inside the do-not-contact window
// [quietStart, quietEnd). A window with quietStart > quietEnd wraps past
// midnight (e.g. 21..8 covers 21,22,23,0..7). quietStart == quietEnd means
// no quiet window at all.
func IsQuiet(localHour, quietStart, quietEnd int) bool {
	if quietStart == quietEnd {
		return false
	}
	if quietStart > quietEnd {
		return localHour >= quietStart || localHour < quietEnd
	}
	return localHour >= quietStart && localHour < quietEnd
}

// NextAllowedEpoch returns the smallest epoch >= nowEpoch at which the
// tenant's local clock reads quietEnd o'clock.
func NextAllowedEpoch(nowEpoch int64, utcOffsetHours, quietEnd int) int64 {
	offset := int64(utcOffsetHours) * 3600
	local := nowEpoch + offset

	if int((local%secondsPerDay)/3600+24)%24 == quietEnd {
		return nowEpoch
	}

	dayStart := local - ((local%secondsPerDay)+secondsPerDay)%secondsPerDay
	candidate := dayStart + int64(quietEnd)*3600
	if candidate < local {
		candidate += secondsPerDay
	}
	return candidate - offset
}
