package renewal

import "time"

// Plan computes the continuation for a booking that covers [start, expiry) out
// of a requested duration. next is when the renewal must be attempted,
// remaining how many minutes still have to be booked after this session.
//
// Both carry a one-minute adjustment: the check runs one minute after expiry
// so the follow-up quote starts on a fresh window, and one minute is shaved
// off the remainder so the re-check lands slightly before the requested end.
// A small amount of double coverage is preferred over a gap where the vehicle
// is briefly unparked.
//
// remaining <= 0 means the requested duration is satisfied and no renewal is
// needed.
func Plan(start, expiry time.Time, requestedMinutes int) (next time.Time, remaining int) {
	next = expiry.Add(time.Minute)
	end := start.Add(time.Duration(requestedMinutes) * time.Minute).Add(-time.Minute)
	remaining = int(end.Sub(expiry).Minutes())
	return next, remaining
}
