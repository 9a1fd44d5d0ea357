package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Dhaka")
	if err != nil {
		panic(err)
	}
}

// force timezone to be Dhaka because the price source publishes on
// Bangladesh Standard Time; date identity for the daily history and the
// hour gate must not drift with wherever the job happens to run.
func Now() time.Time {
	return time.Now().In(Location)
}

// Today returns the calendar date (day granularity) in Dhaka time.
func Today() string {
	return Now().Format(time.DateOnly)
}
