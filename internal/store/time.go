package store

import "time"

func unixMilliToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
