package db

import "time"

// TimeLayout is the textual format of every time column. The fixed-width
// fraction keeps lexical order equal to chronological order for UTC values.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nowString() string {
	return time.Now().UTC().Format(TimeLayout)
}
