// Package snowflake decodes creation times from Twitter-style 64-bit IDs.
package snowflake

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Epoch is the custom epoch of the ID scheme, in milliseconds since the Unix epoch.
const Epoch uint64 = 1288834974657

// timestampShift is the number of low bits holding worker and sequence data.
const timestampShift = 22

// Millis returns the creation time of id in milliseconds since the Unix epoch.
func Millis(id uint64) uint64 {
	return (id >> timestampShift) + Epoch
}

// Seconds returns the creation time of id in whole seconds since the Unix epoch.
// Sub-second precision is truncated.
func Seconds(id uint64) int64 {
	return int64(Millis(id) / 1000)
}

// Time returns the creation instant of id in UTC.
func Time(id uint64) time.Time {
	return time.UnixMilli(int64(Millis(id))).UTC()
}

// Parse parses a decimal ID string such as "1541815603606036480". A single
// leading '+' is allowed.
func Parse(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(s, "+"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse id %q: %w", s, err)
	}
	return id, nil
}
