package service

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Roster exports embed their export time in the filename, e.g.
// 同盟统计2025年11月15日23时00分32秒.csv
var exportTimePattern = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日(\d{1,2})时(\d{1,2})分(\d{1,2})秒`)

// ParseExportTime extracts the export timestamp from a roster filename.
func ParseExportTime(fileName string) (time.Time, bool) {
	m := exportTimePattern.FindStringSubmatch(fileName)
	if m == nil {
		return time.Time{}, false
	}
	nums := make([]int, 6)
	for i := range nums {
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = v
	}
	t := time.Date(nums[0], time.Month(nums[1]), nums[2], nums[3], nums[4], nums[5], 0, time.Local)
	if t.Year() != nums[0] || int(t.Month()) != nums[1] || t.Day() != nums[2] {
		// Date components overflowed (e.g. month 13), so the match was noise.
		return time.Time{}, false
	}
	return t, true
}

// FormatExportTime renders a timestamp the way report metadata expects it.
func FormatExportTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
}
