package datasource

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// serialEpoch is day zero of spreadsheet serial dates.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// maxSerial is 9999-12-31.
const maxSerial = 2958465

// dateLayouts are tried in order after the serial interpretation.
var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"2006.01.02",
}

// ExpandDate splits a raw birth date into zero-padded day and month and a
// plain year. Only the first whitespace-separated token is considered, so a
// trailing time of day is ignored. Input that no interpretation accepts is
// returned unchanged in all three positions; empty input yields three empty strings.
func ExpandDate(raw string) (day, month, year string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", "", ""
	}
	token := strings.Fields(s)[0]

	if t, ok := fromSerial(token); ok {
		return parts(t)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, token); err == nil {
			return parts(t)
		}
	}
	if t, err := dateparse.ParseAny(token, dateparse.PreferMonthFirst(false)); err == nil {
		return parts(t)
	}
	return s, s, s
}

func fromSerial(token string) (time.Time, bool) {
	f, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(f) || f < 1 || f > maxSerial {
		return time.Time{}, false
	}
	return serialEpoch.AddDate(0, 0, int(math.Floor(f))), true
}

func parts(t time.Time) (string, string, string) {
	return fmt.Sprintf("%02d", t.Day()), fmt.Sprintf("%02d", int(t.Month())), strconv.Itoa(t.Year())
}
