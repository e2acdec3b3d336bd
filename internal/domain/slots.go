package domain

import (
	"time"
)

// ClockTime is a wall-clock time of day in the exam timezone.
type ClockTime struct {
	Hour   int
	Minute int
}

// SlotWindow is a slot's daily start/end time of day. End is always after Start.
type SlotWindow struct {
	Start ClockTime
	End   ClockTime
}

// slotTable is the fixed slot schedule. It is static configuration shared by
// every contest; slots never overlap within a day.
var slotTable = map[string]SlotWindow{
	"Slot-1": {Start: ClockTime{8, 0}, End: ClockTime{9, 0}},
	"Slot-2": {Start: ClockTime{20, 0}, End: ClockTime{23, 30}},
	"Slot-3": {Start: ClockTime{15, 0}, End: ClockTime{16, 0}},
	"Slot-4": {Start: ClockTime{17, 0}, End: ClockTime{18, 0}},
	"Slot-5": {Start: ClockTime{19, 0}, End: ClockTime{20, 0}},
	"Slot-6": {Start: ClockTime{21, 0}, End: ClockTime{22, 0}},
}

var slotOrder = []string{"Slot-1", "Slot-2", "Slot-3", "Slot-4", "Slot-5", "Slot-6"}

var ist = loadIST()

func loadIST() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+1800)
	}
	return loc
}

// IST is the single authoritative timezone for all exam-window comparisons.
func IST() *time.Location { return ist }

// SlotWindowFor looks up the schedule entry for a slot ID.
func SlotWindowFor(slotID string) (SlotWindow, bool) {
	w, ok := slotTable[slotID]
	return w, ok
}

// ValidSlot reports whether slotID exists in the slot table.
func ValidSlot(slotID string) bool {
	_, ok := slotTable[slotID]
	return ok
}

// SlotIDs returns the slot IDs in display order.
func SlotIDs() []string {
	out := make([]string, len(slotOrder))
	copy(out, slotOrder)
	return out
}

const examDateLayout = "2006-01-02"

// ParseExamDate validates a civil exam date.
func ParseExamDate(date string) (time.Time, error) {
	t, err := time.ParseInLocation(examDateLayout, date, ist)
	if err != nil {
		return time.Time{}, ErrInvalidExamDate
	}
	return t, nil
}

// CivilDate formats t as a YYYY-MM-DD date in IST.
func CivilDate(t time.Time) string {
	return t.In(ist).Format(examDateLayout)
}

// On anchors the window to a civil date, returning absolute start/end instants.
func (w SlotWindow) On(date string) (time.Time, time.Time, error) {
	day, err := ParseExamDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), w.Start.Hour, w.Start.Minute, 0, 0, ist)
	end := time.Date(day.Year(), day.Month(), day.Day(), w.End.Hour, w.End.Minute, 0, 0, ist)
	return start, end, nil
}

// Display formats a clock time the way booking confirmations show it, e.g. "08:00 AM".
func (c ClockTime) Display() string {
	return time.Date(0, 1, 1, c.Hour, c.Minute, 0, 0, time.UTC).Format("03:04 PM")
}
