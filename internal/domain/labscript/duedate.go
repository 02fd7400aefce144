package labscript

import (
	"fmt"
	"time"
)

// Appliance types that need fabrication lead time before the due date.
var leadTimeAppliances = map[string]bool{
	"printed-try-in":       true,
	"nightguard":           true,
	"direct-load-pmma":     true,
	"direct-load-zirconia": true,
	"ti-bar":               true,
}

const leadTimeBusinessDays = 4

// MinDueDate returns the earliest acceptable due date for an appliance type:
// today plus four business days for lead-time appliances, today otherwise.
func MinDueDate(applianceType string, now time.Time) time.Time {
	day := truncateToDay(now)
	if leadTimeAppliances[applianceType] {
		return addBusinessDays(day, leadTimeBusinessDays)
	}
	return day
}

// ValidateDueDate rejects weekend due dates for every appliance type and
// dates earlier than the appliance's minimum.
func ValidateDueDate(applianceType string, due, now time.Time) error {
	d := truncateToDay(due)
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return fmt.Errorf("due date %s falls on a weekend", d.Format("2006-01-02"))
	}
	min := MinDueDate(applianceType, now)
	if d.Before(min) {
		return fmt.Errorf("due date %s is before the earliest allowed date %s for %s",
			d.Format("2006-01-02"), min.Format("2006-01-02"), applianceType)
	}
	return nil
}

func addBusinessDays(day time.Time, n int) time.Time {
	for added := 0; added < n; {
		day = day.AddDate(0, 0, 1)
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return day
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
