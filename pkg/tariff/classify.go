package tariff

import (
	"time"

	"github.com/Gfacello/ute-energy-cost/pkg/types"
)

const isoDate = "2006-01-02"

// Classify determines which billing period is active at the given instant
// under the configured tariff. The instant is localized to the configured
// timezone; classification is pure and has no error conditions.
func Classify(kind types.TariffKind, now time.Time, opts types.Options) types.PeriodInfo {
	local := now.In(opts.Loc())
	businessDay := isBusinessDay(local, opts.Holidays)
	w := opts.PeakWindow
	if w == (types.PeakWindow{}) {
		w = types.DefaultPeakWindow
	}
	isPeak := businessDay && local.Hour() >= w.StartHour && local.Hour() < w.EndHour

	info := types.PeriodInfo{
		IsPeak:           isPeak,
		IsNonBusinessDay: !businessDay,
	}

	switch kind {
	case types.TariffTRD:
		if isPeak {
			info.Period = types.PeriodPeak
		} else {
			info.Period = types.PeriodOffpeak
		}
	case types.TariffTRT:
		switch {
		case local.Hour() < 7:
			// valley runs until 07:00 local regardless of business day
			info.Period = types.PeriodValley
			info.IsPeak = false
		case isPeak:
			info.Period = types.PeriodPeak
		default:
			info.Period = types.PeriodFlat
			info.IsPeak = false
		}
	default:
		// tiered tariff has no time dependence
		info.Period = types.PeriodTiers
		info.IsPeak = false
	}
	return info
}

func isBusinessDay(local time.Time, holidays types.HolidayPolicy) bool {
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !holidays.IsHoliday(local.Format(isoDate))
}
