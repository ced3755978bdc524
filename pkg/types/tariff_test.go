package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTariffKind(t *testing.T) {
	assert.True(t, TariffTRS.Valid())
	assert.True(t, TariffTRD.Valid())
	assert.True(t, TariffTRT.Valid())
	assert.False(t, TariffKind("TGC").Valid())

	assert.False(t, TariffTRS.TimeOfUse())
	assert.True(t, TariffTRD.TimeOfUse())
	assert.True(t, TariffTRT.TimeOfUse())
}

func TestDefaultPriceTableValid(t *testing.T) {
	require.NoError(t, DefaultPriceTable().Validate())
}

func TestTieredScheduleValidate(t *testing.T) {
	valid := TieredSchedule{Tiers: []Tier{
		{UpperKWH: kwh(100), PriceKWH: 1},
		{UpperKWH: nil, PriceKWH: 2},
	}}
	require.NoError(t, valid.Validate())

	assert.Error(t, TieredSchedule{}.Validate(), "empty schedule")

	assert.Error(t, TieredSchedule{Tiers: []Tier{
		{UpperKWH: kwh(100), PriceKWH: 1},
	}}.Validate(), "last tier must be unbounded")

	assert.Error(t, TieredSchedule{Tiers: []Tier{
		{UpperKWH: nil, PriceKWH: 1},
		{UpperKWH: kwh(100), PriceKWH: 2},
	}}.Validate(), "unbounded tier must be last")

	assert.Error(t, TieredSchedule{Tiers: []Tier{
		{UpperKWH: kwh(200), PriceKWH: 1},
		{UpperKWH: kwh(100), PriceKWH: 2},
		{UpperKWH: nil, PriceKWH: 3},
	}}.Validate(), "bounds must ascend")

	assert.Error(t, TieredSchedule{Tiers: []Tier{
		{UpperKWH: kwh(100), PriceKWH: -1},
		{UpperKWH: nil, PriceKWH: 2},
	}}.Validate(), "negative price")
}

func TestTOUScheduleValidate(t *testing.T) {
	s := TOUSchedule{RatesKWH: map[string]float64{
		PeriodPeak:    12,
		PeriodOffpeak: 4,
	}}
	require.NoError(t, s.Validate(PeriodPeak, PeriodOffpeak))

	assert.Error(t, s.Validate(PeriodPeak, PeriodOffpeak, PeriodValley), "missing period")

	s.RatesKWH[PeriodPeak] = -1
	assert.Error(t, s.Validate(PeriodPeak, PeriodOffpeak), "negative rate")
}

func TestDecodePriceTable(t *testing.T) {
	table, err := DecodePriceTable([]byte(`
TRS:
  tiers:
    - upperKWH: 150
      priceKWH: 5.0
    - priceKWH: 9.0
  fixedChargeMonth: 300
TRD:
  ratesKWH:
    peak: 11.5
    offpeak: 4.5
TRT:
  ratesKWH:
    valley: 2.2
    flat: 5.0
    peak: 11.5
`))
	require.NoError(t, err)
	require.Len(t, table.TRS.Tiers, 2)
	require.NotNil(t, table.TRS.Tiers[0].UpperKWH)
	assert.Equal(t, 150.0, *table.TRS.Tiers[0].UpperKWH)
	assert.Nil(t, table.TRS.Tiers[1].UpperKWH)
	assert.Equal(t, 11.5, table.TRD.RatesKWH[PeriodPeak])

	_, err = DecodePriceTable([]byte("not: [valid"))
	assert.Error(t, err)

	// parses but fails validation
	_, err = DecodePriceTable([]byte("TRS:\n  tiers: []\n"))
	assert.Error(t, err)
}

func TestParsePeakWindow(t *testing.T) {
	assert.Equal(t, PeakWindow{StartHour: 17, EndHour: 21}, ParsePeakWindow("17-21"))
	assert.Equal(t, PeakWindow{StartHour: 19, EndHour: 23}, ParsePeakWindow("19-23"))

	// unknown windows fall back instead of failing
	assert.Equal(t, DefaultPeakWindow, ParsePeakWindow("06-10"))
	assert.Equal(t, DefaultPeakWindow, ParsePeakWindow(""))

	assert.Equal(t, "18-22", DefaultPeakWindow.String())
	assert.Equal(t, []string{"17-21", "18-22", "19-23"}, PeakWindowStrings())
}

func TestHolidayPolicy(t *testing.T) {
	p := HolidayPolicy{Enabled: true, Dates: []string{"2026-05-01"}}
	assert.True(t, p.IsHoliday("2026-05-01"))
	assert.False(t, p.IsHoliday("2026-05-02"))

	p.Enabled = false
	assert.False(t, p.IsHoliday("2026-05-01"))
}

func TestOptionsLoc(t *testing.T) {
	// bad zones fall back to Montevideo
	loc := Options{Timezone: "Not/AZone"}.Loc()
	assert.Equal(t, "America/Montevideo", loc.String())

	loc = Options{Timezone: "UTC"}.Loc()
	assert.Equal(t, "UTC", loc.String())
}
