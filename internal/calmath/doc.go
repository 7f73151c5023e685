// Package calmath provides the calendar arithmetic used to decide which days a meeting
// search covers: US federal holidays (fixed-date and floating "Nth weekday" rules),
// business-day checks, and resolution of the search date range from either a day count
// or an explicit list of selected dates.
//
// All date arithmetic is done on civil dates and wall-clock times, so daylight-saving
// transitions never shift a day boundary.
package calmath
