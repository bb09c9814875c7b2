// Package domain models NOAA Global Historical Climatology Network Daily
// (GHCN-Daily) station records and the maize yield data they are used to explain.
//
// # Data Source
//
// Each station's daily history lives in one ".dly" file named after the station
// ID, published under https://www.ncei.noaa.gov/pub/data/ghcn/daily/all/. The
// station inventory ("ghcnd-stations.txt") lists coordinates and names.
//
// # GHCN-Daily Record Layout
//
// One line per station, year, month and element, 269 bytes wide:
//
//	[0,11)   station ID          e.g. "USW00014936"
//	[11,15)  year                e.g. "1890"
//	[15,17)  month               "01".."12"
//	[17,21)  element             e.g. "TMAX", "TMIN", "PRCP", "SNOW"
//	[21,269) 31 day slots, 8 bytes each:
//	           5-byte signed value, MFLAG, QFLAG, SFLAG
//
// There are always 31 slots. Days past the end of the month carry the -9999
// sentinel and are dropped, never treated as zero.
//
// Units are the raw GHCN integers: tenths of degrees C for TMAX/TMIN and
// tenths of mm for PRCP. They are aggregated as-is.
//
// # Flags
//
//	MFLAG  measurement flag, ignored.
//	QFLAG  quality flag. Any non-blank value means the value failed a quality
//	       check; the observation is discarded whatever the flag letter.
//	SFLAG  source flag. "S" marks values derived from hourly synoptic reports
//	       exchanged on the GTS. NOAA documents these as potentially differing
//	       significantly from true daily data, particularly for precipitation,
//	       so they are discarded.
//
// # Sparse Months
//
// A station/year/month/element with fewer than the configured minimum number
// of observations is replaced by the climatology for that calendar month: the
// statistic over every year of the station's filtered observations. A month
// with no observations at all even after the fallback yields NaN statistics.
//
// # Feature Schema
//
// The feature table has one row per year and, for every configured station and
// month (in configuration order), the columns
//
//	TMAXavg TMAXmin TMAXmax TMINavg TMINmin TMINmax PRCPavg PRCPmax
//
// named "<stat>_<station>_month<m>". Precipitation minimum is omitted because
// rain-free days dominate it. See [BuildSchema].
package domain
