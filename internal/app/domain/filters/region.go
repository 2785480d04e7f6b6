package filters

import "regexp"

var regionPattern = regexp.MustCompile(`^[A-Z]{2}$`)

// iso3166Alpha2 is the region allowlist. A candidate outside it is coerced to
// null and must never be persisted or logged as a valid region.
var iso3166Alpha2 = map[string]bool{
	"AD": true, "AE": true, "AF": true, "AG": true, "AL": true, "AM": true,
	"AO": true, "AR": true, "AT": true, "AU": true, "AZ": true, "BA": true,
	"BB": true, "BD": true, "BE": true, "BF": true, "BG": true, "BH": true,
	"BI": true, "BJ": true, "BN": true, "BO": true, "BR": true, "BS": true,
	"BT": true, "BW": true, "BY": true, "BZ": true, "CA": true, "CD": true,
	"CF": true, "CG": true, "CH": true, "CI": true, "CL": true, "CM": true,
	"CN": true, "CO": true, "CR": true, "CU": true, "CV": true, "CY": true,
	"CZ": true, "DE": true, "DJ": true, "DK": true, "DM": true, "DO": true,
	"DZ": true, "EC": true, "EE": true, "EG": true, "ER": true, "ES": true,
	"ET": true, "FI": true, "FJ": true, "FM": true, "FR": true, "GA": true,
	"GB": true, "GD": true, "GE": true, "GH": true, "GM": true, "GN": true,
	"GQ": true, "GR": true, "GT": true, "GW": true, "GY": true, "HN": true,
	"HR": true, "HT": true, "HU": true, "ID": true, "IE": true, "IL": true,
	"IN": true, "IQ": true, "IR": true, "IS": true, "IT": true, "JM": true,
	"JO": true, "JP": true, "KE": true, "KG": true, "KH": true, "KI": true,
	"KM": true, "KN": true, "KP": true, "KR": true, "KW": true, "KZ": true,
	"LA": true, "LB": true, "LC": true, "LI": true, "LK": true, "LR": true,
	"LS": true, "LT": true, "LU": true, "LV": true, "LY": true, "MA": true,
	"MC": true, "MD": true, "ME": true, "MG": true, "MH": true, "MK": true,
	"ML": true, "MM": true, "MN": true, "MR": true, "MT": true, "MU": true,
	"MV": true, "MW": true, "MX": true, "MY": true, "MZ": true, "NA": true,
	"NE": true, "NG": true, "NI": true, "NL": true, "NO": true, "NP": true,
	"NR": true, "NZ": true, "OM": true, "PA": true, "PE": true, "PG": true,
	"PH": true, "PK": true, "PL": true, "PS": true, "PT": true, "PW": true,
	"PY": true, "QA": true, "RO": true, "RS": true, "RU": true, "RW": true,
	"SA": true, "SB": true, "SC": true, "SD": true, "SE": true, "SG": true,
	"SI": true, "SK": true, "SL": true, "SM": true, "SN": true, "SO": true,
	"SR": true, "SS": true, "ST": true, "SV": true, "SY": true, "SZ": true,
	"TD": true, "TG": true, "TH": true, "TJ": true, "TL": true, "TM": true,
	"TN": true, "TO": true, "TR": true, "TT": true, "TV": true, "TW": true,
	"TZ": true, "UA": true, "UG": true, "US": true, "UY": true, "UZ": true,
	"VA": true, "VC": true, "VE": true, "VN": true, "VU": true, "WS": true,
	"YE": true, "ZA": true, "ZM": true, "ZW": true,
}

// ValidRegion reports whether code is an allowed ISO-3166-1 alpha-2 region.
func ValidRegion(code string) bool {
	return regionPattern.MatchString(code) && iso3166Alpha2[code]
}

// SanitizeRegion coerces an invalid candidate to nil. The second return
// value reports whether a non-nil candidate was actually changed; callers
// log region_sanitized only in that case.
func SanitizeRegion(candidate *string) (*string, bool) {
	if candidate == nil {
		return nil, false
	}
	if ValidRegion(*candidate) {
		return candidate, false
	}
	return nil, true
}
