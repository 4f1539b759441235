package withdrawal

// countryOperators maps each supported country to its mobile money
// operators. A withdrawal method must belong to the request's country.
var countryOperators = map[string][]string{
	"benin":        {"mtn-benin"},
	"burkina-faso": {"moov-burkina", "orange-burkina"},
	"cameroon":     {"mtn-cameroon", "orange-cameroon"},
	"congo-brazza": {"mtn-congo", "airtel-congo"},
	"drc-congo":    {"orange-drc", "vodacom-drc", "airtel-drc"},
	"cote-ivoire":  {"mtn-ci", "wave-ci", "moov-ci", "orange-ci"},
	"gabon":        {"airtel-gabon", "libertis-gabon"},
	"togo":         {"moov-togo", "tmoney-togo"},
	"kenya":        {"mpesa-kenya"},
	"rwanda":       {"mtn-rwanda"},
	"senegal":      {"free-senegal", "wave-senegal"},
	"niger":        {"airtel-niger", "mtn-niger", "mauritel-niger"},
}

// SupportedCountry reports whether withdrawals are available in the country.
func SupportedCountry(country string) bool {
	_, ok := countryOperators[country]
	return ok
}

// ValidOperator reports whether the operator serves the country.
func ValidOperator(country, operator string) bool {
	for _, op := range countryOperators[country] {
		if op == operator {
			return true
		}
	}
	return false
}

// OperatorsForCountry returns the operators available in a country.
func OperatorsForCountry(country string) []string {
	return countryOperators[country]
}
