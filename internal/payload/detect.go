package payload

import (
	"regexp"
	"sort"
)

// Detection is a tracking ID found in page markup.
type Detection struct {
	// Provider is the provider name, as accepted by Lookup.
	Provider string
	ID       string
}

// detectors map a provider to the patterns of its installation snippet.
// The first capture group is the ID.
var detectors = map[string][]*regexp.Regexp{
	"ga4": {
		regexp.MustCompile(`gtag\s*\(\s*['"]config['"]\s*,\s*['"](G-[A-Z0-9]{4,12})['"]`),
		regexp.MustCompile(`googletagmanager\.com/gtag/js\?id=(G-[A-Z0-9]{4,12})`),
	},
	"heap": {
		regexp.MustCompile(`heap\.load\s*\(\s*['"](\d{4,12})['"]`),
		regexp.MustCompile(`cdn\.heapanalytics\.com/js/heap-(\d{4,12})\.js`),
	},
}

// DetectTrackingIDs returns the distinct tracking IDs installed in markup,
// ordered by provider then ID.
func DetectTrackingIDs(markup string) []Detection {
	seen := make(map[Detection]bool)
	var found []Detection
	for provider, patterns := range detectors {
		for _, re := range patterns {
			for _, m := range re.FindAllStringSubmatch(markup, -1) {
				d := Detection{Provider: provider, ID: m[1]}
				if !seen[d] {
					seen[d] = true
					found = append(found, d)
				}
			}
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Provider != found[j].Provider {
			return found[i].Provider < found[j].Provider
		}
		return found[i].ID < found[j].ID
	})
	return found
}

// DetectTrackingID returns the first ID installed in markup for provider.
func DetectTrackingID(markup, provider string) (string, bool) {
	for _, d := range DetectTrackingIDs(markup) {
		if d.Provider == provider {
			return d.ID, true
		}
	}
	return "", false
}
