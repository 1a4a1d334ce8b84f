package target

import (
	"cmp"
	"slices"
	"strings"
)

// places are the locations recognised in findings. Names that are also
// common words (Chad, Jordan, Turkey) are left out.
var places = []string{
	// US states
	"Alabama", "Alaska", "Arizona", "Arkansas", "California", "Colorado",
	"Connecticut", "Delaware", "Florida", "Georgia", "Hawaii", "Idaho",
	"Illinois", "Indiana", "Iowa", "Kansas", "Kentucky", "Louisiana", "Maine",
	"Maryland", "Massachusetts", "Michigan", "Minnesota", "Mississippi",
	"Missouri", "Montana", "Nebraska", "Nevada", "New Hampshire", "New Jersey",
	"New Mexico", "New York", "North Carolina", "North Dakota", "Ohio",
	"Oklahoma", "Oregon", "Pennsylvania", "Rhode Island", "South Carolina",
	"South Dakota", "Tennessee", "Texas", "Utah", "Vermont", "Virginia",
	"Washington", "West Virginia", "Wisconsin", "Wyoming",

	// Countries and regions
	"United States", "Canada", "Mexico", "Brazil", "Argentina", "Chile",
	"United Kingdom", "Ireland", "France", "Germany", "Spain", "Italy",
	"Netherlands", "Belgium", "Switzerland", "Sweden", "Norway", "Denmark",
	"Finland", "Poland", "Austria", "Portugal", "China", "Japan", "India",
	"South Korea", "Singapore", "Taiwan", "Vietnam", "Indonesia", "Australia",
	"New Zealand", "Saudi Arabia", "United Arab Emirates", "Israel", "Egypt",
	"Nigeria", "South Africa", "Kenya", "Europe", "Asia", "Africa",
	"Latin America", "Middle East",
}

// placesLongestFirst orders places by word count so a multi-word place is
// consumed before the single-word places it contains.
var placesLongestFirst = func() []string {
	out := slices.Clone(places)
	slices.SortStableFunc(out, func(a, b string) int {
		return cmp.Compare(len(strings.Fields(b)), len(strings.Fields(a)))
	})
	return out
}()

// Places returns the known locations text names as whole words, ignoring
// case, in lexicon order. "West Virginia" does not also report Virginia.
func Places(text string) []string {
	p := padded(text)
	found := make(map[string]bool)
	for _, place := range placesLongestFirst {
		key := padded(place)
		for strings.Contains(p, key) {
			found[place] = true
			p = strings.Replace(p, key, " ", 1)
		}
	}
	var out []string
	for _, place := range places {
		if found[place] {
			out = append(out, place)
		}
	}
	return out
}
