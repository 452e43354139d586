// Package lexicon holds the static table of waste categories, the keywords
// that trigger them and the disposal guidance shown to users.
package lexicon

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Category string

const (
	Plastic    Category = "plastic"
	Organic    Category = "organic"
	Electronic Category = "electronic"
	Paper      Category = "paper"
	Metal      Category = "metal"
	Glass      Category = "glass"
	General    Category = "general"
)

// Label returns the category name with its first letter upper-cased.
func (c Category) Label() string {
	s := string(c)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

type Guidance struct {
	Suggestion          string `json:"suggestion"`
	RecyclingTip        string `json:"recycling_tip"`
	EnvironmentalImpact string `json:"environmental_impact"`
}

type Entry struct {
	Category Category `json:"category"`
	Keywords []string `json:"keywords"`
	Guidance Guidance `json:"guidance"`
}

// Declaration order is the match order used by the text classifier.
var entries = []Entry{
	{
		Category: Plastic,
		Keywords: []string{"plastic", "bottle", "bag", "container", "wrapper", "packaging", "straw", "cup"},
		Guidance: Guidance{
			Suggestion:          "Clean the item and place in plastic recycling bin. Remove caps and labels if possible.",
			RecyclingTip:        "Plastic bottles can be recycled into new bottles, clothing, or carpeting.",
			EnvironmentalImpact: "Recycling this plastic saves energy and reduces landfill waste.",
		},
	},
	{
		Category: Organic,
		Keywords: []string{"organic", "food", "banana", "apple", "peel", "core", "vegetable", "compost", "biodegradable"},
		Guidance: Guidance{
			Suggestion:          "Compost this item or dispose in organic waste bin. Great for home composting!",
			RecyclingTip:        "Organic waste creates nutrient-rich compost for gardens and plants.",
			EnvironmentalImpact: "Composting reduces methane emissions from landfills.",
		},
	},
	{
		Category: Electronic,
		Keywords: []string{"electronic", "phone", "computer", "battery", "laptop", "tablet", "charger", "circuit"},
		Guidance: Guidance{
			Suggestion:          "Take to certified e-waste recycling center. Many retailers offer take-back programs.",
			RecyclingTip:        "E-waste contains valuable metals that can be recovered and reused.",
			EnvironmentalImpact: "Proper e-waste recycling prevents toxic materials from entering landfills.",
		},
	},
	{
		Category: Paper,
		Keywords: []string{"paper", "cardboard", "newspaper", "magazine", "box", "book", "document"},
		Guidance: Guidance{
			Suggestion:          "Remove any plastic tape or staples, then place in paper recycling bin.",
			RecyclingTip:        "Recycled paper can become new paper products, reducing tree harvesting.",
			EnvironmentalImpact: "Paper recycling saves trees, water, and reduces greenhouse gas emissions.",
		},
	},
	{
		Category: Metal,
		Keywords: []string{"metal", "aluminum", "steel", "can", "foil", "wire", "nail"},
		Guidance: Guidance{
			Suggestion:          "Rinse cans and place in metal recycling bin. Scrunch clean foil into a ball.",
			RecyclingTip:        "Aluminum and steel can be recycled repeatedly without losing quality.",
			EnvironmentalImpact: "Recycling metal uses far less energy than mining and refining new ore.",
		},
	},
	{
		Category: Glass,
		Keywords: []string{"glass", "bottle", "jar", "window", "mirror", "lens"},
		Guidance: Guidance{
			Suggestion:          "Rinse and place bottles and jars in glass recycling. Window and mirror glass go to general waste.",
			RecyclingTip:        "Container glass can be melted down and remade into new bottles and jars.",
			EnvironmentalImpact: "Recycled glass lowers furnace temperatures and cuts raw material extraction.",
		},
	},
	{
		Category: General,
		Keywords: []string{"general", "mixed", "trash", "garbage", "waste", "rubbish"},
		Guidance: Guidance{
			Suggestion:          "Dispose in general waste bin. Check if any parts can be separated for recycling.",
			RecyclingTip:        "Consider if this item can be repaired, donated, or repurposed before disposal.",
			EnvironmentalImpact: "Reducing general waste helps minimize landfill burden.",
		},
	},
}

// Entries returns a copy of the table in declaration order.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		e.Keywords = append([]string(nil), e.Keywords...)
		out[i] = e
	}
	return out
}

// Lookup finds a category by name, ignoring case.
func Lookup(name string) (Entry, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, e := range entries {
		if string(e.Category) == name {
			e.Keywords = append([]string(nil), e.Keywords...)
			return e, true
		}
	}
	return Entry{}, false
}

// HasKeyword reports whether keyword triggers category c.
func HasKeyword(c Category, keyword string) bool {
	for _, e := range entries {
		if e.Category != c {
			continue
		}
		for _, k := range e.Keywords {
			if k == keyword {
				return true
			}
		}
	}
	return false
}
