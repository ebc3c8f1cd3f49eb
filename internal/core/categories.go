package core

// SuggestedCategories is the category set offered to users. Categories are
// free text; this list only drives suggestions.
var SuggestedCategories = []string{
	"Food & Drink",
	"Transport",
	"Rent",
	"Utilities",
	"Entertainment",
	"Shopping",
	"Health",
	"Salary",
	"Freelance",
	"Investments",
	"Other",
}

// IsSuggestedCategory reports whether name is one of SuggestedCategories.
func IsSuggestedCategory(name string) bool {
	for _, c := range SuggestedCategories {
		if c == name {
			return true
		}
	}
	return false
}
