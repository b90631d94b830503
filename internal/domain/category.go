package domain

import "strings"

// Category is one of the fixed spending categories. The set is closed: the
// categorizer maps anything it cannot recognize onto CategoryOther, so
// free-text labels never reach storage.
type Category string

const (
	CategoryGroceries     Category = "groceries"
	CategoryDining        Category = "dining"
	CategoryTransport     Category = "transport"
	CategorySubscriptions Category = "subscriptions"
	CategoryUtilities     Category = "utilities"
	CategoryShopping      Category = "shopping"
	CategoryEntertainment Category = "entertainment"
	CategoryHealth        Category = "health"
	CategoryRent          Category = "rent"
	CategoryIncome        Category = "income"
	CategoryFees          Category = "fees"
	CategoryTransfer      Category = "transfer"
	CategoryOther         Category = "other"
)

var allCategories = []Category{
	CategoryGroceries,
	CategoryDining,
	CategoryTransport,
	CategorySubscriptions,
	CategoryUtilities,
	CategoryShopping,
	CategoryEntertainment,
	CategoryHealth,
	CategoryRent,
	CategoryIncome,
	CategoryFees,
	CategoryTransfer,
	CategoryOther,
}

// Categories returns the full category set in stable order.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// ParseCategory maps a label onto the closed category set. Matching is
// case-insensitive and ignores surrounding whitespace. The second return
// value is false when the label is not a known category.
func ParseCategory(label string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(label)))
	for _, known := range allCategories {
		if c == known {
			return known, true
		}
	}
	return CategoryOther, false
}
