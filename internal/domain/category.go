package domain

import "fmt"

// CategoryID is the numeric id a trained classifier predicts.
type CategoryID int

// The closed set of spending categories. Ids are stable across runs and must
// never be renumbered: persisted classifier artifacts predict these values.
const (
	CategoryOther CategoryID = iota
	CategoryFoodAndDrinks
	CategoryEntertainment
	CategoryTransportation
	CategoryCash
	CategoryGeneralMerchandise
	CategoryLoans
	CategoryReturnedPayments
	CategoryBankFees
	CategoryPersonalAndHealthcare
	CategoryRentAndUtilities
	CategoryIncome
	CategoryServices
	CategorySavingsAndInvestments
	CategoryGovernmentAndNonprofit
	CategoryTravel
	CategoryDebtCollection
	CategoryCashTransfer

	categoryCount
)

// NumCategories is the size of the category codomain.
const NumCategories = int(categoryCount)

// OtherLabel is the fallback label assigned when nothing else matches.
const OtherLabel = "Other"

var categoryNames = [NumCategories]string{
	CategoryOther:                  OtherLabel,
	CategoryFoodAndDrinks:          "Food and drinks",
	CategoryEntertainment:          "Entertainment",
	CategoryTransportation:         "Transportation",
	CategoryCash:                   "Cash",
	CategoryGeneralMerchandise:     "General merchandise",
	CategoryLoans:                  "Loans",
	CategoryReturnedPayments:       "Returned payments",
	CategoryBankFees:               "Bank fees",
	CategoryPersonalAndHealthcare:  "Personal and healthcare",
	CategoryRentAndUtilities:       "Rent and utilities",
	CategoryIncome:                 "Income",
	CategoryServices:               "Services",
	CategorySavingsAndInvestments:  "Savings and investments",
	CategoryGovernmentAndNonprofit: "Government and nonprofit organisations",
	CategoryTravel:                 "Travel",
	CategoryDebtCollection:         "Debt collection",
	CategoryCashTransfer:           "Cash transfer",
}

// Valid reports whether id is inside the closed codomain.
func (id CategoryID) Valid() bool {
	return id >= 0 && id < categoryCount
}

// Name returns the human-readable category name.
func (id CategoryID) Name() (string, error) {
	if !id.Valid() {
		return "", fmt.Errorf("category id %d out of range [0,%d)", int(id), NumCategories)
	}
	return categoryNames[id], nil
}

// CategoryNames returns all names ordered by id.
func CategoryNames() []string {
	out := make([]string, NumCategories)
	copy(out, categoryNames[:])
	return out
}

// CategoryByName resolves a name back to its id. Matching is exact.
func CategoryByName(name string) (CategoryID, bool) {
	for i, n := range categoryNames {
		if n == name {
			return CategoryID(i), true
		}
	}
	return 0, false
}
