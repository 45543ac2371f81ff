package core

// Bootstrap defaults written whenever no persisted collection exists or the
// stored value cannot be decoded. This list is a versioned constant: order,
// names, budgets and icons are all part of the contract, and changing any of
// them is a compatibility change for existing fixtures.
var defaultCategories = Collection{
	{Name: "식비", Spent: 0, Budget: 300000, Icon: "food"},
	{Name: "카페/간식", Spent: 0, Budget: 100000, Icon: "cafe"},
	{Name: "교통", Spent: 0, Budget: 80000, Icon: "transport"},
	{Name: "쇼핑", Spent: 0, Budget: 150000, Icon: "shopping"},
	{Name: "문화/여가", Spent: 0, Budget: 100000, Icon: "leisure"},
	{Name: "의료/건강", Spent: 0, Budget: 50000, Icon: "health"},
	{Name: "주거/통신", Spent: 0, Budget: 400000, Icon: "home"},
	{Name: "기타", Spent: 0, Budget: 50000, Icon: "etc"},
}

// DefaultCategories returns a fresh copy of the bootstrap defaults.
func DefaultCategories() Collection {
	return defaultCategories.Clone()
}
