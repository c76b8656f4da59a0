package ledger

// Transaction is a ledger entry in the financial account. Amounts are
// signed: purchases come back negative.
type Transaction struct {
	ID     string  `json:"id"`
	Amount float64 `json:"amount"`
	Date   string  `json:"date"`
	Notes  string  `json:"notes"`
}

// Category is a spending category recognized by the account.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SearchParams filters a paginated transaction search.
type SearchParams struct {
	Limit       int
	Offset      int
	StartDate   string // ISO calendar date
	EndDate     string // ISO calendar date
	CategoryIDs []string
	Search      string
	HasNotes    bool
}

// CategoryVocabulary is the closed set of category names the account
// recognizes, with a lookup back to category ids. Built once per run.
type CategoryVocabulary struct {
	Names    []string
	IDByName map[string]string
}

// NewCategoryVocabulary builds a vocabulary preserving category order.
func NewCategoryVocabulary(categories []Category) CategoryVocabulary {
	vocab := CategoryVocabulary{
		Names:    make([]string, 0, len(categories)),
		IDByName: make(map[string]string, len(categories)),
	}
	for _, c := range categories {
		vocab.Names = append(vocab.Names, c.Name)
		vocab.IDByName[c.Name] = c.ID
	}
	return vocab
}

// Resolve maps a category name back to its id.
func (v CategoryVocabulary) Resolve(name string) (string, bool) {
	id, ok := v.IDByName[name]
	return id, ok
}
