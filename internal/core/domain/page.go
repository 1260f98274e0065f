package domain

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	MaxPageNumber    = 100000
)

type Page struct {
	Number int
	Limit  int
}

// NewPage clamps number and limit into their valid ranges.
func NewPage(number, limit int) Page {
	if number < 1 {
		number = 1
	}
	if number > MaxPageNumber {
		number = MaxPageNumber
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Number: number, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

type PageResult[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func NewPageResult[T any](items []T, page Page, total int) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if page.Limit > 0 {
		pages = (total + page.Limit - 1) / page.Limit
	}
	return PageResult[T]{
		Items: items,
		Page:  page.Number,
		Limit: page.Limit,
		Total: total,
		Pages: pages,
	}
}
