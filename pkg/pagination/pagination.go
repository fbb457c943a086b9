package pagination

const (
	// DefaultPerPage is the page size when none is configured.
	DefaultPerPage = 5
	// DefaultWindow is how many page numbers a paginator shows at once.
	DefaultWindow = 5
)

// TotalPages returns ceil(totalItems / perPage). A non-positive perPage
// falls back to DefaultPerPage.
func TotalPages(totalItems, perPage int) int {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if totalItems <= 0 {
		return 0
	}
	return (totalItems + perPage - 1) / perPage
}

// Clamp keeps page within [1, max(1, totalPages)].
func Clamp(page, totalPages int) int {
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}

// Window returns up to width consecutive page numbers around current.
// Near the first or last page the window slides so it stays full.
func Window(current, totalPages, width int) []int {
	if totalPages <= 0 {
		return []int{}
	}
	if width <= 0 {
		width = DefaultWindow
	}
	current = Clamp(current, totalPages)
	half := width / 2

	start := max(1, current-half)
	end := min(totalPages, current+half)
	if current <= half+1 {
		end = min(width, totalPages)
	}
	if current >= totalPages-half {
		start = max(1, totalPages-width+1)
	}

	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Bounds returns the half-open slice range [start, end) of the items shown
// on page.
func Bounds(page, perPage, totalItems int) (start, end int) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if totalItems <= 0 {
		return 0, 0
	}
	page = Clamp(page, TotalPages(totalItems, perPage))
	start = (page - 1) * perPage
	end = min(start+perPage, totalItems)
	return start, end
}

// Page describes the paginator for one list.
type Page struct {
	Current    int   `json:"current"`
	PerPage    int   `json:"per_page"`
	TotalItems int   `json:"total_items"`
	TotalPages int   `json:"total_pages"`
	Pages      []int `json:"pages"`
	Start      int   `json:"start"`
	End        int   `json:"end"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_previous"`
	Show       bool  `json:"show"`
}

// New computes the paginator for totalItems split into perPage pages with
// current clamped into range.
func New(current, perPage, totalItems int) Page {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	total := TotalPages(totalItems, perPage)
	current = Clamp(current, total)
	start, end := Bounds(current, perPage, totalItems)
	return Page{
		Current:    current,
		PerPage:    perPage,
		TotalItems: totalItems,
		TotalPages: total,
		Pages:      Window(current, total, DefaultWindow),
		Start:      start,
		End:        end,
		HasNext:    current < total,
		HasPrev:    current > 1,
		Show:       totalItems > perPage,
	}
}
