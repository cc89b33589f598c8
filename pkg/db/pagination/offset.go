package pagination

const (
	DefaultLimit = 50
	MaxLimit     = 250
)

// Offset is limit/offset paging used by the transaction history endpoints.
type Offset struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// Normalize clamps the window to [1, max] with def applied to non-positive limits.
// Negative offsets become zero.
func (o Offset) Normalize(def, max int) Offset {
	if def <= 0 {
		def = DefaultLimit
	}
	if max <= 0 {
		max = MaxLimit
	}
	if o.Limit <= 0 {
		o.Limit = def
	}
	if o.Limit > max {
		o.Limit = max
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// OffsetPageInfo describes a page fetched with limit+1 rows.
type OffsetPageInfo struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// TrimOffsetPage drops the look-ahead row and reports whether more rows exist.
func TrimOffsetPage[T any](data []T, page Offset) ([]T, OffsetPageInfo) {
	info := OffsetPageInfo{Limit: page.Limit, Offset: page.Offset}
	if len(data) > page.Limit {
		info.HasMore = true
		data = data[:page.Limit]
	}
	return data, info
}
