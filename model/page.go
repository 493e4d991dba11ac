package model

// Page is one slice of a counted listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	TotalItems int64 `json:"totalItems"`
	TotalPage  int   `json:"totalPage"`
	PageNum    int   `json:"pageNum"`
	PageSize   int   `json:"pageSize"`
}

// TrackPageParams selects one page of a filtered track listing. PageNum is 1-based.
type TrackPageParams struct {
	PageNum  int
	PageSize int
	Filter   TrackFilter
}

// TotalPages is ceil(total / size); 0 when either is not positive.
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
