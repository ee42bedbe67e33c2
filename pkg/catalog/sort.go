package catalog

// SortKey is the user-facing sort order selected in the filter panel.
type SortKey string

const (
	SortPopularity SortKey = "popularity"
	SortLatest     SortKey = "latest"
	SortTitleAsc   SortKey = "title_asc"
	SortTitleDesc  SortKey = "title_desc"
	SortYear       SortKey = "year"
	SortSizeAsc    SortKey = "size_asc"
	SortSizeDesc   SortKey = "size_desc"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

type sortSpec struct {
	column    Column
	direction Direction
}

// There is no popularity signal in the catalog; popularity and latest are
// both newest-first.
var sortTable = map[SortKey]sortSpec{
	SortPopularity: {ColCreatedAt, Desc},
	SortLatest:     {ColCreatedAt, Desc},
	SortTitleAsc:   {ColTitle, Asc},
	SortTitleDesc:  {ColTitle, Desc},
	SortYear:       {ColPublishedYear, Desc},
	SortSizeAsc:    {ColFileSize, Asc},
	SortSizeDesc:   {ColFileSize, Desc},
}

// SortFor maps a sort key to its column and direction. Unknown keys fall
// back to newest-first.
func SortFor(key SortKey) (Column, Direction) {
	if spec, ok := sortTable[key]; ok {
		return spec.column, spec.direction
	}
	return ColCreatedAt, Desc
}

// KnownSort reports whether key is one of the registered sort keys.
func KnownSort(key SortKey) bool {
	_, ok := sortTable[key]
	return ok
}
