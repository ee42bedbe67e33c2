package catalog

// Column names a queryable column of the books collection.
type Column string

const (
	ColID            Column = "id"
	ColTitle         Column = "title"
	ColAuthor        Column = "author"
	ColPublisher     Column = "publisher"
	ColDescription   Column = "description"
	ColISBN          Column = "isbn"
	ColExternalID    Column = "external_id"
	ColNarrator      Column = "narrator"
	ColFormat        Column = "format"
	ColFileType      Column = "file_type"
	ColLanguage      Column = "language"
	ColBookType      Column = "book_type"
	ColFictionType   Column = "fiction_type"
	ColCategories    Column = "categories"
	ColPublishedDate Column = "published_date"
	ColPublishedYear Column = "published_year"
	ColFileSize      Column = "file_size"
	ColCoverURL      Column = "cover_url"
	ColCreatedAt     Column = "created_at"
)

// TextColumns are the columns searched by the general free-text fallback,
// in the order the OR-group is built.
var TextColumns = []Column{
	ColTitle,
	ColAuthor,
	ColPublisher,
	ColDescription,
	ColISBN,
	ColExternalID,
	ColNarrator,
}

// FormatColumns are the two columns a format filter is matched against.
var FormatColumns = []Column{ColFormat, ColFileType}

var knownColumns = map[Column]bool{
	ColID: true, ColTitle: true, ColAuthor: true, ColPublisher: true,
	ColDescription: true, ColISBN: true, ColExternalID: true, ColNarrator: true,
	ColFormat: true, ColFileType: true, ColLanguage: true, ColBookType: true,
	ColFictionType: true, ColCategories: true, ColPublishedDate: true,
	ColPublishedYear: true, ColFileSize: true, ColCoverURL: true, ColCreatedAt: true,
}

// Valid reports whether c is a column of the books collection.
// Executors must reject anything else before building SQL.
func (c Column) Valid() bool {
	return knownColumns[c]
}

// IsArray reports whether the column stores a list of values.
func (c Column) IsArray() bool {
	return c == ColCategories
}
