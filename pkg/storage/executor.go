package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rubiojr/shelf/pkg/catalog"
	"github.com/rubiojr/shelf/pkg/predicate"
)

// QueryError is returned by Execute. Message is safe to show to a user.
type QueryError struct {
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

const bookColumns = `id, title, author, publisher, description, isbn, external_id, narrator,
	format, file_type, language, book_type, fiction_type, categories,
	published_date, published_year, file_size, cover_url, created_at`

// Execute runs a compiled query against collection.
func (s *Store) Execute(ctx context.Context, collection string, q predicate.Query) ([]catalog.Book, error) {
	if err := validCollection(collection); err != nil {
		return nil, &QueryError{Message: "invalid query", Err: err}
	}
	stmt, args, err := buildSelect(collection, q)
	if err != nil {
		return nil, &QueryError{Message: "invalid query", Err: err}
	}
	s.logger.Debugf("%s %v", stmt, args)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, &QueryError{Message: "querying " + collection, Err: err}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warnf("failed to close rows: %v", err)
		}
	}()

	books := make([]catalog.Book, 0, q.Limit)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, &QueryError{Message: "reading " + collection, Err: err}
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Message: "reading " + collection, Err: err}
	}
	return books, nil
}

func scanBook(rows *sql.Rows) (catalog.Book, error) {
	var b catalog.Book
	var categories, createdAt string
	err := rows.Scan(
		&b.ID, &b.Title, &b.Author, &b.Publisher, &b.Description, &b.ISBN, &b.ExternalID, &b.Narrator,
		&b.Format, &b.FileType, &b.Language, &b.BookType, &b.FictionType, &categories,
		&b.PublishedDate, &b.PublishedYear, &b.FileSize, &b.CoverURL, &createdAt,
	)
	if err != nil {
		return b, fmt.Errorf("scanning row: %w", err)
	}
	if categories != "" {
		if err := json.Unmarshal([]byte(categories), &b.Categories); err != nil {
			return b, fmt.Errorf("unmarshaling categories for book %s: %w", b.ID, err)
		}
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return b, fmt.Errorf("parsing created_at for book %s: %w", b.ID, err)
	}
	return b, nil
}

// buildSelect renders q as a parameterized SELECT. Column names come only
// from the catalog whitelist; every value is a bound argument.
func buildSelect(collection string, q predicate.Query) (string, []any, error) {
	var w sqlWriter
	if err := w.node(q.Where); err != nil {
		return "", nil, err
	}

	col, dir := q.Sort.Column, q.Sort.Direction
	if col == "" {
		col, dir = catalog.SortFor("")
	}
	if !col.Valid() || col.IsArray() {
		return "", nil, fmt.Errorf("cannot sort by %q", col)
	}
	if dir != catalog.Asc && dir != catalog.Desc {
		return "", nil, fmt.Errorf("invalid sort direction %q", dir)
	}
	if q.Limit <= 0 || q.Offset < 0 {
		return "", nil, fmt.Errorf("invalid window limit=%d offset=%d", q.Limit, q.Offset)
	}

	order := string(col) + " " + string(dir)
	if col == catalog.ColTitle {
		order = "title COLLATE NOCASE " + string(dir)
	}

	stmt := "SELECT " + bookColumns + " FROM " + collection +
		" WHERE " + w.sb.String() +
		" ORDER BY " + order + ", id ASC" +
		" LIMIT ? OFFSET ?"
	return stmt, append(w.args, q.Limit, q.Offset), nil
}

type sqlWriter struct {
	sb   strings.Builder
	args []any
}

func (w *sqlWriter) node(n predicate.Node) error {
	switch v := n.(type) {
	case predicate.And:
		return w.group(v.Terms, " AND ", "1")
	case predicate.Or:
		return w.group(v.Terms, " OR ", "0")
	case predicate.Compare:
		return w.compare(v)
	case predicate.Range:
		return w.rangeOf(v)
	default:
		return fmt.Errorf("unsupported predicate node %T", n)
	}
}

// group writes terms joined by sep. An empty group renders as identity.
func (w *sqlWriter) group(terms []predicate.Node, sep, identity string) error {
	if len(terms) == 0 {
		w.sb.WriteString(identity)
		return nil
	}
	w.sb.WriteByte('(')
	for i, t := range terms {
		if i > 0 {
			w.sb.WriteString(sep)
		}
		if err := w.node(t); err != nil {
			return err
		}
	}
	w.sb.WriteByte(')')
	return nil
}

func (w *sqlWriter) compare(c predicate.Compare) error {
	if !c.Column.Valid() {
		return fmt.Errorf("unknown column %q", c.Column)
	}

	if c.Column.IsArray() {
		// Every comparison on a list column tests its elements.
		w.sb.WriteString("EXISTS (SELECT 1 FROM json_each(" + string(c.Column) + ") WHERE ")
		w.leaf("value", c.Op, c.Value)
		w.sb.WriteByte(')')
		return nil
	}
	if c.Op == predicate.OpHas {
		return fmt.Errorf("column %q is not a list", c.Column)
	}
	w.leaf(string(c.Column), c.Op, c.Value)
	return nil
}

// leaf writes one comparison. Contains is a LIKE substring match with the
// pattern escaped; equality compares with NOCASE, so "Dune" equals "dune"
// for exact matches and equality refinements alike.
func (w *sqlWriter) leaf(expr string, op predicate.Op, value string) {
	switch op {
	case predicate.OpContains:
		w.sb.WriteString(expr + ` LIKE ? ESCAPE '\'`)
		w.args = append(w.args, "%"+escapeLike(value)+"%")
	default:
		w.sb.WriteString(expr + " = ? COLLATE NOCASE")
		w.args = append(w.args, value)
	}
}

func (w *sqlWriter) rangeOf(r predicate.Range) error {
	if !r.Column.Valid() || r.Column.IsArray() {
		return fmt.Errorf("invalid range column %q", r.Column)
	}
	col := string(r.Column)
	switch {
	case r.From != nil && r.To != nil:
		w.sb.WriteString("(" + col + " >= ? AND " + col + " <= ?)")
		w.args = append(w.args, r.From, r.To)
	case r.From != nil:
		w.sb.WriteString(col + " >= ?")
		w.args = append(w.args, r.From)
	case r.To != nil:
		w.sb.WriteString(col + " <= ?")
		w.args = append(w.args, r.To)
	default:
		w.sb.WriteString("1")
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes LIKE wildcards in user input match literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
