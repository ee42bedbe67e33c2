package session

import (
	"fmt"

	"github.com/rubiojr/shelf/pkg/catalog"
	"github.com/rubiojr/shelf/pkg/compiler"
	"github.com/rubiojr/shelf/pkg/filter"
	"github.com/rubiojr/shelf/pkg/log"
	"github.com/rubiojr/shelf/pkg/query"
)

// ResolvePath validates path metadata and returns the override it selects.
func ResolvePath(nav Navigation) (*compiler.Override, error) {
	field := catalog.LookupField(nav.Field)
	if !field.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, nav.Field)
	}
	if nav.Value == "" {
		return nil, fmt.Errorf("%w for %s", ErrMissingValue, field)
	}
	return &compiler.Override{Field: field.String(), Value: nav.Value}, nil
}

// ShowPath stores the synthetic `field:"value"` query shown for a path
// override.
func ShowPath(store *filter.Store, o *compiler.Override) error {
	return store.Update(filter.KeyQuery, query.Qualifier(o.Field, o.Value))
}

// SetQuery stores text as the free-text query and applies the inline
// qualifiers it contains to the matching filter fields.
func SetQuery(store *filter.Store, text string) error {
	if err := store.Update(filter.KeyQuery, text); err != nil {
		return err
	}
	for _, tok := range query.Parse(text).Tokens {
		if err := applyToken(store, tok); err != nil {
			return err
		}
	}
	return nil
}

// applyToken maps an inline qualifier onto the filter panel fields.
func applyToken(store *filter.Store, tok query.Token) error {
	switch tok.Field {
	case catalog.FieldYear:
		if err := store.Update(filter.KeyYearFrom, tok.Value); err != nil {
			return err
		}
		return store.Update(filter.KeyYearTo, tok.Value)
	case catalog.FieldLanguage:
		return store.Update(filter.KeyLanguage, tok.Value)
	case catalog.FieldFormat:
		return store.Update(filter.KeyFileType, tok.Value)
	case catalog.FieldGenre:
		return store.Update(filter.KeyFictionType, tok.Value)
	default:
		// publisher and narrator have no filter panel field.
		log.ForService("session").Debugf("inline %s:%q has no filter field, ignoring", tok.Name, tok.Value)
		return nil
	}
}
