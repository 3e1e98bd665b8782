// Package catalog loads the set of lots that `seed` writes.
//
// Catalogs are CUE documents checked against an embedded schema, so a
// misspelled field or a negative capacity is rejected with a file position
// before anything is written.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/lotledger/internal/ledger"
)

//go:embed schema.cue
var schemaSrc string

//go:embed lots.cue
var builtinSrc []byte

// lotSpec is the decoded form of #Lot.
type lotSpec struct {
	Name        string  `json:"name"`
	Capacity    int64   `json:"capacity"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description"`
}

// Error is a catalog validation failure.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Builtin returns the campus lots shipped with lotledger.
func Builtin() ([]*ledger.Lot, error) {
	return Parse("lots.cue", builtinSrc)
}

// Load reads and validates a catalog file.
func Load(path string) ([]*ledger.Lot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(path, data)
}

// Parse validates CUE source against the schema and returns its lots in
// declaration order.
func Parse(filename string, src []byte) ([]*ledger.Lot, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err, "schema.cue")
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err, filename)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err, filename)
	}

	lotsVal := v.LookupPath(cue.ParsePath("lots"))
	if !lotsVal.Exists() {
		return nil, &Error{Message: "catalog has no lots", Pos: v.Pos()}
	}

	iter, err := unified.LookupPath(cue.ParsePath("lots")).Fields()
	if err != nil {
		return nil, formatCUEError(err, filename)
	}

	var lots []*ledger.Lot
	for iter.Next() {
		id := iter.Selector().Unquoted()
		if id == "" || strings.Contains(id, "/") {
			return nil, &Error{Message: fmt.Sprintf("invalid lot id %q", id), Pos: iter.Value().Pos()}
		}

		var spec lotSpec
		if err := iter.Value().Decode(&spec); err != nil {
			return nil, formatCUEError(err, filename)
		}

		capacity := spec.Capacity
		lots = append(lots, &ledger.Lot{
			ID:          id,
			Name:        spec.Name,
			Capacity:    &capacity,
			Latitude:    spec.Latitude,
			Longitude:   spec.Longitude,
			Description: spec.Description,
		})
	}

	if len(lots) == 0 {
		return nil, &Error{Message: "catalog has no lots", Pos: lotsVal.Pos()}
	}
	return lots, nil
}

// formatCUEError keeps the first error, positioned in filename when one of
// its positions is there.
func formatCUEError(err error, filename string) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	var pos token.Pos
	for _, p := range errors.Positions(first) {
		if !pos.IsValid() || p.Filename() == filename {
			pos = p
		}
		if p.Filename() == filename {
			break
		}
	}
	return &Error{Message: first.Error(), Pos: pos}
}
