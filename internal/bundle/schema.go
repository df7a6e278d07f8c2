package bundle

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// schema holds the compiled CUE definitions. A cue.Context is not safe
// for concurrent use, so every compile and unify runs under mu.
type schema struct {
	mu       sync.Mutex
	ctx      *cue.Context
	manifest cue.Value
	record   cue.Value
}

var (
	loadSchemaOnce sync.Once
	loadedSchema   *schema
	loadSchemaErr  error
)

func loadSchema() (*schema, error) {
	loadSchemaOnce.Do(func() {
		ctx := cuecontext.New()
		v := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			loadSchemaErr = fmt.Errorf("compile package schema: %w", err)
			return
		}
		loadedSchema = &schema{
			ctx:      ctx,
			manifest: v.LookupPath(cue.ParsePath("#Manifest")),
			record:   v.LookupPath(cue.ParsePath("#Record")),
		}
	})
	return loadedSchema, loadSchemaErr
}

func (s *schema) validateManifest(data []byte) error {
	return s.check(s.manifest, data, "manifest.json")
}

func (s *schema) validateRecord(data []byte) error {
	return s.check(s.record, data, "record")
}

// check compiles JSON data as CUE and unifies it with def. Every field
// must be concrete after unification.
func (s *schema) check(def cue.Value, data []byte, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return firstCUEError(err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return firstCUEError(err)
	}
	return nil
}

// firstCUEError reduces a CUE error list to its first entry.
func firstCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	return errs[0]
}
