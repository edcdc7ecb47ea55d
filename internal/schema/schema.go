// Package schema validates action inputs and AI output against the CUE
// definitions in schema.cue.
package schema

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/lankyjo/coast/internal/apperr"
)

//go:embed schema.cue
var source string

// Definition names.
const (
	TaskInput          = "#TaskInput"
	TaskUpdate         = "#TaskUpdate"
	SubtaskInput       = "#SubtaskInput"
	ProjectInput       = "#ProjectInput"
	CustomBoardInput   = "#CustomBoardInput"
	NoteInput          = "#NoteInput"
	ManualTimeInput    = "#ManualTimeInput"
	StageInput         = "#StageInput"
	ProspectInput      = "#ProspectInput"
	TemplateInput      = "#TemplateInput"
	AutomationInput    = "#AutomationInput"
	InvitationInput    = "#InvitationInput"
	MagicLinkInput     = "#MagicLinkInput"
	TaskDraft          = "#TaskDraft"
	SubtaskList        = "#SubtaskList"
	AssigneeSuggestion = "#AssigneeSuggestion"
	DeadlineSuggestion = "#DeadlineSuggestion"
	DailySummary       = "#DailySummary"
)

// Validator holds the compiled definitions. A cue.Context is not safe for
// concurrent use, so calls are serialized.
type Validator struct {
	mu   sync.Mutex
	ctx  *cue.Context
	root cue.Value
}

func New() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(source, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{ctx: ctx, root: root}, nil
}

var (
	defaultOnce sync.Once
	defaultV    *Validator
)

// Default returns the shared validator. The embedded schema is compiled
// once; a compile failure is a build defect and panics.
func Default() *Validator {
	defaultOnce.Do(func() {
		v, err := New()
		if err != nil {
			panic(err)
		}
		defaultV = v
	})
	return defaultV
}

// Validate checks x against def. Failures come back as an apperr
// validation error with messages keyed by field path.
func (v *Validator) Validate(def string, x any) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	d, err := v.lookup(def)
	if err != nil {
		return err
	}
	val := v.ctx.Encode(x)
	if err := val.Err(); err != nil {
		return fmt.Errorf("encode %s: %w", def, err)
	}
	return toValidation(d.Unify(val).Validate(cue.Concrete(true), cue.All()))
}

// DecodeJSON validates raw JSON against def and decodes it into out.
func (v *Validator) DecodeJSON(def string, raw []byte, out any) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	d, err := v.lookup(def)
	if err != nil {
		return err
	}
	val := v.ctx.CompileBytes(raw, cue.Filename("response.json"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	u := d.Unify(val)
	if err := toValidation(u.Validate(cue.Concrete(true), cue.All())); err != nil {
		return err
	}
	if err := u.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", def, err)
	}
	return nil
}

func (v *Validator) lookup(def string) (cue.Value, error) {
	d := v.root.LookupPath(cue.ParsePath(def))
	if !d.Exists() {
		return cue.Value{}, fmt.Errorf("unknown schema definition %s", def)
	}
	return d, nil
}

func toValidation(err error) error {
	if err == nil {
		return nil
	}
	details := map[string][]string{}
	for _, e := range cueerrors.Errors(err) {
		field := fieldPath(e.Path())
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if !contains(details[field], msg) {
			details[field] = append(details[field], msg)
		}
	}
	for _, msgs := range details {
		sort.Strings(msgs)
	}
	return apperr.Validation(details)
}

// fieldPath drops definition selectors so "#TaskInput.title" reads "title".
func fieldPath(path []string) string {
	var parts []string
	for _, p := range path {
		if strings.HasPrefix(p, "#") {
			continue
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		return "_"
	}
	return strings.Join(parts, ".")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
