package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/albardn2/karma-sub001/internal/apperr"
)

//go:embed operators.cue
var operatorsCUE string

// Schema names defined in operators.cue.
const (
	IOProcess        = "IOProcess"
	QC               = "QC"
	InventoryDump    = "InventoryDump"
	MaterialRefill   = "MaterialRefill"
	Trip             = "Trip"
	StartTrip        = "StartTrip"
	TripAddInventory = "TripAddInventory"
	TripStop         = "TripStop"
	TripFinish       = "TripFinish"
	Noop             = "Noop"
)

// compiled holds the CUE context and the compiled schema file. A cue.Context
// is not safe for concurrent use, so every access goes through mu.
type compiled struct {
	mu   sync.Mutex
	ctx  *cue.Context
	root cue.Value
}

var load = sync.OnceValues(func() (*compiled, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(operatorsCUE, cue.Filename("operators.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile operator schemas: %w", err)
	}
	return &compiled{ctx: ctx, root: root}, nil
})

// Validate checks payload against the named definition.
func Validate(name string, payload map[string]any) error {
	_, err := validate(name, payload)
	return err
}

// Decode validates payload against the named definition and unmarshals it
// into out.
func Decode(name string, payload map[string]any, out any) error {
	data, err := validate(name, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.BadRequest("invalid %s payload: %v", name, err)
	}
	return nil
}

func validate(name string, payload map[string]any) ([]byte, error) {
	c, err := load()
	if err != nil {
		return nil, err
	}

	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.BadRequest("invalid %s payload: %v", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	def := c.root.LookupPath(cue.ParsePath("#" + name))
	if !def.Exists() {
		return nil, apperr.Unsupported("schema", name)
	}

	v := c.ctx.CompileBytes(data, cue.Filename(name+".json"))
	if err := v.Err(); err != nil {
		return nil, payloadError(name, err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return nil, payloadError(name, err)
	}
	return data, nil
}

// payloadError reports the first CUE error as a BadRequest.
func payloadError(name string, err error) error {
	msg := err.Error()
	if errs := errors.Errors(err); len(errs) > 0 {
		msg = errs[0].Error()
	}
	return &apperr.Error{
		Kind:    apperr.KindBadRequest,
		Message: fmt.Sprintf("invalid %s payload: %s", name, msg),
		Details: map[string]string{"schema": name},
	}
}
