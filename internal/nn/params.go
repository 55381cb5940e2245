package nn

import (
	"fmt"
	"strconv"

	"github.com/born-ml/fcnet/internal/tensor"
)

// WeightName returns the parameter key of layer i's weights ("W1", "W2", ...).
func WeightName(layer int) string {
	return "W" + strconv.Itoa(layer)
}

// BiasName returns the parameter key of layer i's biases ("b1", "b2", ...).
func BiasName(layer int) string {
	return "b" + strconv.Itoa(layer)
}

// ParamSet is an ordered collection of named tensors.
//
// Models store their learnable parameters in a ParamSet and return their
// gradients in another ParamSet with the same keys and shapes.
//
// Example:
//
//	params := model.Params()
//	w1 := params.Get("W1")
//	for _, name := range params.Names() {
//	    fmt.Println(name, params.Get(name).Shape())
//	}
type ParamSet[T tensor.Float] struct {
	names  []string
	values map[string]*tensor.Dense[T]
}

// NewParamSet creates an empty parameter set.
func NewParamSet[T tensor.Float]() *ParamSet[T] {
	return &ParamSet[T]{values: make(map[string]*tensor.Dense[T])}
}

// Set stores t under name, appending name to the order if it is new.
func (p *ParamSet[T]) Set(name string, t *tensor.Dense[T]) {
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = t
}

// Get returns the tensor stored under name, or nil.
func (p *ParamSet[T]) Get(name string) *tensor.Dense[T] {
	return p.values[name]
}

// Has reports whether name is present.
func (p *ParamSet[T]) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Names returns parameter names in insertion order.
func (p *ParamSet[T]) Names() []string {
	return append([]string(nil), p.names...)
}

// Len returns the number of parameters.
func (p *ParamSet[T]) Len() int {
	return len(p.names)
}

// NumElements returns the total number of scalar values across all tensors.
func (p *ParamSet[T]) NumElements() int {
	n := 0
	for _, name := range p.names {
		n += p.values[name].NumElements()
	}
	return n
}

// Clone returns a deep copy.
func (p *ParamSet[T]) Clone() *ParamSet[T] {
	c := NewParamSet[T]()
	for _, name := range p.names {
		c.Set(name, p.values[name].Clone())
	}
	return c
}

// Load copies the values of src into the tensors of p in place.
//
// Every parameter of p must be present in src with the same shape. Extra
// entries in src are ignored.
func (p *ParamSet[T]) Load(src *ParamSet[T]) error {
	for _, name := range p.names {
		s := src.Get(name)
		if s == nil {
			return fmt.Errorf("missing parameter %q", name)
		}
		if err := p.values[name].CopyFrom(s); err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}
	}
	return nil
}
