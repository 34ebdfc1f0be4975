package catalog

import (
	"errors"
	"fmt"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// ErrUnknownMethod is returned when a method id is not in the catalog.
var ErrUnknownMethod = errors.New("unknown payment method")

// Catalog is an immutable, ordered registry of payment methods.
type Catalog struct {
	methods []model.PaymentMethod
	index   map[string]int
}

// New builds a catalog preserving the given order. Duplicate or invalid methods are rejected.
func New(methods []model.PaymentMethod) (*Catalog, error) {
	c := &Catalog{
		methods: make([]model.PaymentMethod, 0, len(methods)),
		index:   make(map[string]int, len(methods)),
	}
	for _, m := range methods {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.index[m.ID]; dup {
			return nil, fmt.Errorf("duplicate payment method %q", m.ID)
		}
		c.index[m.ID] = len(c.methods)
		c.methods = append(c.methods, m)
	}
	return c, nil
}

// List returns the methods in catalog order. The slice is a copy.
func (c *Catalog) List() []model.PaymentMethod {
	out := make([]model.PaymentMethod, len(c.methods))
	copy(out, c.methods)
	return out
}

// Get returns the method with the given id.
func (c *Catalog) Get(id string) (model.PaymentMethod, error) {
	i, ok := c.index[id]
	if !ok {
		return model.PaymentMethod{}, fmt.Errorf("%w: %q", ErrUnknownMethod, id)
	}
	return c.methods[i], nil
}

// Len returns the number of methods.
func (c *Catalog) Len() int {
	return len(c.methods)
}
