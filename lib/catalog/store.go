package catalog

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"math"
	"sync/atomic"
)

var Logger = logger.GetLogger("catalog")

// NewMemoryStore creates an empty in-memory catalog
func NewMemoryStore() IStore {
	return &memoryStore{
		products: xsync.NewMapOf[uint32, Product](),
		groups:   xsync.NewMapOf[uint32, string](),
	}
}

// memoryStore keeps products and groups in concurrent maps. Every update
// of a product runs inside a single Compute call, so concurrent quantity
// changes on the same product never get lost.
type memoryStore struct {
	products      *xsync.MapOf[uint32, Product]
	groups        *xsync.MapOf[uint32, string]
	nextProductID atomic.Uint32
	nextGroupID   atomic.Uint32
}

// --------------------------------------------------------------------------
// Interface Methods (docu see catalog.IStore)
// --------------------------------------------------------------------------

func (s *memoryStore) GetProduct(productID uint32) (Product, error) {
	p, ok := s.products.Load(productID)
	if !ok {
		return Product{}, productNotFound(productID)
	}
	return p, nil
}

func (s *memoryStore) AddProduct(name string) (Product, error) {
	if name == "" {
		return Product{}, NewError(RetCInvalidOperation, "product name must not be empty")
	}
	p := Product{
		ID:   s.nextProductID.Add(1),
		Name: name,
	}
	s.products.Store(p.ID, p)
	Logger.Debugf("added product %d (%s)", p.ID, name)
	return p, nil
}

func (s *memoryStore) AddGroup(name string) (uint32, error) {
	if name == "" {
		return 0, NewError(RetCInvalidOperation, "group name must not be empty")
	}
	id := s.nextGroupID.Add(1)
	s.groups.Store(id, name)
	Logger.Debugf("added group %d (%s)", id, name)
	return id, nil
}

func (s *memoryStore) AssignGroup(productID, groupID uint32) error {
	if _, ok := s.groups.Load(groupID); !ok {
		return NewError(RetCNotFound, fmt.Sprintf("group %d does not exist", groupID))
	}
	return s.update(productID, func(p *Product) error {
		p.GroupID = groupID
		return nil
	})
}

func (s *memoryStore) SetPrice(productID uint32, price uint64) error {
	return s.update(productID, func(p *Product) error {
		p.Price = price
		return nil
	})
}

func (s *memoryStore) IncludeQuantity(productID uint32, quantity uint64) error {
	return s.update(productID, func(p *Product) error {
		if p.Quantity > math.MaxUint64-quantity {
			return NewError(RetCInvalidOperation, "quantity overflow")
		}
		p.Quantity += quantity
		return nil
	})
}

func (s *memoryStore) ExcludeQuantity(productID uint32, quantity uint64) error {
	return s.update(productID, func(p *Product) error {
		if p.Quantity < quantity {
			return NewError(RetCInvalidOperation,
				fmt.Sprintf("cannot exclude %d items, only %d in stock", quantity, p.Quantity))
		}
		p.Quantity -= quantity
		return nil
	})
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// update applies fn to the stored product atomically. If fn fails the
// stored value stays untouched.
func (s *memoryStore) update(productID uint32, fn func(p *Product) error) error {
	var err error
	s.products.Compute(productID, func(old Product, loaded bool) (Product, bool) {
		if !loaded {
			err = productNotFound(productID)
			return old, true
		}
		p := old
		if err = fn(&p); err != nil {
			return old, false
		}
		return p, false
	})
	return err
}

func productNotFound(productID uint32) *Error {
	return NewError(RetCNotFound, fmt.Sprintf("product %d does not exist", productID))
}
