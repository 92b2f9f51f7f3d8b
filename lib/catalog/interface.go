package catalog

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Product is a single catalog entry. GroupID 0 means "no group".
type Product struct {
	ID       uint32
	Name     string
	Price    uint64
	Quantity uint64
	GroupID  uint32
}

// IStore is the narrow interface of the product catalog the rpc server
// dispatches to. All methods return a *Error (nil on success).
type IStore interface {
	// GetProduct returns the product with the given id.
	GetProduct(productID uint32) (product Product, err error)
	// AddProduct creates a new product without price, quantity or group.
	AddProduct(name string) (product Product, err error)
	// AddGroup creates a new product group and returns its id.
	AddGroup(name string) (groupID uint32, err error)
	// AssignGroup moves a product into an existing group.
	AssignGroup(productID, groupID uint32) (err error)
	// SetPrice sets the price of a product.
	SetPrice(productID uint32, price uint64) (err error)
	// IncludeQuantity adds quantity items to the stock of a product.
	IncludeQuantity(productID uint32, quantity uint64) (err error)
	// ExcludeQuantity removes quantity items from the stock of a product.
	// It fails if the stock is smaller than quantity.
	ExcludeQuantity(productID uint32, quantity uint64) (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("CatalogError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new catalog error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

// RetCode is the type for catalog return codes
type RetCode int

const (
	// RetCInternalError indicates an internal error
	RetCInternalError RetCode = iota
	// RetCNotFound indicates that a product or group does not exist
	RetCNotFound
	// RetCInvalidOperation indicates that the arguments are not valid for the operation
	RetCInvalidOperation
)

func (c RetCode) String() string {
	switch c {
	case RetCInternalError:
		return "InternalError"
	case RetCNotFound:
		return "NotFound"
	case RetCInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}
