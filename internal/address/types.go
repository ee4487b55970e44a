// internal/address/types.go
package address

// Address is the structured representation of a record's location: the
// directory holding its declaration file and its name within that
// directory. The zero value is not a valid address.
//
// Address is comparable and is used directly as an engine param.
type Address struct {
	SpecPath   string
	TargetName string
}

// New returns the address of name within specPath.
func New(specPath, name string) Address {
	return Address{SpecPath: specPath, TargetName: name}
}
