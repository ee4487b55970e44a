// internal/address/doc.go

/*
Package address provides the structured representation of a record address
within the build tree, in the canonical format `spec_path:target_name`.

The spec path is a slash-separated directory relative to the build root.
Parsing accepts the following shorthands:

	path:name     explicit spec path and name
	//path:name   the same, anchored at the build root
	:name         relative to the directory of the referencing file
	path          the name defaults to the last path segment

This package centralizes all formatting and parsing logic, so every other
package treats addresses as opaque comparable values.
*/
package address
