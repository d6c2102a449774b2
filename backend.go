package btf

// backend is the capability set the Btf facade needs from a storage
// strategy. Both implementations must return semantically equal results
// for the same input bytes.
type backend interface {
	// maxID returns the highest id described by this blob alone.
	maxID() TypeID

	// typeByID resolves an id. Ids outside the blob's own range fail
	// with ErrNotFound; for split blobs that range starts past the
	// base's maxID.
	typeByID(TypeID) (Type, error)

	// idsByName returns the ids of all types with the given name, in
	// blob order. The returned slice must not be modified.
	idsByName(string) []TypeID

	// names calls fn for every indexed name with the ids owning it,
	// until fn returns false. Iteration order is unspecified.
	names(fn func(string, []TypeID) bool)

	// strings returns the blob's string table.
	strings() *stringTable

	// close releases resources backing the blob.
	close() error
}
