package domain

// SourceImage is the raw content of one uploaded database file together with
// its display name. It is what the blob store persists.
type SourceImage struct {
	Name string
	Data []byte
}

// SourceDatabase is a loaded, read-only source database.
type SourceDatabase struct {
	Index int    // ordinal position in the registry
	Name  string // display name, advisory only
	Size  int    // image size in bytes
	Conn  Conn
}
