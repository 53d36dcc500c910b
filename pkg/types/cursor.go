package types

// Cursor is an opaque resume token for paged scans. It is produced by an
// index partition, handed back by the caller to continue a scan, and carried
// through partition pruning unchanged. A zero Cursor means "start from the
// beginning".
type Cursor []byte

// IsZero reports whether the cursor marks the start of a scan.
func (c Cursor) IsZero() bool { return len(c) == 0 }

// String renders the cursor for logs. The content is opaque to callers.
func (c Cursor) String() string { return string(c) }
