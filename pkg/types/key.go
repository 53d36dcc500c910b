package types

// Boxed wraps a key or value the way the host engine's value layer boxes
// objects before they reach the index. Routing code must unwrap the box
// before delegating to the host partition function.
type Boxed struct {
	Value any
}

// Unwrap removes any layers of Boxed wrapping and returns the underlying
// comparable key object. Non-boxed values are returned unchanged.
func Unwrap(v any) any {
	for {
		b, ok := v.(Boxed)
		if !ok {
			if bp, ok := v.(*Boxed); ok {
				v = bp.Value
				continue
			}
			return v
		}
		v = b.Value
	}
}
