package utils

func Ptr[T any](t T) *T {
	return &t
}

func SafeDereference[T any](t *T) T {
	if t == nil {
		var zero T
		return zero
	}
	return *t
}

func EmptyThenNil(s string) *string {
	if s == "" {
		return nil
	}
	return Ptr(s)
}
