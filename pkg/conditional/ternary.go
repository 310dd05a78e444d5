// package conditional
//
// small expression helpers go does not ship with
package conditional

// Ternary : returns a when cond holds, b otherwise
func Ternary[T any](cond bool, a T, b T) T {
	if cond {
		return a
	}
	return b
}

// EnvOr : value of the env lookup when it is set and not empty , fallback otherwise
func EnvOr(lookup func(string) (string, bool), key string, fallback string) string {
	v, ok := lookup(key)
	return Ternary(ok && v != "", v, fallback)
}
