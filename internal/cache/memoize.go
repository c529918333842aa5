package cache

import "time"

// Memoize wraps fn so results are cached per argument under the given name.
// It is the function-decorator form of GetOrCompute.
func Memoize[A comparable, R any](c *Cache, name string, ttl time.Duration, fn func(A) (R, error)) func(A) (R, error) {
	return func(arg A) (R, error) {
		key := KeyFor(name, arg)
		if v, ok := c.Get(key); ok {
			if r, ok := v.(R); ok {
				return r, nil
			}
		}

		r, err := fn(arg)
		if err != nil {
			var zero R
			return zero, err
		}
		c.Set(key, r, ttl)
		return r, nil
	}
}
