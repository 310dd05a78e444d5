package conditional

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTernary(t *testing.T) {
	assert.Equal(t, "a", Ternary(true, "a", "b"))
	assert.Equal(t, 2, Ternary(false, 1, 2))
}

func TestEnvOr(t *testing.T) {
	env := map[string]string{"SET": "value", "EMPTY": ""}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	assert.Equal(t, "value", EnvOr(lookup, "SET", "fallback"))
	assert.Equal(t, "fallback", EnvOr(lookup, "EMPTY", "fallback"))
	assert.Equal(t, "fallback", EnvOr(lookup, "MISSING", "fallback"))
}
