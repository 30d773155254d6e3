package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetVersion(t *testing.T) {
	orig := version
	t.Cleanup(func() { version = orig })

	SetVersion("")
	assert.Equal(t, orig, version)

	SetVersion("v1.2.0")
	assert.Equal(t, "v1.2.0", Version())
}
