package luacheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckValid(t *testing.T) {
	src := "local x = 1\nif x > 0 then\nprint(\"ok\")\nend\n"
	assert.NoError(t, Check("main.lua", src))
}

func TestCheckInvalid(t *testing.T) {
	src := "local x = 1\nif x > 0 then\nprint(\"ok\")\n"
	err := Check("main.lua", src)
	require.Error(t, err)

	var serr *SyntaxError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "main.lua", serr.File)
	assert.Contains(t, err.Error(), "main.lua")
}

func TestCheckReportsLine(t *testing.T) {
	src := "a = 1\nb = = 2\n"
	err := Check("bad.lua", src)

	var serr *SyntaxError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 2, serr.Line)
}
