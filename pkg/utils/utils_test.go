package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vctt94/pokerroom/pkg/poker"
)

func TestFormatCards(t *testing.T) {
	assert.Equal(t, "None", FormatCards(nil))
	assert.Equal(t, "A♠ T♥", FormatCards(poker.MustParseCards("AS TH")))
}

func TestFormatChips(t *testing.T) {
	assert.Equal(t, "+25", FormatChips(25, true))
	assert.Equal(t, "-3", FormatChips(-3, true))
	assert.Equal(t, "25", FormatChips(25, false))
}

func TestEnsureDataDirExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, EnsureDataDirExists(dir))

	info, err := os.Stat(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
