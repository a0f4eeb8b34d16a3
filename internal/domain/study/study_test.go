package study

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStudy(t *testing.T) {
	st, err := NewStudy("  Sleep Study  ", "sleep-2025", " Questions? lab@example.com ")
	require.NoError(t, err)

	assert.Equal(t, "Sleep Study", st.PublicName)
	assert.Equal(t, "sleep-2025", st.InternalName)
	assert.Equal(t, "Questions? lab@example.com", st.ContactMessage)
	assert.Len(t, st.Code, SignupCodeLength)
}

func TestNewStudy_Invalid(t *testing.T) {
	_, err := NewStudy("", "internal", "")
	assert.Error(t, err)

	_, err = NewStudy("public", "  ", "")
	assert.Error(t, err)

	_, err = NewStudy(strings.Repeat("x", 256), "internal", "")
	assert.Error(t, err)
}

func TestStudy_Update(t *testing.T) {
	st, err := NewStudy("Sleep Study", "sleep-2025", "")
	require.NoError(t, err)
	code := st.Code

	require.NoError(t, st.Update("Dream Study", "dream-2025", "New contact"))
	assert.Equal(t, "Dream Study", st.PublicName)
	assert.Equal(t, "dream-2025", st.InternalName)
	assert.Equal(t, code, st.Code, "signup code survives updates")

	assert.Error(t, st.Update("", "dream-2025", ""))
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := GenerateCode(8)
		require.NoError(t, err)
		require.Len(t, code, 8)
		for _, c := range code {
			assert.Contains(t, codeAlphabet, string(c))
		}
		seen[code] = true
	}
	// 100 draws from a 57^8 space should not collide
	assert.Len(t, seen, 100)
}
