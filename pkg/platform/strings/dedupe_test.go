package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	assert.Equal(t, []string{"hash_match", "Tag"}, DedupeAndTrim([]string{"  hash_match ", "Tag", "hash_match", "", "  "}))
	assert.Nil(t, DedupeAndTrim(nil))
}

func TestNormalizeTerms(t *testing.T) {
	assert.Equal(t, []string{"teen", "minor"}, NormalizeTerms([]string{" Teen", "MINOR", "teen "}))
}

func TestMatchTerms(t *testing.T) {
	terms := NormalizeTerms([]string{"kill", "attack"})
	assert.Equal(t, []string{"kill"}, MatchTerms("I will KILL the boss", terms))
	assert.Empty(t, MatchTerms("", terms))
	assert.Empty(t, MatchTerms("a calm day", terms))

	t.Run("whole words only", func(t *testing.T) {
		minors := NormalizeTerms([]string{"teen", "minor"})
		for _, tag := range []string{"canteen", "nineteen", "minority", "skilled", "minors-only"} {
			assert.Empty(t, MatchTerms(tag, minors), tag)
		}
		assert.Equal(t, []string{"teen"}, MatchTerms("teen-model", minors))
		assert.Empty(t, MatchTerms("skilled attacker", terms))
	})

	t.Run("multi-word terms match a contiguous run", func(t *testing.T) {
		phrases := NormalizeTerms([]string{"kill you"})
		assert.Equal(t, []string{"kill you"}, MatchTerms("I will kill, you know... no: I will KILL  YOU", phrases))
		assert.Empty(t, MatchTerms("kill the man, you", phrases))
	})
}
