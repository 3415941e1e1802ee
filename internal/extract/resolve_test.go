package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategies(t *testing.T) {
	id := RepoIdentity{Name: "spring-boot", Branch: "main"}

	tests := []struct {
		name       string
		strategy   Strategy
		candidates []string
		expected   string
		found      bool
	}{
		{"exact with branch", ExactCandidate, []string{"other", "spring-boot-main"}, "spring-boot-main", true},
		{"exact case insensitive", ExactCandidate, []string{"Spring-Boot-Master"}, "Spring-Boot-Master", true},
		{"exact bare name", ExactCandidate, []string{"spring-boot"}, "spring-boot", true},
		{"exact none", ExactCandidate, []string{"spring-boot-2.x"}, "", false},
		{"name and branch", NameAndBranchFragment, []string{"spring-boot-1.0", "x-spring-boot-main-y"}, "x-spring-boot-main-y", true},
		{"name and branch none", NameAndBranchFragment, []string{"spring-boot-dev"}, "", false},
		{"name fragment", NameFragment, []string{"docs", "SPRING-BOOT-dev"}, "SPRING-BOOT-dev", true},
		{"name fragment none", NameFragment, []string{"docs"}, "", false},
		{"sole directory", SoleDirectory, []string{"anything"}, "anything", true},
		{"sole directory many", SoleDirectory, []string{"a", "b"}, "", false},
		{"first visible", FirstVisibleDirectory, []string{".github", "src"}, "src", true},
		{"first visible none", FirstVisibleDirectory, []string{".hidden"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.strategy(tt.candidates, id)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolve_Order(t *testing.T) {
	// Exact match wins over an earlier fragment match.
	got, err := Resolve([]string{"spring-boot-docs", "spring-boot-main"}, RepoIdentity{Name: "spring-boot", Branch: "main"})
	require.NoError(t, err)
	assert.Equal(t, "spring-boot-main", got)

	// Branch names with slashes are flattened.
	got, err = Resolve([]string{"tool-release-1.x"}, RepoIdentity{Name: "tool", Branch: "release/1.x"})
	require.NoError(t, err)
	assert.Equal(t, "tool-release-1.x", got)

	// Falls through to the first visible directory.
	got, err = Resolve([]string{".cache", "unrelated", "zzz"}, RepoIdentity{Name: "tool", Branch: "main"})
	require.NoError(t, err)
	assert.Equal(t, "unrelated", got)

	_, err = Resolve(nil, RepoIdentity{Name: "tool"})
	assert.ErrorIs(t, err, ErrRootNotFound)
}

func TestSkipReason(t *testing.T) {
	short := ShortPathPolicy("java")
	assert.Empty(t, short.SkipReason("r/src/A.java", "/tmp/r/src/A.java", false))
	assert.Equal(t, "extension not allowed", short.SkipReason("r/a.md", "/tmp/r/a.md", false))
	assert.Empty(t, short.SkipReason("r/docs", "/tmp/r/docs", true))
	assert.Equal(t, "disallowed character", short.SkipReason("r/a?.java", "/tmp/r/a?.java", false))
	assert.Equal(t, "disallowed character", short.SkipReason("r/a\x01.java", "/tmp/r/a.java", false))

	deep := "r"
	for range 20 {
		deep += "/d"
	}
	assert.Equal(t, "too deep", short.SkipReason(deep+"/A.java", "/t", false))
	assert.Empty(t, LongPathPolicy().SkipReason(deep+"/A.md", "/t", false))

	deeper := "r"
	for range 70 {
		deeper += "/d"
	}
	assert.Empty(t, LongPathPolicy().SkipReason(deeper+"/A.java", "/t/"+deeper+"/A.java", false))
}
