package environment

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func parentEnv() map[string]string {
	return map[string]string{
		"prefix1.name.here": "value1",
		"prefix2.name.here": "value2",
		"PATH":              "/usr/bin",
	}
}

// TestChildEnvironment_NoExclusions returns an environment equal to the parent.
func TestChildEnvironment_NoExclusions(t *testing.T) {
	t.Parallel()

	parent := parentEnv()
	require.Equal(t, parent, ChildEnvironment(parent, nil))
	require.Equal(t, parent, ChildEnvironment(parent, []string{}))
}

// TestChildEnvironment_OnePrefixExcluded drops only matching keys.
func TestChildEnvironment_OnePrefixExcluded(t *testing.T) {
	t.Parallel()

	parent := parentEnv()
	child := ChildEnvironment(parent, []string{"prefix1"})

	require.NotEqual(t, parent, child)
	require.NotContains(t, child, "prefix1.name.here")
	require.Equal(t, "value2", child["prefix2.name.here"])
	require.Len(t, parent, 3)
}

// TestChildEnvironment_Filtering checks that retained keys match no prefix and keep their value.
func TestChildEnvironment_Filtering(t *testing.T) {
	t.Parallel()

	parent := map[string]string{
		"A": "1", "AB": "2", "ABC": "3", "B": "4", "BA": "5", "C": "", "": "empty-key",
	}

	for _, prefixes := range [][]string{
		{"A"}, {"AB"}, {"B", "C"}, {""}, {"Z"}, {"A", "AB", "ABC"},
	} {
		child := ChildEnvironment(parent, prefixes)

		for key, value := range child {
			for _, prefix := range prefixes {
				require.False(t, strings.HasPrefix(key, prefix), "%q kept with prefix %q", key, prefix)
			}

			require.Equal(t, parent[key], value)
		}

		for key := range parent {
			if _, kept := child[key]; !kept {
				require.True(t, hasAnyPrefix(key, prefixes), "%q dropped without matching prefix", key)
			}
		}
	}
}

// TestProvider_Environment merges the dotenv file before filtering.
func TestProvider_Environment(t *testing.T) {
	t.Parallel()

	envFile := filepath.Join(t.TempDir(), "payload.env")
	require.NoError(t, os.WriteFile(envFile, []byte("FROM_FILE=yes\nSECRET_TOKEN=abc\nPATH=/opt/bin\n"), 0o600))

	p := NewProvider(Options{
		ExcludedPrefixes: []string{"SECRET_", "DEPLOY_MANAGER_"},
		EnvFile:          envFile,
	})
	p.environ = func() []string {
		return []string{"PATH=/usr/bin", "DEPLOY_MANAGER_CONFIG=x", "HOME=/root", "broken"}
	}

	env, err := p.Environment(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"PATH":      "/opt/bin",
		"HOME":      "/root",
		"FROM_FILE": "yes",
	}, env)
}

// TestProvider_MissingEnvFile reports a missing dotenv file.
func TestProvider_MissingEnvFile(t *testing.T) {
	t.Parallel()

	p := NewProvider(Options{EnvFile: filepath.Join(t.TempDir(), "missing.env")})

	_, err := p.Environment(context.Background())
	require.Error(t, err)
}

// TestEnviron renders pairs for exec.
func TestEnviron(t *testing.T) {
	t.Parallel()

	require.ElementsMatch(t, []string{"A=1", "B="}, Environ(map[string]string{"A": "1", "B": ""}))
}
