package environment

import (
	"context"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/oshokin/deploy-manager/internal/logger"
)

// ChildEnvironment returns a copy of parent without the variables whose name
// starts with any of excludedPrefixes. Values are never changed.
func ChildEnvironment(parent map[string]string, excludedPrefixes []string) map[string]string {
	child := make(map[string]string, len(parent))

	for key, value := range parent {
		if hasAnyPrefix(key, excludedPrefixes) {
			continue
		}

		child[key] = value
	}

	return child
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	return false
}

// Options configures a Provider.
type Options struct {
	// ExcludedPrefixes are removed from the child environment.
	ExcludedPrefixes []string
	// EnvFile is an optional dotenv file layered over the supervisor environment.
	EnvFile string
}

// Provider builds the child environment from the supervisor process.
type Provider struct {
	opts    Options
	environ func() []string
}

// NewProvider creates a provider reading the current process environment.
func NewProvider(opts Options) *Provider {
	return &Provider{opts: opts, environ: os.Environ}
}

// Environment returns the filtered child environment. The dotenv file is
// merged before filtering, so exclusions apply to its variables too.
func (p *Provider) Environment(ctx context.Context) (map[string]string, error) {
	parent := parseEnviron(p.environ())

	if p.opts.EnvFile != "" {
		fromFile, err := godotenv.Read(p.opts.EnvFile)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", p.opts.EnvFile, err)
		}

		maps.Copy(parent, fromFile)
	}

	child := ChildEnvironment(parent, p.opts.ExcludedPrefixes)
	logger.DebugKV(ctx, "Child environment prepared",
		"inherited", len(child), "removed", len(parent)-len(child))

	return child, nil
}

// parseEnviron turns KEY=value pairs into a map; entries without '=' are skipped.
func parseEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}

		env[key] = value
	}

	return env
}

// Environ renders env as KEY=value pairs for exec.Cmd, in no particular order.
func Environ(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for key, value := range env {
		out = append(out, key+"="+value)
	}

	return out
}
