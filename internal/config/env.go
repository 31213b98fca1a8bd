package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnv loads the nearest .env file at or above dir. Variables already
// set in the environment win.
func loadDotEnv(dir string) {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	for {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

var braceVarRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expand replaces env("VAR"), env('VAR') and ${VAR} references. A bare $ is
// kept, so passwords may contain it.
func expand(s string) string {
	for _, open := range []string{`env("`, `env('`} {
		closer := string(open[4]) + ")"
		for {
			start := strings.Index(s, open)
			if start < 0 {
				break
			}
			end := strings.Index(s[start+len(open):], closer)
			if end < 0 {
				break
			}
			end += start + len(open)
			s = s[:start] + os.Getenv(s[start+len(open):end]) + s[end+len(closer):]
		}
	}
	return braceVarRegex.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(m[2 : len(m)-1])
	})
}
