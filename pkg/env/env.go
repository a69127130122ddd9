// Package env implements the environment layer: process environment
// merged with an optional dotenv file, with process environment always
// winning over the file.
package env

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/corepack-go/corepack/pkg/logger"
)

// Reader abstracts environment lookups so callers don't depend on package
// level global state; production code uses Load, tests construct a Reader
// directly over a map.
type Reader interface {
	Getenv(key string) string
	LookupEnv(key string) (string, bool)
}

// Env is the merged view: process environment plus dotenv overlay, with
// process environment values taking precedence.
type Env struct {
	process map[string]string
	file    map[string]string
}

var _ Reader = (*Env)(nil)

// Getenv returns the process value if set, else the dotenv value, else "".
func (e *Env) Getenv(key string) string {
	v, _ := e.LookupEnv(key)
	return v
}

// LookupEnv mirrors os.LookupEnv but consults the dotenv overlay as a
// fallback when the process environment doesn't have the key.
func (e *Env) LookupEnv(key string) (string, bool) {
	if v, ok := e.process[key]; ok {
		return v, true
	}
	if v, ok := e.file[key]; ok {
		return v, true
	}
	return "", false
}

// ProcessOnly returns the raw process value, bypassing the dotenv overlay
// entirely. COREPACK_ENABLE_DOWNLOAD_PROMPT must be read this way: a
// dotenv-supplied value for it is never honored.
func (e *Env) ProcessOnly(key string) (string, bool) {
	v, ok := e.process[key]
	return v, ok
}

// Load builds an Env for the given project root. File selection follows
// COREPACK_ENV_FILE: "0" disables file loading, any other non-empty value
// names the file, and the default is ".corepack.env" in projectRoot.
func Load(projectRoot string) *Env {
	process := map[string]string{}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			process[kv[:i]] = kv[i+1:]
		}
	}

	e := &Env{process: process, file: map[string]string{}}

	fileName := process["COREPACK_ENV_FILE"]
	switch fileName {
	case "0":
		return e
	case "":
		fileName = ".corepack.env"
	}

	path := fileName
	if !filepath.IsAbs(path) {
		path = filepath.Join(projectRoot, fileName)
	}

	f, err := os.Open(path)
	if err != nil {
		return e
	}
	defer f.Close()

	parsed, err := godotenv.Parse(f)
	if err != nil {
		logger.Warnw("failed to parse dotenv file, ignoring it", "path", path, "error", err)
		return e
	}
	e.file = parsed
	return e
}

// StaticReader is a fixed-map Reader for tests.
type StaticReader map[string]string

func (s StaticReader) Getenv(key string) string { return s[key] }
func (s StaticReader) LookupEnv(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}
