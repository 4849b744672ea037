package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads an optional .env file into the process environment and then populates
// spec from environment variables. Variables already set in the environment win over
// the file. A missing .env file is not an error.
func Load(spec any, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	if err := envconfig.Process("", spec); err != nil {
		return fmt.Errorf("processing environment: %w", err)
	}
	return nil
}

func String(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// Port is a TCP port read from the environment. envconfig rejects values outside 1-65535
// when the struct is loaded.
type Port string

func (p *Port) Decode(v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("not a valid TCP port: %q", v)
	}
	*p = Port(strconv.Itoa(n))
	return nil
}

// Addr is the listen address on every interface.
func (p Port) Addr() string {
	return ":" + string(p)
}
