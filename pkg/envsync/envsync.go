// Package envsync copies database credentials between dotenv files.
package envsync

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultPrefix selects the variables that describe the Postgres instance.
const DefaultPrefix = "POSTGRES_"

// Sync copies every variable whose name starts with prefix from the source
// dotenv file into the target dotenv file. Keys in the target that do not
// carry the prefix are preserved untouched; prefixed keys in the target are
// replaced wholesale so the target never keeps stale credentials. The target
// is created if it does not exist. A missing source file is an error.
func Sync(sourcePath, targetPath, prefix string) error {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	if _, err := os.Stat(sourcePath); err != nil {
		return fmt.Errorf("source env file %s: %w", sourcePath, err)
	}

	source, err := godotenv.Read(sourcePath)
	if err != nil {
		return fmt.Errorf("read source env file %s: %w", sourcePath, err)
	}

	target := map[string]string{}
	if _, err := os.Stat(targetPath); err == nil {
		target, err = godotenv.Read(targetPath)
		if err != nil {
			return fmt.Errorf("read target env file %s: %w", targetPath, err)
		}
	}

	// Drop previously synced keys so removals in the source propagate.
	for key := range target {
		if strings.HasPrefix(key, prefix) {
			delete(target, key)
		}
	}

	copied := 0
	for key, value := range source {
		if strings.HasPrefix(key, prefix) {
			target[key] = value
			copied++
		}
	}
	if copied == 0 {
		return fmt.Errorf("source env file %s has no variables with prefix %s", sourcePath, prefix)
	}

	if err := godotenv.Write(target, targetPath); err != nil {
		return fmt.Errorf("write target env file %s: %w", targetPath, err)
	}
	return nil
}
