package delivery

import (
	"fmt"
	"path/filepath"
	"strings"
)

// uncPrefix marks a Windows network share path.
const uncPrefix = `\\`

func isUNC(path string) bool {
	return strings.HasPrefix(path, uncPrefix)
}

// joinPath joins base and name with the separator native to base: a backslash
// for UNC shares, the OS separator otherwise.
func joinPath(base, name string) string {
	if isUNC(base) {
		name = strings.TrimLeft(strings.ReplaceAll(name, "/", `\`), `\`)
		return strings.TrimRight(base, `\/`) + `\` + name
	}
	return filepath.Join(base, name)
}

// dirOf returns the directory portion of path.
func dirOf(path string) string {
	if isUNC(path) {
		if i := strings.LastIndex(path, `\`); i >= len(uncPrefix) {
			return path[:i]
		}
		return path
	}
	return filepath.Dir(path)
}

// checkAddressable rejects paths this platform cannot open.
func checkAddressable(path string) error {
	if isUNC(path) && !uncSupported {
		return fmt.Errorf("UNC path %q is only addressable on windows", path)
	}
	return nil
}
