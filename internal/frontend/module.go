package frontend

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// FindGoMod walks up from startDir looking for a go.mod file.
//
// Parameters:
//   - startDir: Directory to start searching from
//
// Returns:
//   - Path to go.mod file
//   - Empty string if no go.mod found
func FindGoMod(startDir string) string {
	dir := startDir
	for {
		modPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(modPath); err == nil {
			return modPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// MainModulePath returns the module path declared by the go.mod that
// governs dir.
//
// Returns:
//   - Module path, e.g. "example.com/axpy"
//   - Error if no go.mod is found or it cannot be parsed
func MainModulePath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	goModPath := FindGoMod(abs)
	if goModPath == "" {
		return "", fmt.Errorf("no go.mod found above %s", abs)
	}
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	modFile, err := modfile.Parse(goModPath, data, nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse go.mod: %w", err)
	}
	if modFile.Module == nil {
		return "", fmt.Errorf("%s has no module directive", goModPath)
	}
	return modFile.Module.Mod.Path, nil
}
