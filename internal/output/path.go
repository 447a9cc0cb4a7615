package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// FallbackName is used when a window has no usable title or class
const FallbackName = "screenshot"

// SanitizeName turns a window title into a file name stem. Characters that
// are invalid in file names on any supported platform become underscores.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case strings.ContainsRune(`<>:"/\|?*`, r), unicode.IsControl(r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	s := strings.Trim(b.String(), " .")
	if s == "" {
		return FallbackName
	}
	return s
}

// DesktopDir returns the user's desktop directory if it exists
func DesktopDir() (string, bool) {
	if dir := os.Getenv("XDG_DESKTOP_DIR"); dir != "" && isDir(dir) {
		return dir, true
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	dir := filepath.Join(home, "Desktop")
	return dir, isDir(dir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// DefaultPath builds dir/<sanitised name><ext>. An empty dir means the
// desktop, or the working directory when there is no desktop.
func DefaultPath(dir, name string, f Format) string {
	if dir == "" {
		if desktop, ok := DesktopDir(); ok {
			dir = desktop
		} else if wd, err := os.Getwd(); err == nil {
			dir = wd
		}
	}
	return filepath.Join(dir, SanitizeName(name)+f.Extension())
}

// AvailablePath returns path if nothing exists there, otherwise the first
// free name of the form stem_N.ext
func AvailablePath(path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return path, nil
	} else if err != nil {
		return "", err
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		_, err := os.Stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
}
