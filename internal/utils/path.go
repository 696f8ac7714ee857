package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// NormalizeDomain lowercases a domain and strips whitespace and a trailing dot
// Example: " Example.COM. " -> "example.com"
func NormalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}

// DomainKey converts a domain to the form used in file names and step keys
// Example: "shop.example.com" -> "shop_example_com"
func DomainKey(domain string) string {
	key := NormalizeDomain(domain)
	var result strings.Builder
	result.Grow(len(key))
	for _, c := range key {
		switch {
		case (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_':
			result.WriteRune(c)
		default:
			result.WriteRune('_')
		}
	}
	return result.String()
}

// FileExists checks if a file exists at the given path
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
