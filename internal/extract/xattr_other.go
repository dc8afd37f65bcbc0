//go:build !linux

package extract

func restoreXattrs(string, map[string]string) {}
