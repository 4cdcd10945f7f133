package main

import "strings"

func deduceFormat(format, filePath string) string {
	if format != "" {
		return format
	}
	switch {
	case strings.HasSuffix(filePath, ".sqlite"), strings.HasSuffix(filePath, ".db"):
		return "sqlite"
	case strings.HasSuffix(filePath, ".index"):
		return "index"
	}
	return ""
}
