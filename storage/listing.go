package storage

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// PrintTree 打印目录结构. Directories come first, each followed by the files
// directly inside it; files at the root are printed last.
func PrintTree(w io.Writer, objects []ObjectInfo) {
	dirs := make(map[string]bool)
	for _, obj := range objects {
		for dir := path.Dir(obj.Key); dir != "." && dir != "/"; dir = path.Dir(dir) {
			dirs[dir] = true
		}
	}

	sortedDirs := make([]string, 0, len(dirs))
	for dir := range dirs {
		sortedDirs = append(sortedDirs, dir)
	}
	sort.Strings(sortedDirs)

	for _, dir := range sortedDirs {
		indent := strings.Repeat("  ", strings.Count(dir, "/"))
		fmt.Fprintf(w, "%s%s/\n", indent, path.Base(dir))
		for _, obj := range objects {
			if path.Dir(obj.Key) == dir {
				fmt.Fprintf(w, "%s  %s (%s)\n", indent, path.Base(obj.Key), FormatSize(obj.Size))
			}
		}
	}

	for _, obj := range objects {
		if !strings.Contains(obj.Key, "/") {
			fmt.Fprintf(w, "%s (%s)\n", obj.Key, FormatSize(obj.Size))
		}
	}
}
