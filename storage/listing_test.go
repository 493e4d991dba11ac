package storage

import (
	"bytes"
	"testing"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{5 << 20, "5.0 MB"},
		{3 << 30, "3.0 GB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.in); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrintTree(t *testing.T) {
	var buf bytes.Buffer
	PrintTree(&buf, []ObjectInfo{
		{Key: "a/x.mp3", Size: 2048},
		{Key: "a/b/y.mp3", Size: 10},
		{Key: "root.mp3", Size: 1},
	})

	want := "a/\n" +
		"  x.mp3 (2.0 KB)\n" +
		"  b/\n" +
		"    y.mp3 (10 B)\n" +
		"root.mp3 (1 B)\n"
	if buf.String() != want {
		t.Errorf("PrintTree output:\n%s\nwant:\n%s", buf.String(), want)
	}
}
