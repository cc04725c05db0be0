package media

import "testing"

func TestIsPlayable(t *testing.T) {
	cases := map[string]bool{
		"movie.mkv":              true,
		"movie.nfo":              false,
		"MOVIE.MP4":              true,
		"Show/S01/E01.m2ts":      true,
		"Show\\S01\\sample.webm": true,
		"readme":                 false,
		"archive.mkv.part":       false,
		"clip.TS":                true,
	}
	for name, want := range cases {
		if got := IsPlayable(name); got != want {
			t.Fatalf("IsPlayable(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType("a/b/film.MKV"); got != "video/x-matroska" {
		t.Fatalf("unexpected mkv content type %q", got)
	}
	if got := ContentType("film.mp4"); got != "video/mp4" {
		t.Fatalf("unexpected mp4 content type %q", got)
	}
	if got := ContentType("notes.txt"); got != "application/octet-stream" {
		t.Fatalf("unexpected fallback content type %q", got)
	}
}

func TestNormalizeRelativePath(t *testing.T) {
	got, err := NormalizeRelativePath("Show\\..\\..\\etc/passwd")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "etc/passwd" {
		t.Fatalf("expected traversal to be cleaned, got %q", got)
	}

	if _, err := NormalizeRelativePath("   "); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := NormalizeRelativePath("/"); err == nil {
		t.Fatalf("expected error for root path")
	}
}
