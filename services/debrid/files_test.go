package debrid

import "testing"

func TestJunkExtensions(t *testing.T) {
	junk := []string{"/a/b.iso", "setup.EXE", "pack.zip", "vid.rar", "x.7z", "run.scr"}
	for _, path := range junk {
		if !IsJunkFile(path) {
			t.Fatalf("expected %q flagged as junk", path)
		}
	}
	if IsJunkFile("/a/movie.mkv") {
		t.Fatalf("video file flagged as junk")
	}
}

func TestPlausibleVideoNeedsExtensionAndSize(t *testing.T) {
	if IsPlausibleVideo(File{Path: "movie.mkv", Bytes: 49 * mib}, 50) {
		t.Fatalf("undersized video accepted")
	}
	if IsPlausibleVideo(File{Path: "movie.txt", Bytes: 500 * mib}, 50) {
		t.Fatalf("non-video extension accepted")
	}
	if !IsPlausibleVideo(File{Path: "Movie.MKV", Bytes: 50 * mib}, 50) {
		t.Fatalf("valid video rejected")
	}
}

func TestLargestPlausibleVideo(t *testing.T) {
	files := []File{
		{ID: 1, Path: "sample.mp4", Bytes: 10 * mib},
		{ID: 2, Path: "movie.mp4", Bytes: 900 * mib},
		{ID: 3, Path: "movie-4k.mkv", Bytes: 9000 * mib},
	}
	best := LargestPlausibleVideo(files, 50)
	if best == nil || best.ID != 3 {
		t.Fatalf("expected file 3, got %+v", best)
	}
	if got := LargestPlausibleVideo(nil, 50); got != nil {
		t.Fatalf("expected nil for empty listing")
	}
}

func TestFirstPlausibleVideo(t *testing.T) {
	files := []File{
		{ID: 1, Path: "sample.mp4", Bytes: 10 * mib},
		{ID: 2, Path: "movie.mp4", Bytes: 900 * mib},
		{ID: 3, Path: "movie-4k.mkv", Bytes: 9000 * mib},
	}
	first := FirstPlausibleVideo(files, 50)
	if first == nil || first.ID != 2 {
		t.Fatalf("expected first qualifying file 2, got %+v", first)
	}
	if got := FirstPlausibleVideo(nil, 50); got != nil {
		t.Fatalf("expected nil for empty listing")
	}
}

func TestInfoHashRoundTrip(t *testing.T) {
	hash := "0123456789abcdef0123456789abcdef01234567"
	magnet := BuildMagnet(hash)
	if got := ExtractInfoHash(magnet); got != hash {
		t.Fatalf("round trip failed: %q", got)
	}
	if got := ExtractInfoHash("magnet:?xt=urn:btih:0123456789ABCDEF0123456789ABCDEF01234567&dn=x"); got != hash {
		t.Fatalf("expected lowercased hash, got %q", got)
	}
	if got := ExtractInfoHash("https://example.com"); got != "" {
		t.Fatalf("expected empty hash for non-magnet, got %q", got)
	}
}

func TestTerminalStatus(t *testing.T) {
	for _, status := range []string{"downloaded", "Finished", " DOWNLOADED "} {
		if !isTerminalStatus(status) {
			t.Fatalf("expected %q terminal", status)
		}
	}
	for _, status := range []string{"queued", "magnet_error", "downloading", ""} {
		if isTerminalStatus(status) {
			t.Fatalf("expected %q non-terminal", status)
		}
	}
}
