package gcp

import "testing"

func TestResolvePublicBaseURLEmulatorFallback(t *testing.T) {
	got, err := resolvePublicBaseURL("", "http://fake-gcs:4443")
	if err != nil {
		t.Fatalf("resolvePublicBaseURL: %v", err)
	}
	if got != "http://fake-gcs:4443" {
		t.Fatalf("baseURL: want=%q got=%q", "http://fake-gcs:4443", got)
	}
}

func TestResolvePublicBaseURLOverride(t *testing.T) {
	got, err := resolvePublicBaseURL("http://localhost:4443/", "http://fake-gcs:4443")
	if err != nil {
		t.Fatalf("resolvePublicBaseURL: %v", err)
	}
	if got != "http://localhost:4443" {
		t.Fatalf("baseURL: want=%q got=%q", "http://localhost:4443", got)
	}
}

func TestResolvePublicBaseURLInvalid(t *testing.T) {
	if _, err := resolvePublicBaseURL("localhost:4443", ""); err == nil {
		t.Fatalf("resolvePublicBaseURL: expected error, got nil")
	}
}

func TestPublicURLGCSDefault(t *testing.T) {
	b := &Bucket{name: "artforge-public"}
	got := b.PublicURL("artforge/artifacts/01HX.png")
	want := "https://storage.googleapis.com/artforge-public/artforge/artifacts/01HX.png"
	if got != want {
		t.Fatalf("PublicURL: want=%q got=%q", want, got)
	}
}

func TestPublicURLCDN(t *testing.T) {
	b := &Bucket{name: "artforge-public", cdnDomain: "cdn.artforge.dev"}
	got := b.PublicURL("/a/b.json")
	if got != "https://cdn.artforge.dev/a/b.json" {
		t.Fatalf("PublicURL: got=%q", got)
	}
}

func TestPublicURLEmulator(t *testing.T) {
	b := &Bucket{name: "bkt", emulatorHost: "http://fake-gcs:4443", publicBaseURL: "http://localhost:4443"}
	got := b.PublicURL("artforge/metadata/x.json")
	want := "http://localhost:4443/storage/v1/b/bkt/o/artforge%2Fmetadata%2Fx.json?alt=media"
	if got != want {
		t.Fatalf("PublicURL: want=%q got=%q", want, got)
	}
}

func TestContentTypeForKey(t *testing.T) {
	cases := map[string]string{
		"a.png":      "image/png",
		"A.JSON":     "application/json",
		"x.webp?v=1": "image/webp",
		"blob":       "application/octet-stream",
	}
	for key, want := range cases {
		if got := ContentTypeForKey(key); got != want {
			t.Fatalf("ContentTypeForKey(%q): want=%q got=%q", key, want, got)
		}
	}
}
