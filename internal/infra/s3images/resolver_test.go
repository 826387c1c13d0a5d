package s3images

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestParseRef(t *testing.T) {
	bucket, key, ok := ParseRef("s3://quiz-images/math/triangle.png")
	if !ok || bucket != "quiz-images" || key != "math/triangle.png" {
		t.Fatalf("unexpected parse %q %q %v", bucket, key, ok)
	}
	for _, ref := range []string{"AgACAgIAAxkBAAIB", "https://example.com/a.png", "s3://bucket", "s3:///key"} {
		if _, _, ok := ParseRef(ref); ok {
			t.Fatalf("%q: expected no match", ref)
		}
	}
}

func TestResolvePresignsS3References(t *testing.T) {
	r, err := New(context.Background(), Config{
		Region:          "us-east-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		PresignTTL:      5 * time.Minute,
	}, nil)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	url, err := r.Resolve(context.Background(), "s3://quiz-images/math/triangle.png")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.HasPrefix(url, "https://") || !strings.Contains(url, "quiz-images") || !strings.Contains(url, "math/triangle.png") {
		t.Fatalf("unexpected url %q", url)
	}
	if !strings.Contains(url, "X-Amz-Signature=") || !strings.Contains(url, "X-Amz-Expires=300") {
		t.Fatalf("expected a signed url, got %q", url)
	}

	fileID := "AgACAgIAAxkBAAIB"
	if got, err := r.Resolve(context.Background(), fileID); err != nil || got != fileID {
		t.Fatalf("expected pass-through, got %q (%v)", got, err)
	}
}
