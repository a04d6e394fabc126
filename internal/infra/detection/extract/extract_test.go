package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bryanwahyu/docguard/internal/testutil"
)

func TestText(t *testing.T) {
	ctx := context.Background()
	doc := testutil.MinimalPDF("Quarterly payroll", "Contact jane@example.com")

	tests := []struct {
		name     string
		fileType string
		data     []byte
		want     string
		wantErr  error
	}{
		{name: "plain text", fileType: "txt", data: []byte("hello"), want: "hello"},
		{name: "pdf by type", fileType: "PDF", data: doc, want: "jane@example.com"},
		{name: "pdf by header", fileType: "bin", data: doc, want: "Quarterly payroll"},
		{name: "binary", fileType: "docx", data: []byte{0x50, 0x4b, 0x03, 0x04, 0xff, 0xfe}, wantErr: ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text(ctx, tt.fileType, tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Text failed: %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Expected %q in %q", tt.want, got)
			}
		})
	}
}

func TestTextBrokenPDF(t *testing.T) {
	ctx := context.Background()
	for name, data := range map[string][]byte{
		"truncated": testutil.MinimalPDF("secret")[:60],
		"not a pdf": []byte("plain words, not a pdf"),
		"no text":   testutil.MinimalPDF(),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Text(ctx, "pdf", data); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestTextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Text(ctx, "pdf", testutil.MinimalPDF("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
