package canvasrenderer

import (
	"strings"
	"testing"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/cartouche/layout"
)

func testFace(t *testing.T) *canvas.FontFace {
	t.Helper()
	r := NewRenderer(".")
	face, err := r.fontFace(layout.FontResource{Name: "Body", Src: "builtin:Go-Regular"}, 12, layout.Color{})
	if err != nil {
		t.Fatalf("fontFace error: %v", err)
	}
	return face
}

// TestClipTextFitsUnchanged 验证放得下的文本原样返回。
func TestClipTextFitsUnchanged(t *testing.T) {
	face := testFace(t)
	text := "short"
	width := face.TextWidth(text) + 1
	if got := clipText(face, text, width, layout.TruncationTail); got != text {
		t.Fatalf("fitting text must pass through: got=%q", got)
	}
}

// TestClipTextTail 验证裁尾：结果放得进宽度，保留开头、以省略号结尾。
func TestClipTextTail(t *testing.T) {
	face := testFace(t)
	text := "abcdefghijklmnopqrstuvwxyz"
	width := face.TextWidth(text) / 2

	got := clipText(face, text, width, layout.TruncationTail)
	if !strings.HasSuffix(got, ellipsis) {
		t.Fatalf("tail clip must end with ellipsis: %q", got)
	}
	if !strings.HasPrefix(got, "abc") {
		t.Fatalf("tail clip must keep the head: %q", got)
	}
	if face.TextWidth(got) > width {
		t.Fatalf("clipped text still overflows: %g > %g", face.TextWidth(got), width)
	}
}

// TestClipTextHead 验证裁头：结果以省略号开头、保留结尾。
func TestClipTextHead(t *testing.T) {
	face := testFace(t)
	text := "abcdefghijklmnopqrstuvwxyz"
	width := face.TextWidth(text) / 2

	got := clipText(face, text, width, layout.TruncationHead)
	if !strings.HasPrefix(got, ellipsis) {
		t.Fatalf("head clip must start with ellipsis: %q", got)
	}
	if !strings.HasSuffix(got, "xyz") {
		t.Fatalf("head clip must keep the tail: %q", got)
	}
	if face.TextWidth(got) > width {
		t.Fatalf("clipped text still overflows: %g > %g", face.TextWidth(got), width)
	}
}

// TestClipTextNoneKeepsOverflow 验证 none 指令不裁剪，即使溢出。
func TestClipTextNoneKeepsOverflow(t *testing.T) {
	face := testFace(t)
	text := "overflowing text"
	if got := clipText(face, text, 1, layout.TruncationNone); got != text {
		t.Fatalf("none directive must not clip: got=%q", got)
	}
}

// TestClipTextDegenerateWidth 验证宽度容不下省略号时返回空串。
func TestClipTextDegenerateWidth(t *testing.T) {
	face := testFace(t)
	if got := clipText(face, "text", 0.01, layout.TruncationTail); got != "" {
		t.Fatalf("degenerate width must clip to empty: %q", got)
	}
	if got := clipText(face, "", 100, layout.TruncationTail); got != "" {
		t.Fatalf("empty text stays empty: %q", got)
	}
}
