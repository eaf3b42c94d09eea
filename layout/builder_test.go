package layout

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/cartouche/dsl"
)

// buildSheet 是测试辅助：解析 DSL 文本并用确定性的测量桩完成布局。
func buildSheet(t *testing.T, source string, data any, debug DebugOptions) *Result {
	t.Helper()
	doc, err := dsl.ParseString(source)
	if err != nil {
		t.Fatalf("解析 DSL 失败: %v", err)
	}
	res, err := Build(doc, data, BuildOptions{Measurer: stubMeasurer{}, Debug: debug})
	if err != nil {
		t.Fatalf("布局失败: %v", err)
	}
	return res
}

// TestBuildBasicStrip 验证单个条幅的页面几何：A4 尺寸、默认边距、
// 条幅占满内容宽度、右段右缘贴条幅右缘。
func TestBuildBasicStrip(t *testing.T) {
	res := buildSheet(t, `
sheet Demo v1 {
  page A4 {
    strip left "Alice" right "Speaker"
  }
}
`, nil, DebugOptions{})

	if len(res.Pages) != 1 {
		t.Fatalf("应只有一页: got=%d", len(res.Pages))
	}
	page := res.Pages[0]
	if page.Width != 210 || page.Height != 297 {
		t.Fatalf("A4 尺寸错误: %gx%g", page.Width, page.Height)
	}
	wantMargin := Margin{Top: 20, Right: 20, Bottom: 20, Left: 20}
	if diff := cmp.Diff(wantMargin, page.Margin); diff != "" {
		t.Fatalf("默认边距错误 (-want +got):\n%s", diff)
	}
	if len(page.Strips) != 1 {
		t.Fatalf("应有一个条幅: got=%d", len(page.Strips))
	}

	strip := page.Strips[0]
	if !eq(strip.X, 20) || !eq(strip.Y, 20) || !eq(strip.Width, 170) {
		t.Fatalf("条幅几何错误: %+v", strip)
	}
	if strip.Left.Content != "Alice" || strip.Right.Content != "Speaker" {
		t.Fatalf("条幅内容错误: left=%q right=%q", strip.Left.Content, strip.Right.Content)
	}
	if strip.FontSize != strip.BaseSize {
		t.Fatalf("无缩小时字号应保持: base=%g got=%g", strip.BaseSize, strip.FontSize)
	}
	if !eq(strip.Right.Rect.X+strip.Right.Rect.Width, strip.Width) {
		t.Fatalf("右段未贴条幅右缘: %+v", strip.Right.Rect)
	}
}

// TestBuildBlockAttrsOverrideInline 验证属性优先级：块内赋值覆盖行内键值对，
// 裸字符串是 left 的简写。
func TestBuildBlockAttrsOverrideInline(t *testing.T) {
	res := buildSheet(t, `
sheet Demo v1 {
  page A4 {
    strip right "inline" {
      right: "block"
      "shorthand left"
    }
  }
}
`, nil, DebugOptions{})

	strip := res.Pages[0].Strips[0]
	if strip.Right.Content != "block" {
		t.Fatalf("块内赋值应覆盖行内: got=%q", strip.Right.Content)
	}
	if strip.Left.Content != "shorthand left" {
		t.Fatalf("裸字符串应作为 left: got=%q", strip.Left.Content)
	}
}

// TestBuildStyleInheritance 验证样式继承链与行内覆盖：
// Title 继承 Base 的截断策略、覆盖字号。
func TestBuildStyleInheritance(t *testing.T) {
	res := buildSheet(t, `
sheet Demo v1 {
  resources {
    color Accent = #FF0000
    style Base { size: 10pt; truncate: both-tails }
    style Title extends Base { size: 14pt; color: Accent }
  }
  page A4 {
    strip Title left "L" right "R"
  }
}
`, nil, DebugOptions{})

	strip := res.Pages[0].Strips[0]
	if strip.BaseSize != 14 {
		t.Fatalf("样式字号未生效: got=%g want=14", strip.BaseSize)
	}
	if strip.Left.Truncation != TruncationTail || strip.Right.Truncation != TruncationTail {
		t.Fatalf("继承的截断策略未生效: left=%v right=%v", strip.Left.Truncation, strip.Right.Truncation)
	}
	if diff := cmp.Diff(Color{R: 255, G: 0, B: 0}, strip.Color); diff != "" {
		t.Fatalf("颜色资源未解析 (-want +got):\n%s", diff)
	}
}

// TestBuildStyleCycle 验证样式继承成环时报错。
func TestBuildStyleCycle(t *testing.T) {
	doc, err := dsl.ParseString(`
sheet Demo v1 {
  resources {
    style A extends B { size: 10pt }
    style B extends A { size: 12pt }
  }
  page A4 {
    strip A left "x"
  }
}
`)
	if err != nil {
		t.Fatalf("解析 DSL 失败: %v", err)
	}
	if _, err := Build(doc, nil, BuildOptions{Measurer: stubMeasurer{}}); err == nil {
		t.Fatalf("样式循环应报错")
	}
}

// TestBuildMarginVariants 验证 CSS 风格的 1/2/4 值边距与横向纸张。
func TestBuildMarginVariants(t *testing.T) {
	cases := []struct {
		name string
		spec string
		w, h float64
		want Margin
	}{
		{"单值", "A4 margin 10mm", 210, 297, Margin{Top: 10, Right: 10, Bottom: 10, Left: 10}},
		{"双值", "A4 margin 10mm 25mm", 210, 297, Margin{Top: 10, Right: 25, Bottom: 10, Left: 25}},
		{"四值", "A5 margin 5mm 6mm 7mm 8mm", 148, 210, Margin{Top: 5, Right: 6, Bottom: 7, Left: 8}},
		{"横向", "A4 landscape margin 10mm", 297, 210, Margin{Top: 10, Right: 10, Bottom: 10, Left: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := buildSheet(t, `
sheet Demo v1 {
  page `+tc.spec+` {
    strip left "x"
  }
}
`, nil, DebugOptions{})
			page := res.Pages[0]
			if page.Width != tc.w || page.Height != tc.h {
				t.Fatalf("页面尺寸错误: %gx%g want %gx%g", page.Width, page.Height, tc.w, tc.h)
			}
			if diff := cmp.Diff(tc.want, page.Margin); diff != "" {
				t.Fatalf("边距错误 (-want +got):\n%s", diff)
			}
		})
	}
}

// TestBuildPageBreak 验证条幅越过内容区底部时开新页。
// A4 内容底部在 277mm：第 5 个 50mm 高的条幅放不下，换页。
func TestBuildPageBreak(t *testing.T) {
	res := buildSheet(t, `
sheet Demo v1 {
  page A4 {
    strip left "1" height 50mm
    strip left "2" height 50mm
    strip left "3" height 50mm
    strip left "4" height 50mm
    strip left "5" height 50mm
  }
}
`, nil, DebugOptions{})

	if len(res.Pages) != 2 {
		t.Fatalf("应分成两页: got=%d", len(res.Pages))
	}
	if got := len(res.Pages[0].Strips); got != 4 {
		t.Fatalf("第一页应有 4 个条幅: got=%d", got)
	}
	second := res.Pages[1].Strips
	if len(second) != 1 || !eq(second[0].Y, 20) {
		t.Fatalf("换页后游标应回到上边距: %+v", second)
	}
}

// TestBuildGapAndRule 验证 gap 推进游标、rule 在游标处落线。
func TestBuildGapAndRule(t *testing.T) {
	res := buildSheet(t, `
sheet Demo v1 {
  page A4 {
    strip left "a" height 10mm
    gap 5mm
    rule width 1mm color #336699
  }
}
`, nil, DebugOptions{})

	page := res.Pages[0]
	if len(page.Rules) != 1 {
		t.Fatalf("应有一条分隔线: got=%d", len(page.Rules))
	}
	rule := page.Rules[0]
	// 游标：20（上边距）+10（条幅）+2（条距）+5（gap）= 37
	if !eq(rule.Y, 37) || !eq(rule.X, 20) || !eq(rule.Length, 170) {
		t.Fatalf("分隔线位置错误: %+v", rule)
	}
	if rule.Width != 1 {
		t.Fatalf("线宽未生效: got=%g", rule.Width)
	}
	if diff := cmp.Diff(Color{R: 0x33, G: 0x66, B: 0x99}, rule.Color); diff != "" {
		t.Fatalf("线色错误 (-want +got):\n%s", diff)
	}
}

// TestBuildBindingInterpolation 验证条幅文本中的 ${path} 占位符被替换。
func TestBuildBindingInterpolation(t *testing.T) {
	data := map[string]any{
		"name": "张三",
		"tags": []any{"VIP"},
	}
	res := buildSheet(t, `
sheet Demo v1 {
  page A4 {
    strip left "${name}" right "${tags[0]}"
  }
}
`, data, DebugOptions{})

	strip := res.Pages[0].Strips[0]
	if strip.Left.Content != "张三" || strip.Right.Content != "VIP" {
		t.Fatalf("插值失败: left=%q right=%q", strip.Left.Content, strip.Right.Content)
	}
}

// TestBuildShrinkAndFitTrace 验证 shrink on 触发字号缩小，
// 且开启 FitTrace 时输出自然尺寸与缩小步数。
func TestBuildShrinkAndFitTrace(t *testing.T) {
	res := buildSheet(t, `
sheet Demo v1 {
  page A4 {
    strip left "HelloHello" right "WorldWorld" width 20mm shrink on
  }
}
`, nil, DebugOptions{FitTrace: true})

	strip := res.Pages[0].Strips[0]
	if strip.FontSize >= strip.BaseSize {
		t.Fatalf("shrink on 应缩小字号: base=%g got=%g", strip.BaseSize, strip.FontSize)
	}
	if strip.Debug == nil {
		t.Fatalf("FitTrace 开启时应输出调试信息")
	}
	if strip.Debug.ShrinkSteps <= 0 {
		t.Fatalf("缩小步数应为正: %d", strip.Debug.ShrinkSteps)
	}
	if !eq(strip.Debug.NaturalLeft.Width, 72) {
		t.Fatalf("自然宽度记录错误: got=%g want=72", strip.Debug.NaturalLeft.Width)
	}
	if strip.Debug.MissingWidth <= 0 {
		t.Fatalf("仍有缺口时 MissingWidth 应为正: %g", strip.Debug.MissingWidth)
	}
}

// TestBuildStripWidthAndAlign 验证百分比宽度与居中对齐。
func TestBuildStripWidthAndAlign(t *testing.T) {
	res := buildSheet(t, `
sheet Demo v1 {
  page A4 {
    strip left "x" width 50% align center
  }
}
`, nil, DebugOptions{})

	strip := res.Pages[0].Strips[0]
	if !eq(strip.Width, 85) {
		t.Fatalf("百分比宽度错误: got=%g want=85", strip.Width)
	}
	// 20 + (170-85)/2 = 62.5
	if !eq(strip.X, 62.5) {
		t.Fatalf("居中偏移错误: got=%g want=62.5", strip.X)
	}
}

// TestBuildFrameAttrs 验证 frame 系列属性生成外框样式。
func TestBuildFrameAttrs(t *testing.T) {
	res := buildSheet(t, `
sheet Demo v1 {
  page A4 {
    strip left "framed" frame on frame-radius 2mm frame-color #112233
    strip left "plain"
  }
}
`, nil, DebugOptions{})

	framed := res.Pages[0].Strips[0]
	if framed.Frame == nil {
		t.Fatalf("frame on 应生成外框")
	}
	if framed.Frame.Radius != 2 {
		t.Fatalf("圆角半径错误: got=%g", framed.Frame.Radius)
	}
	if diff := cmp.Diff(Color{R: 0x11, G: 0x22, B: 0x33}, framed.Frame.Color); diff != "" {
		t.Fatalf("外框颜色错误 (-want +got):\n%s", diff)
	}
	if res.Pages[0].Strips[1].Frame != nil {
		t.Fatalf("未声明 frame 的条幅不应有外框")
	}
}

// TestBuildMeta 验证 meta 段落写入文档元信息。
func TestBuildMeta(t *testing.T) {
	res := buildSheet(t, `
sheet Demo v1 {
  meta {
    title: "Badges"
    author: "Reg"
    keywords: ["conf", "2026"]
  }
  page A4 {
    strip left "x"
  }
}
`, nil, DebugOptions{})

	want := DocumentMeta{
		Title:    "Badges",
		Author:   "Reg",
		Creator:  "Cartouche",
		Keywords: []string{"conf", "2026"},
	}
	if diff := cmp.Diff(want, res.Meta); diff != "" {
		t.Fatalf("元信息错误 (-want +got):\n%s", diff)
	}
}

// TestBuildDefaultFontInjected 验证未声明字体时注入内置默认字体。
func TestBuildDefaultFontInjected(t *testing.T) {
	res := buildSheet(t, `
sheet Demo v1 {
  page A4 {
    strip left "x"
  }
}
`, nil, DebugOptions{})

	font, ok := res.Resources.Fonts["Body"]
	if !ok {
		t.Fatalf("应注入默认 Body 字体")
	}
	if font.Src != "builtin:Go-Regular" {
		t.Fatalf("默认字体来源错误: %q", font.Src)
	}
}

// TestBuildErrors 验证边界错误：空文档、缺 page 段落、未知纸张、非法截断策略。
func TestBuildErrors(t *testing.T) {
	if _, err := Build(nil, nil, BuildOptions{}); err == nil {
		t.Fatalf("空文档应报错")
	}

	noPage, err := dsl.ParseString(`sheet Demo v1 { meta { title: "x" } }`)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if _, err := Build(noPage, nil, BuildOptions{Measurer: stubMeasurer{}}); err == nil {
		t.Fatalf("缺少 page 段落应报错")
	}

	badSize, err := dsl.ParseString(`sheet Demo v1 { page B5 { strip left "x" } }`)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if _, err := Build(badSize, nil, BuildOptions{Measurer: stubMeasurer{}}); err == nil {
		t.Fatalf("未知纸张应报错")
	}

	badTrunc, err := dsl.ParseString(`sheet Demo v1 { page A4 { strip left "x" truncate middle } }`)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if _, err := Build(badTrunc, nil, BuildOptions{Measurer: stubMeasurer{}}); err == nil {
		t.Fatalf("非法截断策略应报错")
	}
}

// TestBuildWithoutMeasurer 验证不传测量器时退回估算实现（pt→mm 换算）。
func TestBuildWithoutMeasurer(t *testing.T) {
	doc, err := dsl.ParseString(`
sheet Demo v1 {
  page A4 {
    strip left "Hello" right "World"
  }
}
`)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	res, err := Build(doc, nil, BuildOptions{})
	if err != nil {
		t.Fatalf("布局失败: %v", err)
	}
	strip := res.Pages[0].Strips[0]
	// 估算行高 = 12pt × 1.2，换算到 mm
	if !eq(strip.Height, 12*1.2*PtToMm) {
		t.Fatalf("估算行高错误: got=%g", strip.Height)
	}
}
