package canvasrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/cartouche/fonts"
	"github.com/ByLCY/cartouche/layout"
	"github.com/ByLCY/cartouche/renderer"
)

// defaultStrokeWidth 是分隔线与外框的默认线宽（mm）。
const defaultStrokeWidth = 0.2

// ellipsis 是裁剪指令落地时拼在切口一侧的省略号。
const ellipsis = "…"

// Renderer 基于 github.com/tdewolff/canvas 绘制条幅页面，
// 同时以真实字体度量实现 layout.TextMeasurer。
type Renderer struct {
	baseDir string

	// injected resources
	fontBlobs map[string][]byte // by unique name

	fontMu         sync.Mutex
	fontFamilies   map[string]*fontFamilyEntry
	fallbackFamily *canvas.FontFamily
}

var (
	_ renderer.Renderer   = (*Renderer)(nil)
	_ layout.TextMeasurer = (*Renderer)(nil)
)

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

// Options configures the canvas renderer.
type Options struct {
	BaseDir string
	Fonts   map[string]Resource // extra fonts accessible via built-in:<name>
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer creates a canvas-based renderer rooted at baseDir for resolving assets.
func NewRenderer(baseDir string) *Renderer { return NewRendererWithOptions(Options{BaseDir: baseDir}) }

// NewRendererWithOptions creates a renderer with injected resources and optional baseDir.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		baseDir:      opts.BaseDir,
		fontBlobs:    map[string][]byte{},
		fontFamilies: map[string]*fontFamilyEntry{},
	}
	for name, res := range opts.Fonts {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			r.fontBlobs[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			data, _ := os.ReadFile(res.Path) // ignore error here; will be caught when actually used
			if len(data) > 0 {
				r.fontBlobs[name] = data
			}
		}
	}
	return r
}

// Measure 实现 layout.TextMeasurer：返回单行文本在指定字体下的自然尺寸。
// 约定：字号为 pt，返回的宽高为 mm。空字符串宽度为零，但仍报告一行的高度，
// 以便空侧也能锚定初始行高。
func (r *Renderer) Measure(text string, font layout.FontSpec) (layout.Size, error) {
	face, err := r.fontFace(font.Font, font.Size, layout.Color{R: 30, G: 30, B: 30})
	if err != nil {
		return layout.Size{}, err
	}
	metrics := face.Metrics()
	return layout.Size{
		Width:  face.TextWidth(text),
		Height: metrics.LineHeight,
	}, nil
}

// Render renders the result into a PDF byte slice.
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if len(result.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}

	var buf bytes.Buffer
	writer := pdf.New(&buf, result.Pages[0].Width, result.Pages[0].Height, nil)
	r.applyMeta(writer, result.Meta)
	for i, page := range result.Pages {
		if i > 0 {
			writer.NewPage(page.Width, page.Height)
		}
		c := canvas.New(page.Width, page.Height)
		ctx := canvas.NewContext(c)
		ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点

		if err := r.drawPage(ctx, page, result.Resources); err != nil {
			return nil, err
		}
		c.RenderTo(writer)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) applyMeta(writer *pdf.PDF, meta layout.DocumentMeta) {
	if writer == nil {
		return
	}
	keywords := strings.Join(meta.Keywords, ", ")
	writer.SetInfo(meta.Title, meta.Subject, keywords, meta.Author, meta.Creator)
}

func (r *Renderer) drawPage(ctx *canvas.Context, page layout.Page, resources layout.ResourceSet) error {
	// 先画分隔线与外框作为背景，再画文本
	r.drawRules(ctx, page.Rules)
	for _, strip := range page.Strips {
		if strip.Frame != nil {
			r.drawFrame(ctx, strip)
		}
	}
	for _, strip := range page.Strips {
		fontRes := resolveFontResource(strip.Font, resources.Fonts)
		if err := r.drawStrip(ctx, strip, fontRes); err != nil {
			return err
		}
	}
	return nil
}

// drawStrip 绘制一个条幅的左右两段。段矩形为条内局部坐标，
// 这里换算到页面坐标；超出矩形的文本按裁剪指令收尾。
func (r *Renderer) drawStrip(ctx *canvas.Context, strip layout.StripBox, fontRes layout.FontResource) error {
	face, err := r.fontFace(fontRes, strip.FontSize, strip.Color)
	if err != nil {
		return err
	}
	r.drawSegment(ctx, face, strip, strip.Left, canvas.Left)
	r.drawSegment(ctx, face, strip, strip.Right, canvas.Right)
	return nil
}

func (r *Renderer) drawSegment(ctx *canvas.Context, face *canvas.FontFace, strip layout.StripBox, seg layout.SegmentBox, align canvas.TextAlign) {
	visible := clipText(face, seg.Content, seg.Rect.Width, seg.Truncation)
	if visible == "" {
		return
	}

	// 左段以矩形左缘为锚点，右段以右缘为锚点
	anchorX := strip.X + seg.Rect.X
	if align == canvas.Right {
		anchorX = strip.X + seg.Rect.X + seg.Rect.Width
	}

	// 基线位置：矩形顶部（页面坐标，mm）加字体上升部
	metrics := face.Metrics()
	baseline := strip.Y + seg.Rect.Y + metrics.Ascent

	ctx.DrawText(anchorX, baseline, canvas.NewTextLine(face, visible, align))
}

// clipText 把裁剪指令落地为可见文本：超出宽度时逐字符收缩，
// 在切口一侧拼上省略号，直到放得进矩形为止。
// 指令为 none 时原样返回，允许溢出绘制（两段可能重叠）。
func clipText(face *canvas.FontFace, text string, width float64, directive layout.Truncation) string {
	if text == "" {
		return ""
	}
	if directive == layout.TruncationNone {
		return text
	}
	if face.TextWidth(text) <= width {
		return text
	}
	if face.TextWidth(ellipsis) > width {
		return ""
	}

	runes := []rune(text)
	switch directive {
	case layout.TruncationTail:
		for i := len(runes) - 1; i > 0; i-- {
			candidate := string(runes[:i]) + ellipsis
			if face.TextWidth(candidate) <= width {
				return candidate
			}
		}
	case layout.TruncationHead:
		for i := 1; i < len(runes); i++ {
			candidate := ellipsis + string(runes[i:])
			if face.TextWidth(candidate) <= width {
				return candidate
			}
		}
	}
	return ellipsis
}

// drawFrame 绘制条幅外框（圆角矩形，只描边不填充）。
func (r *Renderer) drawFrame(ctx *canvas.Context, strip layout.StripBox) {
	frame := strip.Frame
	w := frame.Width
	if w <= 0 {
		w = defaultStrokeWidth
	}
	ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
	ctx.SetStrokeColor(colorFromLayout(frame.Color))
	ctx.SetStrokeWidth(w)
	if frame.Radius > 0 {
		ctx.DrawPath(strip.X, strip.Y, canvas.RoundedRectangle(strip.Width, strip.Height, frame.Radius))
	} else {
		ctx.DrawPath(strip.X, strip.Y, canvas.Rectangle(strip.Width, strip.Height))
	}
}

// drawRules 绘制水平分隔线（毫米单位）。
func (r *Renderer) drawRules(ctx *canvas.Context, rules []layout.Rule) {
	for _, rule := range rules {
		w := rule.Width
		if w <= 0 {
			w = defaultStrokeWidth
		}
		ctx.SetStrokeColor(colorFromLayout(rule.Color))
		ctx.SetStrokeWidth(w)
		p := &canvas.Path{}
		p.MoveTo(0, 0)
		p.LineTo(rule.Length, 0)
		ctx.DrawPath(rule.X, rule.Y, p)
	}
}

func (r *Renderer) fontFace(font layout.FontResource, size float64, col layout.Color) (*canvas.FontFace, error) {
	family, style, err := r.ensureFontFamily(font)
	if err != nil {
		return nil, err
	}
	return family.Face(size, colorFromLayout(col), style, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily(font layout.FontResource) (*canvas.FontFamily, canvas.FontStyle, error) {
	key := fontCacheKey(font)
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if entry, ok := r.fontFamilies[key]; ok {
		return entry.family, entry.style, nil
	}

	style := parseFontStyle(font.Style)
	familyName := font.Family
	if familyName == "" {
		familyName = font.Name
	}
	if familyName == "" {
		familyName = "Body"
	}
	family := canvas.NewFontFamily(familyName)

	if err := r.loadFontIntoFamily(family, font, style); err != nil {
		fallback, fbStyle, fbErr := r.fallback()
		if fbErr != nil {
			return nil, canvas.FontRegular, err
		}
		r.fontFamilies[key] = &fontFamilyEntry{family: fallback, style: fbStyle}
		return fallback, fbStyle, nil
	}

	entry := &fontFamilyEntry{family: family, style: style}
	r.fontFamilies[key] = entry
	return family, style, nil
}

func (r *Renderer) loadFontIntoFamily(family *canvas.FontFamily, font layout.FontResource, style canvas.FontStyle) error {
	data, err := r.loadFontBytes(font)
	if err != nil {
		return err
	}
	return family.LoadFont(data, 0, style)
}

func (r *Renderer) loadFontBytes(font layout.FontResource) ([]byte, error) {
	if font.Src == "" {
		return nil, fmt.Errorf("字体 %s 缺少 src", font.Name)
	}
	src := font.Src
	if strings.HasPrefix(src, "built-in:") || strings.HasPrefix(src, "builtin:") {
		name := strings.TrimPrefix(strings.TrimPrefix(src, "built-in:"), "builtin:")
		if blob, ok := r.fontBlobs[name]; ok {
			return blob, nil
		}
		return fonts.Load(name)
	}
	// Path based
	path := src
	if r.baseDir == "" && !filepath.IsAbs(path) {
		return nil, fmt.Errorf("未指定资源目录时不允许直接使用字体路径：%s（请改用 builtin:）", src)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	return os.ReadFile(path)
}

func (r *Renderer) fallback() (*canvas.FontFamily, canvas.FontStyle, error) {
	if r.fallbackFamily != nil {
		return r.fallbackFamily, canvas.FontRegular, nil
	}
	data, err := fonts.Load("Go-Regular")
	if err != nil {
		return nil, canvas.FontRegular, err
	}
	family := canvas.NewFontFamily("cartouche-fallback")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, canvas.FontRegular, err
	}
	r.fallbackFamily = family
	return family, canvas.FontRegular, nil
}

func resolveFontResource(name string, fonts map[string]layout.FontResource) layout.FontResource {
	if font, ok := fonts[name]; ok {
		return font
	}
	if font, ok := fonts["Body"]; ok {
		return font
	}
	for _, font := range fonts {
		return font
	}
	return layout.FontResource{}
}

func parseFontStyle(style string) canvas.FontStyle {
	if style == "" {
		return canvas.FontRegular
	}
	s := strings.ToLower(style)
	result := canvas.FontRegular
	switch {
	case strings.Contains(s, "black"):
		result = canvas.FontBlack
	case strings.Contains(s, "extrabold"):
		result = canvas.FontExtraBold
	case strings.Contains(s, "bold"):
		result = canvas.FontBold
	case strings.Contains(s, "semibold"), strings.Contains(s, "demibold"):
		result = canvas.FontSemiBold
	case strings.Contains(s, "medium"):
		result = canvas.FontMedium
	case strings.Contains(s, "light"):
		result = canvas.FontLight
	default:
		result = canvas.FontRegular
	}
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		result |= canvas.FontItalic
	}
	return result
}

func fontCacheKey(font layout.FontResource) string {
	return fmt.Sprintf("%s|%s|%s", font.Name, font.Src, font.Style)
}

func colorFromLayout(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}
