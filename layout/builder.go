package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ByLCY/cartouche/binding"
	"github.com/ByLCY/cartouche/dsl"
)

const (
	// stripSpacing 是相邻条幅之间的默认纵向间距（mm），gap 语句在此之外叠加。
	stripSpacing = 2.0
	// defaultMinScale 是开启 shrink 而未指定 min-scale 时的缩小下限。
	defaultMinScale = 0.5
	// defaultRuleWidth 是分隔线的默认线宽（mm）。
	defaultRuleWidth = 0.2
)

// Build 根据 DSL AST 生成条幅页面布局结果。
// 未提供测量后端时使用估算实现（按 pt→mm 换算），便于无渲染器场景下预览布局。
func Build(doc *dsl.Document, data any, opts BuildOptions) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("文档为空")
	}
	if opts.Measurer == nil {
		opts.Measurer = ApproxMeasurer{Scale: PtToMm}
	}

	res, err := collectResources(doc)
	if err != nil {
		return nil, err
	}
	meta := collectMeta(doc)
	pageSection := firstPage(doc)
	if pageSection == nil {
		return nil, fmt.Errorf("文档中缺少 page 段落")
	}

	pages, err := buildPages(pageSection, res, data, opts)
	if err != nil {
		return nil, err
	}

	return &Result{
		Pages:     pages,
		Resources: res,
		Meta:      meta,
	}, nil
}

func buildPages(section *dsl.PageSection, res ResourceSet, data any, opts BuildOptions) ([]Page, error) {
	width, height, err := resolvePageSize(section.Spec)
	if err != nil {
		return nil, err
	}
	if section.Block == nil {
		return nil, fmt.Errorf("page 段落缺少内容")
	}

	margin := resolveMargin(section.Spec.Params)
	collector := newPageCollector(width, height, margin)

	ctx := &stripContext{
		collector: collector,
		margin:    margin,
		baseX:     margin.Left,
		cursorY:   margin.Top,
		width:     width - margin.Left - margin.Right,
		data:      data,
		measurer:  opts.Measurer,
		debug:     opts.Debug,
	}

	for _, stmt := range section.Block.Statements {
		if stmt.Command == nil {
			continue
		}
		cmd := stmt.Command
		switch cmd.Name {
		case "strip":
			if err := handleStrip(cmd, ctx, res); err != nil {
				return nil, err
			}
		case "gap":
			handleGap(cmd, ctx)
		case "rule":
			handleRule(cmd, ctx, res)
		default:
			// 其余命令暂未实现，忽略即可
		}
	}

	return collector.pages(), nil
}

// handleStrip 解析条幅属性、插值左右文本并调用 Fit 适配，结果追加到当前页。
// 属性优先级：块内赋值 > 行内键值对 > 样式属性。
func handleStrip(cmd *dsl.Command, ctx *stripContext, res ResourceSet) error {
	styleName, attrs := parseArgs(cmd.Args, true)
	attrs = mergeStyleAttributes(styleName, attrs, res.Styles)
	applyBlockAttrs(cmd.Block, attrs)

	leftText := binding.Interpolate(attrs["left"], ctx.data)
	rightText := binding.Interpolate(attrs["right"], ctx.data)

	fontName := attrs["font"]
	if fontName == "" {
		fontName = styleName
	}
	if fontName == "" {
		fontName = "Body"
	}
	fontRes, err := resolveFontResource(fontName, res)
	if err != nil {
		return err
	}

	basePt := parseFontSizePt(attrs["size"])
	baseFont := FontSpec{Font: fontRes, Size: basePt}
	spacing := parseLength(attrs["spacing"])

	stripW := ctx.width
	if v := attrs["width"]; v != "" {
		if w := parseDimension(v, ctx.width); w > 0 && w <= ctx.width {
			stripW = w
		}
	}

	// 默认条幅高度为基准字号下的自然行高；显式 height 可覆盖。
	naturalLeft := safeMeasure(ctx.measurer, leftText, baseFont)
	naturalRight := safeMeasure(ctx.measurer, rightText, baseFont)
	stripH := math.Max(naturalLeft.Height, naturalRight.Height)
	if v := attrs["height"]; v != "" {
		if h := parseLength(v); h > 0 {
			stripH = h
		}
	}

	shrink := parseBool(attrs["shrink"])
	minScale := 0.0
	if shrink {
		minScale = defaultMinScale
		if v := attrs["min-scale"]; v != "" {
			minScale = parseScale(v)
		}
	}

	truncation := TruncateNone
	if v := attrs["truncate"]; v != "" {
		truncation, err = ParseTruncationStyle(v)
		if err != nil {
			return fmt.Errorf("strip 截断策略无效: %w", err)
		}
	}

	fit := Fit(FitRequest{
		Left:       leftText,
		Right:      rightText,
		Font:       baseFont,
		Spacing:    spacing,
		Container:  Size{Width: stripW, Height: stripH},
		AutoShrink: shrink,
		MinScale:   minScale,
		Truncation: truncation,
	}, ctx.measurer)

	box := StripBox{
		X:        ctx.baseX + alignOffset(ctx.width, stripW, attrs["align"]),
		Width:    stripW,
		Height:   stripH,
		Font:     fontName,
		BaseSize: basePt,
		FontSize: fit.Font.Size,
		Color:    resolveColor(attrs["color"], res),
		Left:     SegmentBox{Content: leftText, Rect: fit.Left, Truncation: fit.LeftTruncation},
		Right:    SegmentBox{Content: rightText, Rect: fit.Right, Truncation: fit.RightTruncation},
	}

	if frameEnabled(attrs) {
		box.Frame = &FrameStyle{
			Color:  resolveColor(attrs["frame-color"], res),
			Width:  parseLength(attrs["frame-width"]),
			Radius: parseLength(attrs["frame-radius"]),
		}
	}

	if ctx.debug.FitTrace {
		lw := safeMeasure(ctx.measurer, leftText, fit.Font)
		rw := safeMeasure(ctx.measurer, rightText, fit.Font)
		missing := spacing + lw.Width + rw.Width - stripW
		if missing < 0 {
			missing = 0
		}
		box.Debug = &StripDebug{
			NaturalLeft:  naturalLeft,
			NaturalRight: naturalRight,
			ShrinkSteps:  int(math.Round((basePt - fit.Font.Size) / shrinkStep)),
			MissingWidth: missing,
		}
	}

	ctx.ensureSpace(stripH)
	box.Y = ctx.cursorY
	if acc := ctx.acc(); acc != nil {
		acc.appendStrip(box)
	}
	ctx.cursorY += stripH + stripSpacing
	return nil
}

func handleGap(cmd *dsl.Command, ctx *stripContext) {
	if len(cmd.Args) == 0 {
		return
	}
	if v := parseLength(cmd.Args[0].Value); v > 0 {
		ctx.cursorY += v
	}
}

func handleRule(cmd *dsl.Command, ctx *stripContext, res ResourceSet) {
	_, attrs := parseArgs(cmd.Args, false)
	width := parseLength(attrs["width"])
	if width <= 0 {
		width = defaultRuleWidth
	}
	color := Color{R: 200, G: 200, B: 200}
	if v := attrs["color"]; v != "" {
		color = resolveColor(v, res)
	}

	ctx.ensureSpace(width)
	rule := Rule{
		X:      ctx.baseX,
		Y:      ctx.cursorY,
		Length: ctx.width,
		Width:  width,
		Color:  color,
	}
	if acc := ctx.acc(); acc != nil {
		acc.appendRule(rule)
	}
	ctx.cursorY += width
}

// applyBlockAttrs 把块内赋值写进属性表（覆盖行内与样式属性）。
// 裸字符串语句是 left 的简写，仅在 left 尚未设置时生效。
func applyBlockAttrs(block *dsl.Block, attrs map[string]string) {
	if block == nil {
		return
	}
	for _, stmt := range block.Statements {
		switch {
		case stmt.Assignment != nil:
			if v := valueToString(stmt.Assignment.Value); v != "" {
				attrs[stmt.Assignment.Key] = v
			}
		case stmt.Text != nil:
			if attrs["left"] == "" {
				attrs["left"] = string(stmt.Text.Value)
			}
		}
	}
}

type pageAccumulator struct {
	strips []StripBox
	rules  []Rule
}

func (p *pageAccumulator) appendStrip(s StripBox) {
	p.strips = append(p.strips, s)
}

func (p *pageAccumulator) appendRule(r Rule) {
	p.rules = append(p.rules, r)
}

type pageCollector struct {
	width   float64
	height  float64
	margin  Margin
	accs    []*pageAccumulator
	current int
}

func newPageCollector(width, height float64, margin Margin) *pageCollector {
	pc := &pageCollector{
		width:  width,
		height: height,
		margin: margin,
	}
	pc.newPage()
	return pc
}

func (pc *pageCollector) newPage() *pageAccumulator {
	acc := &pageAccumulator{}
	pc.accs = append(pc.accs, acc)
	pc.current = len(pc.accs) - 1
	return acc
}

func (pc *pageCollector) curr() *pageAccumulator {
	if len(pc.accs) == 0 {
		return pc.newPage()
	}
	return pc.accs[pc.current]
}

// maxContentY 是内容区域底部（页面坐标）。
func (pc *pageCollector) maxContentY() float64 {
	return pc.height - pc.margin.Bottom
}

func (pc *pageCollector) pages() []Page {
	out := make([]Page, len(pc.accs))
	for i, acc := range pc.accs {
		out[i] = Page{
			Width:  pc.width,
			Height: pc.height,
			Margin: pc.margin,
			Strips: acc.strips,
			Rules:  acc.rules,
		}
	}
	return out
}

// stripContext 维护自上而下排布条幅时的游标状态。
type stripContext struct {
	collector *pageCollector
	margin    Margin
	baseX     float64
	cursorY   float64
	width     float64
	data      any
	measurer  TextMeasurer
	debug     DebugOptions
}

func (ctx *stripContext) ensureSpace(height float64) {
	if ctx.collector == nil {
		return
	}
	if ctx.cursorY+height <= ctx.collector.maxContentY() {
		return
	}
	ctx.pageBreak()
}

func (ctx *stripContext) pageBreak() {
	if ctx.collector == nil {
		return
	}
	ctx.collector.newPage()
	ctx.cursorY = ctx.margin.Top
}

func (ctx *stripContext) acc() *pageAccumulator {
	if ctx.collector == nil {
		return nil
	}
	return ctx.collector.curr()
}

func collectResources(doc *dsl.Document) (ResourceSet, error) {
	res := ResourceSet{
		Fonts:  map[string]FontResource{},
		Colors: map[string]Color{},
		Styles: map[string]Style{},
	}
	rawStyles := map[string]Style{}

	for _, section := range doc.Sections {
		if section.Resources == nil || section.Resources.Block == nil {
			continue
		}
		for _, stmt := range section.Resources.Block.Statements {
			if stmt.Command == nil {
				continue
			}
			switch stmt.Command.Name {
			case "font":
				font := parseFontResource(stmt.Command)
				if font.Name != "" {
					res.Fonts[font.Name] = font
				}
			case "color":
				name, value := parseColorResource(stmt.Command)
				if name == "" || value == "" {
					continue
				}
				if c, err := parseColor(value); err == nil {
					res.Colors[name] = c
				}
			case "style":
				style := parseStyleResource(stmt.Command)
				if style.Name != "" {
					rawStyles[style.Name] = style
				}
			}
		}
	}

	if len(res.Fonts) == 0 {
		def := DefaultFont().Font
		res.Fonts[def.Name] = def
	}

	resolvedStyles, err := resolveStyles(rawStyles)
	if err != nil {
		return res, err
	}
	res.Styles = resolvedStyles

	return res, nil
}

func collectMeta(doc *dsl.Document) DocumentMeta {
	meta := DocumentMeta{
		Creator: "Cartouche",
	}
	for _, section := range doc.Sections {
		if section.Meta == nil || section.Meta.Block == nil {
			continue
		}
		for _, stmt := range section.Meta.Block.Statements {
			if stmt.Assignment == nil {
				continue
			}
			key := strings.ToLower(stmt.Assignment.Key)
			switch key {
			case "title":
				meta.Title = valueToString(stmt.Assignment.Value)
			case "author":
				meta.Author = valueToString(stmt.Assignment.Value)
			case "subject":
				meta.Subject = valueToString(stmt.Assignment.Value)
			case "creator":
				meta.Creator = valueToString(stmt.Assignment.Value)
			case "keywords":
				meta.Keywords = valueToStringSlice(stmt.Assignment.Value)
			}
		}
	}
	return meta
}

func parseFontResource(cmd *dsl.Command) FontResource {
	if len(cmd.Args) == 0 {
		return FontResource{}
	}
	font := FontResource{
		Name:   cmd.Args[0].Value,
		Family: cmd.Args[0].Value,
	}

	if cmd.Block == nil {
		return font
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		val := valueToString(stmt.Assignment.Value)
		switch stmt.Assignment.Key {
		case "src":
			font.Src = val
		case "style":
			font.Style = val
		case "family":
			if val != "" {
				font.Family = val
			}
		case "fallback":
			font.Fallback = val
		}
	}
	return font
}

func parseStyleResource(cmd *dsl.Command) Style {
	if len(cmd.Args) == 0 {
		return Style{}
	}
	style := Style{
		Name:  cmd.Args[0].Value,
		Props: map[string]string{},
	}
	if len(cmd.Args) >= 3 && strings.EqualFold(cmd.Args[1].Value, "extends") {
		style.Extends = cmd.Args[2].Value
	}

	if cmd.Block == nil {
		return style
	}

	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		val := valueToString(stmt.Assignment.Value)
		if val == "" {
			continue
		}
		style.Props[stmt.Assignment.Key] = val
	}
	return style
}

func resolveStyles(styles map[string]Style) (map[string]Style, error) {
	resolved := map[string]Style{}
	visiting := map[string]bool{}

	var dfs func(name string) (Style, error)
	dfs = func(name string) (Style, error) {
		if style, ok := resolved[name]; ok {
			return style, nil
		}
		style, ok := styles[name]
		if !ok {
			return Style{}, fmt.Errorf("style %s 未定义", name)
		}
		if visiting[name] {
			return Style{}, fmt.Errorf("style 继承存在循环：%s", name)
		}
		visiting[name] = true

		props := map[string]string{}
		if style.Extends != "" {
			parent, err := dfs(style.Extends)
			if err != nil {
				return Style{}, err
			}
			for k, v := range parent.Props {
				props[k] = v
			}
		}
		for k, v := range style.Props {
			props[k] = v
		}
		style.Props = props
		resolved[name] = style
		delete(visiting, name)
		return style, nil
	}

	for name := range styles {
		if _, err := dfs(name); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

func parseColorResource(cmd *dsl.Command) (string, string) {
	if len(cmd.Args) == 0 {
		return "", ""
	}
	name := cmd.Args[0].Value
	value := ""
	if len(cmd.Args) > 1 {
		value = cmd.Args[len(cmd.Args)-1].Value
	}
	return name, value
}

func resolvePageSize(spec dsl.PageSpec) (float64, float64, error) {
	base, ok := pagePresets[strings.ToUpper(spec.Size)]
	if !ok {
		return 0, 0, fmt.Errorf("暂不支持的纸张尺寸：%s", spec.Size)
	}

	width := base[0]
	height := base[1]
	for _, token := range spec.Params {
		switch token.Value {
		case "landscape":
			width, height = height, width
		}
	}
	return width, height, nil
}

var pagePresets = map[string][2]float64{
	"A4":     {210, 297},
	"A5":     {148, 210},
	"LETTER": {215.9, 279.4},
}

func resolveMargin(params []*dsl.Lexeme) Margin {
	// 默认四边 20mm
	margin := Margin{Top: 20, Right: 20, Bottom: 20, Left: 20}
	for i := 0; i < len(params); i++ {
		if params[i].Value != "margin" {
			continue
		}
		// margin 之后最多取 4 个长度值；遇到非数值（如 portrait）即停。
		vals := []float64{}
		for j := i + 1; j < len(params) && len(vals) < 4; j++ {
			if !isLengthToken(params[j].Value) {
				break
			}
			vals = append(vals, parseLength(params[j].Value))
		}
		// CSS 语义：1 值四边同；2 值上下/左右；3 值上/右/下，左=0；4 值上/右/下/左。
		switch len(vals) {
		case 1:
			v := vals[0]
			margin = Margin{Top: v, Right: v, Bottom: v, Left: v}
		case 2:
			margin = Margin{Top: vals[0], Right: vals[1], Bottom: vals[0], Left: vals[1]}
		case 3:
			margin = Margin{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: 0}
		case 4:
			margin = Margin{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[3]}
		}
	}
	return margin
}

func firstPage(doc *dsl.Document) *dsl.PageSection {
	for _, section := range doc.Sections {
		if section.Page != nil {
			return section.Page
		}
	}
	return nil
}

// parseArgs 把命令参数拆成样式名与键值对。
// 样式只在参数个数为奇数且首参为标识符时识别，避免把 `strip size 10pt`
// 的 size 误认成样式名。
func parseArgs(args []*dsl.Lexeme, allowStyle bool) (string, map[string]string) {
	result := map[string]string{}
	if len(args) == 0 {
		return "", result
	}

	cursor := 0
	var style string
	if allowStyle && len(args)%2 == 1 && args[0].Type == "Ident" {
		style = args[0].Value
		cursor = 1
	}

	for cursor < len(args)-1 {
		key := args[cursor].Value
		val := args[cursor+1].Value
		result[key] = val
		cursor += 2
	}

	return style, result
}

func mergeStyleAttributes(style string, inline map[string]string, styles map[string]Style) map[string]string {
	out := make(map[string]string)
	if style != "" {
		if s, ok := styles[style]; ok {
			for k, v := range s.Props {
				out[k] = v
			}
		}
	}
	for k, v := range inline {
		out[k] = v
	}
	return out
}

func resolveFontResource(name string, res ResourceSet) (FontResource, error) {
	if font, ok := res.Fonts[name]; ok {
		return font, nil
	}
	if font, ok := res.Fonts["Body"]; ok {
		return font, nil
	}
	for _, font := range res.Fonts {
		return font, nil
	}
	return FontResource{}, fmt.Errorf("字体 %s 未定义，且没有可用的默认字体", name)
}

// parseFontSizePt 解析字号为 pt；无单位按 pt 处理，留空或非法给默认值。
func parseFontSizePt(value string) float64 {
	if strings.TrimSpace(value) == "" {
		return DefaultFontPt
	}
	l := ParseRawLengthStr(value)
	if l.Value <= 0 {
		return DefaultFontPt
	}
	if l.Unit == UnitNone {
		return l.Value
	}
	return l.ToPT()
}

// parseScale 解析缩放系数：支持 0.8 与 80% 两种写法。
func parseScale(value string) float64 {
	value = strings.TrimSpace(value)
	if strings.HasSuffix(value, "%") {
		num := strings.TrimSuffix(value, "%")
		if f, err := strconv.ParseFloat(num, 64); err == nil {
			return f / 100
		}
		return 0
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return 0
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "true", "yes", "1":
		return true
	default:
		return false
	}
}

func frameEnabled(attrs map[string]string) bool {
	if v, ok := attrs["frame"]; ok {
		return parseBool(v)
	}
	return attrs["frame-color"] != "" || attrs["frame-radius"] != "" || attrs["frame-width"] != ""
}

func resolveColor(value string, res ResourceSet) Color {
	if value == "" {
		return Color{R: 30, G: 30, B: 30}
	}
	if c, ok := res.Colors[value]; ok {
		return c
	}
	if strings.HasPrefix(value, "#") {
		if c, err := parseColor(value); err == nil {
			return c
		}
	}
	return Color{R: 30, G: 30, B: 30}
}

func parseColor(value string) (Color, error) {
	value = strings.TrimPrefix(value, "#")
	switch len(value) {
	case 3:
		r := strings.Repeat(string(value[0]), 2)
		g := strings.Repeat(string(value[1]), 2)
		b := strings.Repeat(string(value[2]), 2)
		return Color{
			R: mustHex(r),
			G: mustHex(g),
			B: mustHex(b),
		}, nil
	case 6, 8:
		return Color{
			R: mustHex(value[0:2]),
			G: mustHex(value[2:4]),
			B: mustHex(value[4:6]),
		}, nil
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

func mustHex(s string) int {
	v, _ := strconv.ParseInt(s, 16, 64)
	return int(v)
}

// parseLength 把长度字符串换算为 mm；无单位数值按 mm 处理。
func parseLength(value string) float64 {
	return ParseRawLengthStr(value).ToMM()
}

// parseDimension 在 parseLength 之上支持相对 reference 的百分比写法。
func parseDimension(value string, reference float64) float64 {
	if value == "" {
		return 0
	}
	if strings.HasSuffix(value, "%") {
		num := strings.TrimSuffix(value, "%")
		if f, err := strconv.ParseFloat(num, 64); err == nil {
			return reference * f / 100
		}
		return 0
	}
	return parseLength(value)
}

func trimUnit(value string) string {
	for _, suffix := range []string{"pt", "mm", "cm", "in", "%"} {
		if strings.HasSuffix(value, suffix) {
			return strings.TrimSuffix(value, suffix)
		}
	}
	return value
}

// isLengthToken 判断参数是否为数值/长度，避免吞掉 portrait 这类关键字。
func isLengthToken(v string) bool {
	_, err := strconv.ParseFloat(trimUnit(v), 64)
	return err == nil
}

func alignOffset(container, width float64, align string) float64 {
	if container <= width {
		return 0
	}
	switch strings.ToLower(align) {
	case "center", "middle":
		return (container - width) / 2
	case "right", "end":
		return container - width
	default:
		return 0
	}
}

func valueToString(val *dsl.Value) string {
	if val == nil {
		return ""
	}
	switch {
	case val.String != nil:
		return string(*val.String)
	case val.Number != nil:
		return *val.Number
	case val.Color != nil:
		return *val.Color
	case val.Ident != nil:
		return *val.Ident
	default:
		return ""
	}
}

func valueToStringSlice(val *dsl.Value) []string {
	if val == nil {
		return nil
	}
	if val.Array != nil {
		out := make([]string, 0, len(val.Array.Values))
		for _, item := range val.Array.Values {
			if s := valueToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := valueToString(val); s != "" {
		return []string{s}
	}
	return nil
}
