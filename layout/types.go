package layout

// 该文件定义条幅布局的结果与资源描述，供布局计算、渲染与调试 JSON 共用。
// 页内几何尺寸一律为毫米（mm），字号一律为点（pt）。

// Size 表示宽高尺寸。
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect 表示一个矩形区域（原点 + 尺寸）。
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Result 保存布局后的页面与资源信息。
type Result struct {
	Pages     []Page       `json:"pages"`
	Resources ResourceSet  `json:"resources"`
	Meta      DocumentMeta `json:"meta"`
}

// ResourceSet 记录解析出的字体、颜色与样式定义。
type ResourceSet struct {
	Fonts  map[string]FontResource `json:"fonts"`
	Colors map[string]Color        `json:"colors"`
	Styles map[string]Style        `json:"styles"`
}

// FontResource 描述字体资源，src 可以是文件路径或 builtin:* 形式的内建字体名。
type FontResource struct {
	Name     string `json:"name"`
	Src      string `json:"src"`
	Style    string `json:"style"`
	Family   string `json:"family"` // 渲染器使用的 Family 名称
	Fallback string `json:"fallback"`
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Page 记录页面尺寸、边距与最终可以直接渲染的元素。
// 坐标均为页面坐标（单位：mm）。
type Page struct {
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
	Margin Margin     `json:"margin"`
	Strips []StripBox `json:"strips"`
	Rules  []Rule     `json:"rules,omitempty"`
}

// Margin 以毫米为单位。
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// StripBox 表示一个已经排好坐标的标签条：左右两段文本共享一行。
// X/Y 为页面坐标；两段的 Rect 为条内局部坐标。
type StripBox struct {
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Width    float64     `json:"width"`
	Height   float64     `json:"height"`
	Font     string      `json:"font"`
	BaseSize float64     `json:"baseSize"` // 声明字号（pt）
	FontSize float64     `json:"fontSize"` // 实际使用的字号（pt，缩小后）
	Color    Color       `json:"color"`
	Left     SegmentBox  `json:"left"`
	Right    SegmentBox  `json:"right"`
	Frame    *FrameStyle `json:"frame,omitempty"`
	Debug    *StripDebug `json:"debug,omitempty"`
}

// SegmentBox 表示条内一侧的文本段及其最终矩形与截断指令。
type SegmentBox struct {
	Content    string     `json:"content"`
	Rect       Rect       `json:"rect"`
	Truncation Truncation `json:"truncation"`
}

// FrameStyle 描述条幅外框（圆角矩形）。
type FrameStyle struct {
	Color  Color   `json:"color"`
	Width  float64 `json:"width"`  // 线宽（mm），<=0 时由渲染器给默认值
	Radius float64 `json:"radius"` // 圆角半径（mm）
}

// Rule 表示一条水平分隔线（页面坐标，mm）。
type Rule struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Length float64 `json:"length"`
	Width  float64 `json:"width"` // 线宽（mm），<=0 时由渲染器给默认值
	Color  Color   `json:"color"`
}

// StripDebug holds optional fit internals emitted only when enabled by BuildOptions.
type StripDebug struct {
	NaturalLeft  Size    `json:"naturalLeft"`
	NaturalRight Size    `json:"naturalRight"`
	ShrinkSteps  int     `json:"shrinkSteps"`
	MissingWidth float64 `json:"missingWidth"`
}

// Style 用于描述可继承的条幅样式。
type Style struct {
	Name    string            `json:"name"`
	Extends string            `json:"extends,omitempty"`
	Props   map[string]string `json:"props"`
}

// DocumentMeta 保存 PDF 元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}
