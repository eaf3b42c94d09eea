package layout

import (
	"fmt"
	"math"
)

// 该文件实现双段文本适配算法：左右两段文本共享一行，
// 先在允许范围内整体缩小字号，再按截断策略分摊剩余溢出。

// DefaultFontPt 是未指定字号时使用的默认字号（pt）。
const DefaultFontPt = 12.0

// shrinkStep 是自动缩小的步长（pt）。
const shrinkStep = 0.5

// minFontPt 是自动缩小的硬下限（pt）。
// 若测量器汇报的高度从不随字号减小，高度下限永远不会触发，
// 该下限保证循环仍然终止。
const minFontPt = 1.0

// FontSpec 描述一次测量使用的字体：字体资源加字号（pt）。
// 值不可变：缩小循环通过 WithSize 派生新值，绝不原地修改。
type FontSpec struct {
	Font FontResource `json:"font"`
	Size float64      `json:"size"`
}

// WithSize 返回替换字号后的新 FontSpec。
func (f FontSpec) WithSize(size float64) FontSpec {
	f.Size = size
	return f
}

// DefaultFont 返回内建默认字体在默认字号下的 FontSpec。
func DefaultFont() FontSpec {
	return FontSpec{
		Font: FontResource{Name: "Body", Src: "builtin:Go-Regular"},
		Size: DefaultFontPt,
	}
}

// TruncationStyle 描述溢出宽度在左右两段之间的分摊策略。
type TruncationStyle int

const (
	// TruncateNone 不分摊溢出，允许两段重叠。
	TruncateNone TruncationStyle = iota
	// TruncateLeftTail 溢出全部由左段承担，左段裁尾。
	TruncateLeftTail
	// TruncateRightTail 溢出全部由右段承担，右段裁尾。
	TruncateRightTail
	// TruncateRightHead 溢出全部由右段承担，右段裁头。
	TruncateRightHead
	// TruncateBothTails 两段各承担一半，均裁尾。
	TruncateBothTails
	// TruncateBothCenter 两段各承担一半，左段裁尾、右段裁头，向中缝收拢。
	TruncateBothCenter
)

var truncationStyleNames = map[TruncationStyle]string{
	TruncateNone:       "none",
	TruncateLeftTail:   "left-tail",
	TruncateRightTail:  "right-tail",
	TruncateRightHead:  "right-head",
	TruncateBothTails:  "both-tails",
	TruncateBothCenter: "both-center",
}

var truncationStylesByName = map[string]TruncationStyle{
	"none":        TruncateNone,
	"left-tail":   TruncateLeftTail,
	"right-tail":  TruncateRightTail,
	"right-head":  TruncateRightHead,
	"both-tails":  TruncateBothTails,
	"both-center": TruncateBothCenter,
}

// ParseTruncationStyle 按名称解析截断策略。
func ParseTruncationStyle(name string) (TruncationStyle, error) {
	if style, ok := truncationStylesByName[name]; ok {
		return style, nil
	}
	return TruncateNone, fmt.Errorf("未知的截断策略: %q", name)
}

func (s TruncationStyle) String() string {
	if name, ok := truncationStyleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("truncation-style(%d)", int(s))
}

// MarshalText 让调试 JSON 输出策略名称而非数值。
func (s TruncationStyle) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Directives 返回该策略下左右两段各自的裁剪指令。
// 指令只描述裁剪位置，是否真正裁剪取决于文本是否超出矩形。
func (s TruncationStyle) Directives() (left, right Truncation) {
	switch s {
	case TruncateLeftTail:
		return TruncationTail, TruncationNone
	case TruncateRightTail:
		return TruncationNone, TruncationTail
	case TruncateRightHead:
		return TruncationNone, TruncationHead
	case TruncateBothTails:
		return TruncationTail, TruncationTail
	case TruncateBothCenter:
		return TruncationTail, TruncationHead
	default:
		return TruncationNone, TruncationNone
	}
}

// Truncation 是交给渲染后端的单段裁剪指令。
type Truncation int

const (
	// TruncationNone 不裁剪。
	TruncationNone Truncation = iota
	// TruncationHead 超出时从头部裁剪。
	TruncationHead
	// TruncationTail 超出时从尾部裁剪。
	TruncationTail
)

var truncationNames = map[Truncation]string{
	TruncationNone: "none",
	TruncationHead: "head",
	TruncationTail: "tail",
}

func (t Truncation) String() string {
	if name, ok := truncationNames[t]; ok {
		return name
	}
	return fmt.Sprintf("truncation(%d)", int(t))
}

// MarshalText 让调试 JSON 输出指令名称而非数值。
func (t Truncation) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// FitRequest 描述一次双段适配请求。
// Container 与 Spacing 的几何单位与测量器一致；字号单位恒为 pt。
type FitRequest struct {
	Left       string
	Right      string
	Font       FontSpec
	Spacing    float64
	Container  Size
	AutoShrink bool
	MinScale   float64
	Truncation TruncationStyle
}

// normalized 返回填好默认值的请求副本，从不拒绝输入。
func (r FitRequest) normalized() FitRequest {
	if r.Font.Font == (FontResource{}) {
		r.Font.Font = DefaultFont().Font
	}
	if r.Font.Size <= 0 {
		r.Font.Size = DefaultFontPt
	}
	if r.Spacing < 0 {
		r.Spacing = 0
	}
	if r.MinScale > 1 {
		r.MinScale = 1
	}
	if r.Container.Width < 0 {
		r.Container.Width = 0
	}
	if r.Container.Height < 0 {
		r.Container.Height = 0
	}
	return r
}

// FitResult 是适配结果：两个矩形、左右裁剪指令与实际生效的字体。
type FitResult struct {
	Left            Rect       `json:"left"`
	Right           Rect       `json:"right"`
	LeftTruncation  Truncation `json:"leftTruncation"`
	RightTruncation Truncation `json:"rightTruncation"`
	Font            FontSpec   `json:"font"`
}

// Fit 把左右两段文本适配进容器。纯函数：相同输入产生相同输出，
// 不持有状态；measurer 为 nil 或测量失败时退化为 ApproxMeasurer。
//
// 两个矩形在容器内底对齐，左段贴左缘、右段贴右缘；
// 风格为 none 时溢出不做分摊，两段允许重叠。
func Fit(req FitRequest, measurer TextMeasurer) FitResult {
	req = req.normalized()

	font := req.Font
	leftSize := safeMeasure(measurer, req.Left, font)
	rightSize := safeMeasure(measurer, req.Right, font)

	// 高度下限以初始字号下的最大行高为基准。
	originalHeight := math.Max(leftSize.Height, rightSize.Height)

	// 自动缩小：MinScale <= 0 视为关闭。
	if req.AutoShrink && req.MinScale > 0 {
		for leftSize.Width+rightSize.Width+req.Spacing > req.Container.Width {
			next := font.Size - shrinkStep
			if next < minFontPt {
				break
			}
			font = font.WithSize(next)
			leftSize = safeMeasure(measurer, req.Left, font)
			rightSize = safeMeasure(measurer, req.Right, font)
			// 下限在缩小之后才检查，因此最多会越过下限一步。
			if math.Max(leftSize.Height, rightSize.Height) < originalHeight*req.MinScale {
				break
			}
		}
	}

	leftWidth := leftSize.Width
	rightWidth := rightSize.Width
	missing := req.Spacing + leftWidth + rightWidth - req.Container.Width
	if missing > 0 {
		// 只调整排版矩形的宽度，不回写测量结果，也不引起重新测量；
		// 被裁掉的内容由渲染后端按裁剪指令收尾。
		switch req.Truncation {
		case TruncateBothTails, TruncateBothCenter:
			leftWidth -= missing / 2
			rightWidth -= missing / 2
		case TruncateLeftTail:
			leftWidth -= missing
		case TruncateRightTail, TruncateRightHead:
			rightWidth -= missing
		}
		leftWidth = math.Max(leftWidth, 0)
		rightWidth = math.Max(rightWidth, 0)
	}

	leftTrunc, rightTrunc := req.Truncation.Directives()

	return FitResult{
		Left: Rect{
			X:      0,
			Y:      req.Container.Height - leftSize.Height,
			Width:  leftWidth,
			Height: leftSize.Height,
		},
		Right: Rect{
			X:      req.Container.Width - rightWidth,
			Y:      req.Container.Height - rightSize.Height,
			Width:  rightWidth,
			Height: rightSize.Height,
		},
		LeftTruncation:  leftTrunc,
		RightTruncation: rightTrunc,
		Font:            font,
	}
}

// safeMeasure 调用测量器，nil 或出错时退回估算实现，保证 Fit 无错误返回。
func safeMeasure(m TextMeasurer, text string, font FontSpec) Size {
	if m != nil {
		if size, err := m.Measure(text, font); err == nil {
			return size
		}
	}
	size, _ := ApproxMeasurer{}.Measure(text, font)
	return size
}
