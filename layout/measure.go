package layout

import (
	"github.com/mattn/go-runewidth"
)

// TextMeasurer 负责测量一段文本在指定字体下的自然尺寸。
// 返回的宽高单位由实现决定（画布实现使用 mm），字号始终为 pt。
// 实现必须可以被多个 goroutine 并发调用。
type TextMeasurer interface {
	Measure(text string, font FontSpec) (Size, error)
}

// approxLineHeightRatio 是估算行高与字号之比。
const approxLineHeightRatio = 1.2

// ApproxMeasurer 是缺少渲染后端时的估算实现：
// 按东亚宽度规则数列宽，全角按 1em、半角按 0.5em 折算。
// Scale 把 pt 空间换算到调用方使用的几何单位（如 mm），<=0 时视作 1。
type ApproxMeasurer struct {
	Scale float64
}

// Measure 估算文本尺寸。空字符串宽度为零，但仍保留一行的高度。
func (m ApproxMeasurer) Measure(text string, font FontSpec) (Size, error) {
	scale := m.Scale
	if scale <= 0 {
		scale = 1
	}
	cells := runewidth.StringWidth(text)
	return Size{
		Width:  float64(cells) * font.Size * 0.5 * scale,
		Height: font.Size * approxLineHeightRatio * scale,
	}, nil
}
