package layout

// BuildOptions 配置布局阶段所需的依赖，例如文本测量后端。
type BuildOptions struct {
	Measurer TextMeasurer
	Debug    DebugOptions
}

// DebugOptions 控制调试相关输出。
type DebugOptions struct {
	FitTrace bool // 在调试 JSON 中输出 strips[].debug 字段（自然尺寸与缩小轨迹）
}
