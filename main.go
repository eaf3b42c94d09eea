package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ByLCY/cartouche/dsl"
	"github.com/ByLCY/cartouche/layout"
	"github.com/ByLCY/cartouche/renderer"
	canvasrenderer "github.com/ByLCY/cartouche/renderer/canvas"
)

func main() {
	input := flag.String("in", "examples/demo.cartouche", "DSL 文件路径")
	output := flag.String("out", "output/demo.pdf", "PDF 输出路径")
	debug := flag.String("debug", "", "布局调试 JSON 输出路径")
	debugFit := flag.Bool("debug-fit", false, "在调试 JSON 中输出每个条幅的适配轨迹")
	dataJSON := flag.String("data", "", "绑定到 DSL 的 JSON 数据")
	varsFile := flag.String("vars", "", "绑定数据文件（JSON 或 YAML）")
	flag.Parse()

	data, err := loadBindingData(*dataJSON, *varsFile)
	if err != nil {
		log.Fatalf("%v", err)
	}

	var r renderer.Renderer = canvasrenderer.NewRenderer(filepath.Dir(*input))
	if err := run(*input, *output, *debug, *debugFit, data, r); err != nil {
		log.Fatalf("生成 PDF 失败: %v", err)
	}
	fmt.Printf("已生成 PDF：%s\n", *output)
}

// loadBindingData 合并 -vars 文件与 -data 内联 JSON；键冲突时内联值优先。
// YAML 是 JSON 的超集，两种文件格式统一用 yaml 解码。
func loadBindingData(inlineJSON, varsPath string) (any, error) {
	var fileData map[string]any
	if varsPath != "" {
		raw, err := os.ReadFile(varsPath)
		if err != nil {
			return nil, fmt.Errorf("读取 vars 文件失败: %w", err)
		}
		if err := yaml.Unmarshal(raw, &fileData); err != nil {
			return nil, fmt.Errorf("解析 vars 文件失败: %w", err)
		}
	}

	if inlineJSON == "" {
		if fileData == nil {
			return nil, nil
		}
		return fileData, nil
	}

	var inline any
	if err := json.Unmarshal([]byte(inlineJSON), &inline); err != nil {
		return nil, fmt.Errorf("解析 data JSON 失败: %w", err)
	}
	inlineMap, ok := inline.(map[string]any)
	if !ok || fileData == nil {
		return inline, nil
	}
	for k, v := range inlineMap {
		fileData[k] = v
	}
	return fileData, nil
}

// run 串联解析、布局与渲染。
func run(inputPath, outputPath, debugPath string, debugFit bool, data any, r renderer.Renderer) error {
	if r == nil {
		return fmt.Errorf("renderer 不能为空")
	}
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("无法打开 DSL 文件 %s: %w", inputPath, err)
	}
	defer file.Close()

	doc, err := dsl.Parse(file)
	if err != nil {
		return fmt.Errorf("解析 DSL 失败: %w", err)
	}

	m, ok := r.(layout.TextMeasurer)
	if !ok {
		return fmt.Errorf("renderer 未实现文本测量接口")
	}

	result, err := layout.Build(doc, data, layout.BuildOptions{
		Measurer: m,
		Debug:    layout.DebugOptions{FitTrace: debugFit},
	})
	if err != nil {
		return fmt.Errorf("布局计算失败: %w", err)
	}

	if debugPath != "" {
		if err := writeDebug(result, debugPath); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	pdfBytes, err := r.Render(result)
	if err != nil {
		return fmt.Errorf("渲染 PDF 失败: %w", err)
	}
	if err := os.WriteFile(outputPath, pdfBytes, 0o644); err != nil {
		return fmt.Errorf("写入 PDF 文件失败: %w", err)
	}

	return nil
}

func writeDebug(result *layout.Result, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(result, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
