package layout

import (
	"encoding/json"
	"os"
)

// DebugJSON 把布局结果编码为缩进 JSON。
func DebugJSON(res *Result) ([]byte, error) {
	return json.MarshalIndent(res, "", "  ")
}

// WriteDebugJSON 将布局结果写入 JSON 文件，便于调试或可视化。
func WriteDebugJSON(res *Result, path string) error {
	if res == nil {
		return nil
	}
	data, err := DebugJSON(res)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
