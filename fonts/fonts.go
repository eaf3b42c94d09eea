// Package fonts 提供以 Go 字体家族为后盾的内置字体。
// 内置字体随包编译进二进制，渲染器通过 builtin:<名称> 引用，
// 不依赖任何外部字体文件。
package fonts

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
)

var builtins = map[string][]byte{
	"Go-Regular":   goregular.TTF,
	"Go-Bold":      gobold.TTF,
	"Go-Italic":    goitalic.TTF,
	"Go-Medium":    gomedium.TTF,
	"Go-Mono":      gomono.TTF,
	"Go-Smallcaps": gosmallcaps.TTF,
}

// Load 返回内置字体的字节数据，name 可写为 "builtin:Go-Regular" 或直接 "Go-Regular"。
func Load(name string) ([]byte, error) {
	key := strings.TrimPrefix(strings.TrimPrefix(name, "built-in:"), "builtin:")
	if data, ok := builtins[key]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("找不到内置字体 %s（可用：%s）", key, strings.Join(Names(), ", "))
}

// Names 返回全部内置字体名称，按字典序排列。
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
