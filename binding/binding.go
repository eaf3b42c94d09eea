package binding

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Interpolate 将文本中的 ${path.to[0].value} 替换为 data 中的值。
// 若 data 为空或路径不存在，则返回原占位符。
func Interpolate(text string, data any) string {
	if data == nil {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := exprPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		path := strings.TrimSpace(groups[1])
		if path == "" {
			return match
		}
		if val, ok := resolvePath(data, path); ok {
			return fmt.Sprint(val)
		}
		return match
	})
}

// segment 是路径中的一步：键名或数组下标。
type segment struct {
	key     string
	index   int
	isIndex bool
}

// splitPath 把 "a.b[2].c" 拆成有序的访问步骤，语法非法时返回 false。
func splitPath(path string) ([]segment, bool) {
	var segs []segment
	rest := path
	for rest != "" {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			if rest == "" {
				return nil, false
			}
		case '[':
			end := strings.IndexByte(rest, ']')
			if end <= 1 {
				return nil, false
			}
			idx, err := strconv.Atoi(rest[1:end])
			if err != nil {
				return nil, false
			}
			segs = append(segs, segment{index: idx, isIndex: true})
			rest = rest[end+1:]
		default:
			stop := strings.IndexAny(rest, ".[")
			if stop == -1 {
				segs = append(segs, segment{key: rest})
				rest = ""
			} else {
				segs = append(segs, segment{key: rest[:stop]})
				rest = rest[stop:]
			}
		}
	}
	return segs, len(segs) > 0
}

func resolvePath(data any, path string) (any, bool) {
	segs, ok := splitPath(path)
	if !ok {
		return nil, false
	}
	current := data
	for _, seg := range segs {
		if seg.isIndex {
			arr, ok := current.([]any)
			if !ok || seg.index < 0 || seg.index >= len(arr) {
				return nil, false
			}
			current = arr[seg.index]
			continue
		}
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		val, ok := obj[seg.key]
		if !ok {
			return nil, false
		}
		current = val
	}
	return current, true
}
