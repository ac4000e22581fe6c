package llm

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ThinkFilter 过滤流式输出中的 <think>...</think> 思考内容，标签可以跨片段
type ThinkFilter struct {
	pending string
	inThink bool
}

// Push 输入一个片段，返回可以直接输出的文本
func (f *ThinkFilter) Push(chunk string) string {
	f.pending += chunk
	var out strings.Builder
	for f.pending != "" {
		if f.inThink {
			idx := strings.Index(f.pending, thinkClose)
			if idx < 0 {
				f.pending = keepPartial(f.pending, thinkClose)
				break
			}
			f.pending = f.pending[idx+len(thinkClose):]
			f.inThink = false
			continue
		}
		idx := strings.Index(f.pending, thinkOpen)
		if idx < 0 {
			keep := keepPartial(f.pending, thinkOpen)
			out.WriteString(f.pending[:len(f.pending)-len(keep)])
			f.pending = keep
			break
		}
		out.WriteString(f.pending[:idx])
		f.pending = f.pending[idx+len(thinkOpen):]
		f.inThink = true
	}
	return out.String()
}

// Flush 流结束时取出剩余的可见文本
func (f *ThinkFilter) Flush() string {
	if f.inThink {
		f.pending = ""
		return ""
	}
	rest := f.pending
	f.pending = ""
	return rest
}

// keepPartial 返回 s 末尾可能是 tag 前缀的部分
func keepPartial(s, tag string) string {
	for n := len(tag) - 1; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return s[len(s)-n:]
		}
	}
	return ""
}
