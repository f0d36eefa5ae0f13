package contextmgr

import (
	"encoding/json"
	"sort"
	"strings"

	"photoagent/internal/chat"
)

const (
	summaryPrefix   = "[EARLIER_CONVERSATION]\n"
	summaryReserve  = 256
	maxToolResult   = 1200
	maxSummaryLines = 4
)

// Trim 将历史裁剪到 token 限额以内；被丢弃的部分压缩为摘要
// Trim fits a chat-completion history into limit tokens. The leading system
// message is always kept, then as many recent messages as fit. Older messages
// are replaced by a short heuristic summary. The kept tail never starts with a
// tool result, so every result keeps the call that produced it.
func Trim(messages []chat.ModelMessage, tok *Tokenizer, limit int) ([]chat.ModelMessage, string, bool) {
	if tok == nil {
		tok = DefaultTokenizer()
	}
	if limit <= 0 || len(messages) < 2 || tok.Count(messages) <= limit {
		return messages, "", false
	}

	var head []chat.ModelMessage
	rest := messages
	if messages[0].Role == "system" {
		head = messages[:1]
		rest = messages[1:]
	}

	budget := limit - tok.Count(head) - summaryReserve
	split := len(rest) - 1
	used := tok.Count(rest[split:])
	for split > 0 {
		next := tok.Count(rest[split-1 : split])
		if used+next > budget {
			break
		}
		used += next
		split--
	}
	for split < len(rest)-1 && rest[split].Role == "tool" {
		split++
	}
	if split == 0 {
		return messages, "", false
	}

	dropped := rest[:split]
	tail := make([]chat.ModelMessage, len(rest)-split)
	copy(tail, rest[split:])
	for i := range tail {
		if tail[i].Role == "tool" {
			tail[i].Content = pruneToolOutput(tail[i].Content)
		}
	}

	summary := summarizeMessages(dropped)
	out := make([]chat.ModelMessage, 0, len(head)+1+len(tail))
	out = append(out, head...)
	out = append(out, chat.ModelMessage{Role: "assistant", Content: summaryPrefix + summary})
	out = append(out, tail...)
	return out, summary, true
}

func pruneToolOutput(raw string) string {
	r := []rune(raw)
	if len(r) <= maxToolResult {
		return raw
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		sr := []rune(s)
		if len(sr) > maxToolResult {
			s = string(sr[:maxToolResult]) + "...(truncated)"
		}
		data, _ := json.Marshal(s)
		return string(data)
	}
	return string(r[:maxToolResult]) + "...(truncated)"
}

func summarizeMessages(msgs []chat.ModelMessage) string {
	objective := ""
	requests := []string{}
	toolsUsed := map[string]struct{}{}
	declined := 0
	failures := map[string]struct{}{}

	for _, m := range msgs {
		switch m.Role {
		case "user":
			if objective == "" {
				objective = short(m.Content, 200)
			}
			requests = append(requests, short(m.Content, 140))
		case "assistant":
			for _, tc := range m.ToolCalls {
				toolsUsed[tc.Name] = struct{}{}
			}
		case "tool":
			content := strings.TrimSpace(m.Content)
			if content == "false" {
				declined++
			}
			if strings.Contains(content, `"error"`) {
				failures[short(content, 120)] = struct{}{}
			}
		}
	}
	if objective == "" {
		objective = "continue helping with the photo library"
	}

	var b strings.Builder
	b.WriteString("- first request: ")
	b.WriteString(objective)
	b.WriteString("\n- earlier requests: ")
	if list := uniqueStrings(requests, maxSummaryLines); len(list) == 0 {
		b.WriteString("(none captured)")
	} else {
		b.WriteString(strings.Join(list, " -> "))
	}
	b.WriteString("\n- tools used: ")
	if list := mapKeys(toolsUsed, 8); len(list) == 0 {
		b.WriteString("(none)")
	} else {
		b.WriteString(strings.Join(list, ", "))
	}
	b.WriteString("\n- failures: ")
	if list := mapKeys(failures, 3); len(list) == 0 {
		b.WriteString("(none captured)")
	} else {
		b.WriteString(strings.Join(list, " | "))
	}
	if declined > 0 {
		b.WriteString("\n- the user declined permission ")
		if declined == 1 {
			b.WriteString("once")
		} else {
			b.WriteString("several times")
		}
	}
	return b.String()
}

func mapKeys(m map[string]struct{}, limit int) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func uniqueStrings(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func short(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max]) + "..."
}
