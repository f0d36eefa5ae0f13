package contextmgr

import (
	"strings"
	"sync"
	"unicode"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"photoagent/internal/chat"
)

const (
	encodingCL100K = "cl100k_base"
	encodingO200K  = "o200k_base"

	// 每条消息的固定开销 / fixed per-message overhead of the chat format
	messageOverhead  = 4
	toolCallOverhead = 8
)

// o200k 模型前缀；其余模型按 cl100k 计数
var o200kPrefixes = []string{"gpt-4o", "chatgpt-4o", "gpt-4.1", "gpt-5", "o1", "o3", "o4"}

// Tokenizer 估算规划器历史的 token 数
// Tokenizer counts the tokens of a planner history. Without a BPE table it
// falls back to a character heuristic tuned for URI-heavy JSON tool results.
type Tokenizer struct {
	mu       sync.Mutex
	encoder  *tiktoken.Tiktoken
	encoding string
}

var defaultTokenizer = sync.OnceValue(func() *Tokenizer { return NewTokenizer("") })

// DefaultTokenizer returns a shared cl100k tokenizer.
func DefaultTokenizer() *Tokenizer {
	return defaultTokenizer()
}

// NewTokenizer picks the encoding for model. An offline machine without the
// BPE cache gets the heuristic.
func NewTokenizer(model string) *Tokenizer {
	t := &Tokenizer{encoding: encodingFor(model)}
	if enc, err := tiktoken.GetEncoding(t.encoding); err == nil {
		t.encoder = enc
	}
	return t
}

// Encoding names the BPE table in use.
func (t *Tokenizer) Encoding() string { return t.encoding }

// Precise reports whether counts come from the BPE table.
func (t *Tokenizer) Precise() bool { return t.encoder != nil }

// Count sums the tokens of every message, including role and call overhead.
func (t *Tokenizer) Count(messages []chat.ModelMessage) int {
	total := 0
	for _, m := range messages {
		n := messageOverhead + t.CountText(m.Role) + t.CountText(m.Content)
		if m.Name != "" {
			n += t.CountText(m.Name) + 1
		}
		for _, tc := range m.ToolCalls {
			n += toolCallOverhead + t.CountText(tc.Name) + t.CountText(tc.Arguments)
		}
		total += n
	}
	return total
}

// CountText counts one string.
func (t *Tokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	if t.encoder == nil {
		return estimate(text)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.encoder.Encode(text, nil, nil))
}

// estimate: ideographs ~1.5 tokens, punctuation 1 token, other runes 0.25.
// Punctuation dominates URI lists like ["trip/a.jpg","trip/b.jpg"].
func estimate(text string) int {
	var wide, punct, other int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hangul, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			wide++
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			punct++
		default:
			other++
		}
	}
	n := (wide*3)/2 + punct + other/4
	if n < 1 {
		n = 1
	}
	return n
}

func encodingFor(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	for _, p := range o200kPrefixes {
		if strings.HasPrefix(m, p) {
			return encodingO200K
		}
	}
	return encodingCL100K
}
