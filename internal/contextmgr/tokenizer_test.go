package contextmgr

import (
	"strings"
	"testing"

	"photoagent/internal/chat"
)

func TestEncodingFor(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"", encodingCL100K},
		{"gpt-4", encodingCL100K},
		{"gpt-3.5-turbo", encodingCL100K},
		{"gpt-4o-mini", encodingO200K},
		{"GPT-4.1-mini", encodingO200K},
		{"o3-mini", encodingO200K},
		{"gpt-5", encodingO200K},
		{"qwen-vl-plus", encodingCL100K},
	}
	for _, tt := range tests {
		if got := encodingFor(tt.model); got != tt.want {
			t.Errorf("encodingFor(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestEstimate(t *testing.T) {
	tok := &Tokenizer{}
	if tok.Precise() {
		t.Fatal("zero tokenizer should use the heuristic")
	}
	if tok.CountText("") != 0 {
		t.Fatal("empty text should count 0")
	}
	if n := tok.CountText("a"); n != 1 {
		t.Fatalf("single rune = %d, want 1", n)
	}
	// 四个汉字 / four ideographs
	if n := tok.CountText("海边照片"); n != 6 {
		t.Fatalf("ideographs = %d, want 6", n)
	}
	// URI 列表的标点按 1 token 计
	uris := `["trip/a.jpg","trip/b.jpg"]`
	plain := strings.Repeat("x", len(uris))
	if tok.CountText(uris) <= tok.CountText(plain) {
		t.Fatalf("punctuation-heavy JSON should cost more than plain text: %d vs %d",
			tok.CountText(uris), tok.CountText(plain))
	}
}

func TestCountIncludesOverhead(t *testing.T) {
	tok := &Tokenizer{}
	plain := []chat.ModelMessage{{Role: "user", Content: "hello"}}
	withCall := []chat.ModelMessage{{
		Role:      "assistant",
		ToolCalls: []chat.ModelToolCall{{ID: "c1", Name: "search_photos", Arguments: `{"query":"beach"}`}},
	}}

	if got, want := tok.Count(plain), messageOverhead+tok.CountText("user")+tok.CountText("hello"); got != want {
		t.Fatalf("Count(plain) = %d, want %d", got, want)
	}
	if got := tok.Count(withCall); got <= toolCallOverhead+messageOverhead {
		t.Fatalf("Count(withCall) = %d, should include call arguments", got)
	}
	if tok.Count(nil) != 0 {
		t.Fatal("empty history should count 0")
	}
}

func TestDefaultTokenizerShared(t *testing.T) {
	if DefaultTokenizer() != DefaultTokenizer() {
		t.Fatal("DefaultTokenizer should return one instance")
	}
	if DefaultTokenizer().Encoding() != encodingCL100K {
		t.Fatalf("default encoding = %s", DefaultTokenizer().Encoding())
	}
}
