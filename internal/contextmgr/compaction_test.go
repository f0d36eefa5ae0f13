package contextmgr

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"photoagent/internal/chat"
)

func history(turns int) []chat.ModelMessage {
	msgs := []chat.ModelMessage{{Role: "system", Content: "You manage a photo library."}}
	for i := 0; i < turns; i++ {
		callID := fmt.Sprintf("call_%d", i)
		msgs = append(msgs,
			chat.ModelMessage{Role: "user", Content: fmt.Sprintf("request %d: find photos of the beach at sunset with friends", i)},
			chat.ModelMessage{Role: "assistant", ToolCalls: []chat.ModelToolCall{
				{ID: callID, Name: "search_photos", Arguments: `{"query":"beach sunset"}`},
			}},
			chat.ModelMessage{Role: "tool", ToolCallID: callID, Content: `{"photos_found":3}`},
			chat.ModelMessage{Role: "assistant", Content: "I found three photos of the beach."},
		)
	}
	return msgs
}

func TestTrim_UnderLimitIsUnchanged(t *testing.T) {
	tok := &Tokenizer{}
	msgs := history(1)
	out, summary, trimmed := Trim(msgs, tok, 10_000)
	if trimmed || summary != "" || len(out) != len(msgs) {
		t.Fatalf("unexpected trim: trimmed=%v len=%d", trimmed, len(out))
	}
}

func TestTrim_KeepsSystemAndRecentTail(t *testing.T) {
	tok := &Tokenizer{}
	msgs := history(40)
	limit := 600

	out, summary, trimmed := Trim(msgs, tok, limit)
	if !trimmed {
		t.Fatalf("expected trim, total=%d", tok.Count(msgs))
	}
	if out[0].Role != "system" || out[0].Content != msgs[0].Content {
		t.Fatalf("system message lost: %+v", out[0])
	}
	if !strings.HasPrefix(out[1].Content, summaryPrefix) {
		t.Fatalf("summary message missing: %+v", out[1])
	}
	if !strings.Contains(summary, "search_photos") || !strings.Contains(summary, "request 0") {
		t.Fatalf("summary=%q", summary)
	}
	last := out[len(out)-1]
	if last.Content != msgs[len(msgs)-1].Content {
		t.Fatalf("latest message dropped")
	}
	if len(out) >= len(msgs) {
		t.Fatalf("nothing dropped: %d >= %d", len(out), len(msgs))
	}
}

func TestTrim_TailNeverStartsWithToolResult(t *testing.T) {
	tok := &Tokenizer{}
	msgs := history(20)
	for limit := 300; limit < 1200; limit += 7 {
		out, _, trimmed := Trim(msgs, tok, limit)
		if !trimmed {
			continue
		}
		if out[2].Role == "tool" {
			t.Fatalf("limit=%d: tail starts with an orphaned tool result", limit)
		}
	}
}

func TestSummarizeMessages_RecordsDeclinesAndFailures(t *testing.T) {
	summary := summarizeMessages([]chat.ModelMessage{
		{Role: "user", Content: "delete the blurry ones"},
		{Role: "assistant", ToolCalls: []chat.ModelToolCall{{ID: "1", Name: "delete_photos"}}},
		{Role: "tool", ToolCallID: "1", Content: "false"},
		{Role: "assistant", ToolCalls: []chat.ModelToolCall{{ID: "2", Name: "apply_filter"}}},
		{Role: "tool", ToolCallID: "2", Content: `{"error":"filter is required"}`},
	})
	for _, want := range []string{"delete the blurry ones", "apply_filter, delete_photos", "filter is required", "declined permission once"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestPruneToolOutput_KeepsJSONStringValid(t *testing.T) {
	long, _ := json.Marshal(strings.Repeat("a.jpg: 4000x3000\n", 200))
	pruned := pruneToolOutput(string(long))
	var s string
	if err := json.Unmarshal([]byte(pruned), &s); err != nil {
		t.Fatalf("pruned output is not a JSON string: %v", err)
	}
	if !strings.HasSuffix(s, "...(truncated)") {
		t.Fatalf("missing truncation marker")
	}
	if small := `{"photos_found":1}`; pruneToolOutput(small) != small {
		t.Fatalf("short output changed")
	}
}
