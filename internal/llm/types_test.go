package llm

import (
	"encoding/json"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input     string
		want      Role
		wantKnown bool
	}{
		{"system", RoleSystem, true},
		{"User", RoleUser, true},
		{"ASSISTANT", RoleAssistant, true},
		{"tool", RoleTool, true},
		{"Function", Role("function"), false},
		{"", Role(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseRole(tt.input)
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if got.Known() != tt.wantKnown {
				t.Errorf("ParseRole(%q).Known() = %v, want %v", tt.input, got.Known(), tt.wantKnown)
			}
		})
	}
}

func TestMessageJSON(t *testing.T) {
	data, err := json.Marshal(UserMessage("hi"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"role":"user","content":"hi"}` {
		t.Errorf("unexpected JSON %s", data)
	}

	data, err = json.Marshal(Message{Role: RoleTool, Content: "42", CallID: "call_1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"role":"tool","content":"42","call_id":"call_1"}` {
		t.Errorf("unexpected JSON %s", data)
	}
}

func TestEndMessage(t *testing.T) {
	if !EndMessage().IsEnd() {
		t.Error("EndMessage should be the end marker")
	}
	if AssistantMessage("x").IsEnd() {
		t.Error("non-empty message reported as end marker")
	}
}

func TestHistoryBuilder(t *testing.T) {
	msgs := NewHistory("be brief").User("hi").Assistant("hello").User("bye").Messages()
	want := []Message{
		SystemMessage("be brief"),
		UserMessage("hi"),
		AssistantMessage("hello"),
		UserMessage("bye"),
	}
	if len(msgs) != len(want) {
		t.Fatalf("len = %d, want %d", len(msgs), len(want))
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("msgs[%d] = %+v, want %+v", i, msgs[i], want[i])
		}
	}

	if got := NewHistory("").User("x").Messages(); len(got) != 1 || got[0].Role != RoleUser {
		t.Errorf("empty system prompt should be omitted, got %+v", got)
	}
}

func TestGenerationConfigDefaults(t *testing.T) {
	cfg := DefaultGenerationConfig()
	if cfg.Temperature != 1.0 || cfg.TopP != 0.9 || cfg.MaxOutputTokens != 512 || !cfg.Stream {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestGenerationConfigCloneIsolatesExtend(t *testing.T) {
	base := DefaultGenerationConfig().WithExtend("user_id", "alice")
	clone := base.Clone()
	clone.Extend["user_id"] = "bob"

	if got := base.ExtendValue("user_id", "default"); got != "alice" {
		t.Errorf("base user_id = %q, want alice", got)
	}
	if got := clone.ExtendValue("user_id", "default"); got != "bob" {
		t.Errorf("clone user_id = %q, want bob", got)
	}
	if got := DefaultGenerationConfig().ExtendValue("user_id", "default"); got != "default" {
		t.Errorf("missing key should fall back, got %q", got)
	}
}

func TestGenerationConfigWithers(t *testing.T) {
	base := DefaultGenerationConfig()
	cfg := base.WithModel("qwen-max").WithTemperature(0.2).WithStream(false)
	if cfg.Model != "qwen-max" || cfg.Temperature != 0.2 || cfg.Stream {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if base.Model != "" || base.Temperature != 1.0 || !base.Stream {
		t.Errorf("base was mutated: %+v", base)
	}
}
