package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// InitProjectConfigScaffold 在当前工作目录下初始化项目级配置模板（./.photoagent/config.json）。
// InitProjectConfigScaffold writes a project-level config scaffold (./.photoagent/config.json).
// An existing file is left alone.
func InitProjectConfigScaffold(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get current working directory: %w", err)
		}
		dir = cwd
	}
	cfgDir := filepath.Join(dir, ".photoagent")
	path := filepath.Join(cfgDir, "config.json")

	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return "", fmt.Errorf("project config path is a directory: %s", path)
		}
		return path, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat project config: %w", err)
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir .photoagent: %w", err)
	}

	cfg := Default()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write project config: %w", err)
	}
	return path, nil
}

// WriteToolRule 将单个工具的 allow/deny 规则写入项目配置
// WriteToolRule persists one permission.tools rule to the project config.
func WriteToolRule(projectDir, tool, decision string) error {
	tool = strings.ToLower(strings.TrimSpace(tool))
	decision = strings.ToLower(strings.TrimSpace(decision))
	if tool == "" {
		return errors.New("tool name is empty")
	}
	if decision != "allow" && decision != "deny" {
		return fmt.Errorf("invalid decision %q", decision)
	}
	dir := filepath.Join(strings.TrimSpace(projectDir), ".photoagent")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir .photoagent: %w", err)
	}
	path := filepath.Join(dir, "config.json")
	var root map[string]any
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(stripJSONComments(data), &root); err != nil {
			root = nil
		}
	}
	if root == nil {
		root = make(map[string]any)
	}
	perm, _ := root["permission"].(map[string]any)
	if perm == nil {
		perm = make(map[string]any)
	}
	tools, _ := perm["tools"].(map[string]any)
	if tools == nil {
		tools = make(map[string]any)
	}
	tools[tool] = decision
	perm["tools"] = tools
	root["permission"] = perm
	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
