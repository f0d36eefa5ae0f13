package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type PlannerConfig struct {
	// Mode 选择规划器：remote 为远程 HTTP 服务，openai 为本地模型扮演规划器
	// Mode selects the planner: remote talks to the HTTP planner, openai runs one locally.
	Mode              string  `json:"mode"`
	BaseURL           string  `json:"base_url"`
	APIKey            string  `json:"api_key"`
	Model             string  `json:"model"`
	TimeoutMS         int     `json:"timeout_ms"`
	MaxRetries        int     `json:"max_retries"`
	ContextTokenLimit int     `json:"context_token_limit"`
	Temperature       float64 `json:"temperature"`
}

type EmbeddingConfig struct {
	BaseURL      string `json:"base_url"`
	APIKey       string `json:"api_key"`
	Model        string `json:"model"`
	CacheSize    int    `json:"cache_size"`
	ImageEncoder string `json:"image_encoder"`
	Workers      int    `json:"workers"`
}

type SearchConfig struct {
	Threshold   float64 `json:"threshold"`
	MaxUnranked int     `json:"max_unranked"`
	Timezone    string  `json:"timezone"`
}

type CleanupConfig struct {
	DuplicateThreshold float64 `json:"duplicate_threshold"`
}

// PermissionConfig 每个工具的 allow/deny 策略；变更类工具无论如何都需要用户同意
// PermissionConfig holds per-tool allow/deny rules. Mutating tools still need consent.
type PermissionConfig struct {
	Default string            `json:"default"`
	Tools   map[string]string `json:"tools"`
}

type LibraryConfig struct {
	Root             string `json:"root"`
	OutputDir        string `json:"output_dir"`
	AttachThumbnails bool   `json:"attach_thumbnails"`
	ThumbnailSize    int    `json:"thumbnail_size"`
}

type ServerConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type StorageConfig struct {
	BaseDir string `json:"base_dir"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

type Config struct {
	Planner    PlannerConfig    `json:"planner"`
	Embedding  EmbeddingConfig  `json:"embedding"`
	Search     SearchConfig     `json:"search"`
	Cleanup    CleanupConfig    `json:"cleanup"`
	Permission PermissionConfig `json:"permission"`
	Library    LibraryConfig    `json:"library"`
	Server     ServerConfig     `json:"server"`
	Storage    StorageConfig    `json:"storage"`
	Log        LogConfig        `json:"log"`
	Language   string           `json:"language"`
}

type fileSearchConfig struct {
	Threshold   *float64 `json:"threshold"`
	MaxUnranked *int     `json:"max_unranked"`
	Timezone    *string  `json:"timezone"`
}

type fileCleanupConfig struct {
	DuplicateThreshold *float64 `json:"duplicate_threshold"`
}

type fileLibraryConfig struct {
	Root             *string `json:"root"`
	OutputDir        *string `json:"output_dir"`
	AttachThumbnails *bool   `json:"attach_thumbnails"`
	ThumbnailSize    *int    `json:"thumbnail_size"`
}

type fileConfig struct {
	Planner    *PlannerConfig     `json:"planner"`
	Embedding  *EmbeddingConfig   `json:"embedding"`
	Search     *fileSearchConfig  `json:"search"`
	Cleanup    *fileCleanupConfig `json:"cleanup"`
	Permission *PermissionConfig  `json:"permission"`
	Library    *fileLibraryConfig `json:"library"`
	Server     *ServerConfig      `json:"server"`
	Storage    *StorageConfig     `json:"storage"`
	Log        *LogConfig         `json:"log"`
	Language   *string            `json:"language"`
}

func Default() Config {
	return Config{
		Planner: PlannerConfig{
			Mode:              PlannerModeRemote,
			BaseURL:           "http://localhost:8787/v1/agent",
			Model:             "gpt-4o-mini",
			TimeoutMS:         DefaultPlannerTimeoutMS,
			MaxRetries:        2,
			ContextTokenLimit: DefaultContextTokenLimit,
		},
		Embedding: EmbeddingConfig{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "text-embedding-3-small",
			CacheSize:    DefaultEmbeddingCacheSize,
			ImageEncoder: "perceptual",
			Workers:      4,
		},
		Search: SearchConfig{
			Threshold:   DefaultSearchThreshold,
			MaxUnranked: DefaultSearchMaxUnranked,
			Timezone:    "Local",
		},
		Cleanup: CleanupConfig{
			DuplicateThreshold: DefaultDuplicateThreshold,
		},
		Permission: PermissionConfig{
			Default: "allow",
			Tools:   map[string]string{},
		},
		Library: LibraryConfig{
			Root:             "~/Pictures",
			OutputDir:        "Edited",
			AttachThumbnails: true,
			ThumbnailSize:    256,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8090",
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Storage: StorageConfig{
			BaseDir: "~/.photoagent",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("PHOTOAGENT_CONFIG_PATH")); envPath != "" {
		resolvedPath = envPath
	}
	if resolvedPath == "" {
		resolvedPath = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return applyEnv(cfg)
}

func globalConfigPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, ".photoagent", "config.json")}
}

func findProjectConfigPath() string {
	candidates := []string{
		"photoagent.config.json",
		".photoagent/config.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	cleaned := stripJSONComments(data)
	var fileCfg fileConfig
	if err := json.Unmarshal(cleaned, &fileCfg); err != nil {
		return fmt.Errorf("parse config %q: %w", resolved, err)
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Planner != nil {
		cfg.Planner = mergePlanner(cfg.Planner, *fc.Planner)
	}
	if fc.Embedding != nil {
		cfg.Embedding = mergeEmbedding(cfg.Embedding, *fc.Embedding)
	}
	if fc.Search != nil {
		if fc.Search.Threshold != nil {
			cfg.Search.Threshold = *fc.Search.Threshold
		}
		if fc.Search.MaxUnranked != nil {
			cfg.Search.MaxUnranked = *fc.Search.MaxUnranked
		}
		if fc.Search.Timezone != nil {
			cfg.Search.Timezone = *fc.Search.Timezone
		}
	}
	if fc.Cleanup != nil && fc.Cleanup.DuplicateThreshold != nil {
		cfg.Cleanup.DuplicateThreshold = *fc.Cleanup.DuplicateThreshold
	}
	if fc.Permission != nil {
		cfg.Permission = mergePermission(cfg.Permission, *fc.Permission)
	}
	if fc.Library != nil {
		if fc.Library.Root != nil {
			cfg.Library.Root = *fc.Library.Root
		}
		if fc.Library.OutputDir != nil {
			cfg.Library.OutputDir = *fc.Library.OutputDir
		}
		if fc.Library.AttachThumbnails != nil {
			cfg.Library.AttachThumbnails = *fc.Library.AttachThumbnails
		}
		if fc.Library.ThumbnailSize != nil {
			cfg.Library.ThumbnailSize = *fc.Library.ThumbnailSize
		}
	}
	if fc.Server != nil {
		if strings.TrimSpace(fc.Server.Addr) != "" {
			cfg.Server.Addr = fc.Server.Addr
		}
		if len(fc.Server.AllowedOrigins) > 0 {
			cfg.Server.AllowedOrigins = append([]string(nil), fc.Server.AllowedOrigins...)
		}
	}
	if fc.Storage != nil && strings.TrimSpace(fc.Storage.BaseDir) != "" {
		cfg.Storage.BaseDir = fc.Storage.BaseDir
	}
	if fc.Log != nil {
		cfg.Log = mergeLog(cfg.Log, *fc.Log)
	}
	if fc.Language != nil {
		cfg.Language = *fc.Language
	}
}

func mergePlanner(base PlannerConfig, override PlannerConfig) PlannerConfig {
	if strings.TrimSpace(override.Mode) != "" {
		base.Mode = override.Mode
	}
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = override.BaseURL
	}
	if strings.TrimSpace(override.APIKey) != "" {
		base.APIKey = override.APIKey
	}
	if strings.TrimSpace(override.Model) != "" {
		base.Model = override.Model
	}
	if override.TimeoutMS > 0 {
		base.TimeoutMS = override.TimeoutMS
	}
	if override.MaxRetries > 0 {
		base.MaxRetries = override.MaxRetries
	}
	if override.ContextTokenLimit > 0 {
		base.ContextTokenLimit = override.ContextTokenLimit
	}
	if override.Temperature > 0 {
		base.Temperature = override.Temperature
	}
	return base
}

func mergeEmbedding(base EmbeddingConfig, override EmbeddingConfig) EmbeddingConfig {
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = override.BaseURL
	}
	if strings.TrimSpace(override.APIKey) != "" {
		base.APIKey = override.APIKey
	}
	if strings.TrimSpace(override.Model) != "" {
		base.Model = override.Model
	}
	if override.CacheSize > 0 {
		base.CacheSize = override.CacheSize
	}
	if strings.TrimSpace(override.ImageEncoder) != "" {
		base.ImageEncoder = override.ImageEncoder
	}
	if override.Workers > 0 {
		base.Workers = override.Workers
	}
	return base
}

func mergePermission(base PermissionConfig, override PermissionConfig) PermissionConfig {
	if strings.TrimSpace(override.Default) != "" {
		base.Default = override.Default
	}
	if len(override.Tools) > 0 {
		merged := make(map[string]string, len(base.Tools)+len(override.Tools))
		for k, v := range base.Tools {
			merged[k] = v
		}
		for k, v := range override.Tools {
			merged[k] = v
		}
		base.Tools = merged
	}
	return base
}

func mergeLog(base LogConfig, override LogConfig) LogConfig {
	if strings.TrimSpace(override.Level) != "" {
		base.Level = override.Level
	}
	if strings.TrimSpace(override.Format) != "" {
		base.Format = override.Format
	}
	if strings.TrimSpace(override.File) != "" {
		base.File = override.File
	}
	return base
}

func normalize(cfg *Config) error {
	def := Default()

	cfg.Planner.Mode = strings.ToLower(strings.TrimSpace(cfg.Planner.Mode))
	switch cfg.Planner.Mode {
	case PlannerModeRemote, PlannerModeOpenAI:
	case "":
		cfg.Planner.Mode = def.Planner.Mode
	default:
		return fmt.Errorf("invalid planner.mode %q (want remote or openai)", cfg.Planner.Mode)
	}
	if cfg.Planner.BaseURL == "" {
		cfg.Planner.BaseURL = def.Planner.BaseURL
	}
	if cfg.Planner.TimeoutMS <= 0 {
		cfg.Planner.TimeoutMS = def.Planner.TimeoutMS
	}
	if cfg.Planner.ContextTokenLimit <= 0 {
		cfg.Planner.ContextTokenLimit = def.Planner.ContextTokenLimit
	}
	if cfg.Embedding.CacheSize <= 0 {
		cfg.Embedding.CacheSize = def.Embedding.CacheSize
	}
	if cfg.Embedding.Workers <= 0 {
		cfg.Embedding.Workers = def.Embedding.Workers
	}

	// 阈值是严格比较的开区间上界，必须落在 [-1, 1)
	if cfg.Search.Threshold < -1 || cfg.Search.Threshold >= 1 {
		return fmt.Errorf("search.threshold must be in [-1, 1), got %v", cfg.Search.Threshold)
	}
	if cfg.Cleanup.DuplicateThreshold <= 0 || cfg.Cleanup.DuplicateThreshold >= 1 {
		return fmt.Errorf("cleanup.duplicate_threshold must be in (0, 1), got %v", cfg.Cleanup.DuplicateThreshold)
	}
	if cfg.Search.MaxUnranked <= 0 {
		cfg.Search.MaxUnranked = def.Search.MaxUnranked
	}
	if _, err := LoadLocation(cfg.Search.Timezone); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Permission.Default) == "" {
		cfg.Permission.Default = def.Permission.Default
	}
	if len(cfg.Permission.Tools) > 0 {
		norm := make(map[string]string, len(cfg.Permission.Tools))
		for k, v := range cfg.Permission.Tools {
			name := strings.ToLower(strings.TrimSpace(k))
			if name == "" {
				continue
			}
			norm[name] = strings.ToLower(strings.TrimSpace(v))
		}
		cfg.Permission.Tools = norm
	}

	root, err := expandPath(cfg.Library.Root)
	if err != nil {
		return err
	}
	cfg.Library.Root = root
	if strings.TrimSpace(cfg.Library.OutputDir) == "" {
		cfg.Library.OutputDir = def.Library.OutputDir
	}
	if cfg.Library.ThumbnailSize <= 0 {
		cfg.Library.ThumbnailSize = def.Library.ThumbnailSize
	}

	storageDir, err := expandPath(cfg.Storage.BaseDir)
	if err != nil {
		return err
	}
	cfg.Storage.BaseDir = storageDir
	if cfg.Log.File != "" {
		logFile, err := expandPath(cfg.Log.File)
		if err != nil {
			return err
		}
		cfg.Log.File = logFile
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	return nil
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("PHOTOAGENT_PLANNER_URL")); v != "" {
		cfg.Planner.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PHOTOAGENT_PLANNER_MODE")); v != "" {
		cfg.Planner.Mode = v
	}
	if v := strings.TrimSpace(os.Getenv("PHOTOAGENT_MODEL")); v != "" {
		cfg.Planner.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("PHOTOAGENT_API_KEY")); v != "" {
		cfg.Planner.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" && cfg.Planner.APIKey == "" {
		cfg.Planner.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" && cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("PHOTOAGENT_LIBRARY_ROOT")); v != "" {
		cfg.Library.Root = v
	}
	if v := strings.TrimSpace(os.Getenv("PHOTOAGENT_HOME")); v != "" {
		cfg.Storage.BaseDir = v
	}
	if v := strings.TrimSpace(os.Getenv("PHOTOAGENT_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("PHOTOAGENT_SEARCH_THRESHOLD")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PHOTOAGENT_SEARCH_THRESHOLD: %q", v)
		}
		cfg.Search.Threshold = f
	}

	return cfg, normalize(&cfg)
}

// LoadLocation resolves the search timezone; "" and "Local" mean the host zone.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid search.timezone %q: %w", name, err)
	}
	return loc, nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}

func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	out := bytes.Buffer{}

	for i := 0; i < len(data); i++ {
		c := data[i]
		next := byte(0)
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			if c == '"' {
				state = stateString
				out.WriteByte(c)
				continue
			}
			if c == '/' && next == '/' {
				state = stateLineComment
				i++
				continue
			}
			if c == '/' && next == '*' {
				state = stateBlockComment
				i++
				continue
			}
			out.WriteByte(c)
		case stateString:
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return out.Bytes()
}
