// Package bootstrap wires the photo agent together from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"photoagent/internal/config"
	"photoagent/internal/conversation"
	"photoagent/internal/embedding"
	"photoagent/internal/media"
	"photoagent/internal/metrics"
	"photoagent/internal/permission"
	"photoagent/internal/planner"
	"photoagent/internal/security"
	"photoagent/internal/session"
	"photoagent/internal/similarity"
	"photoagent/internal/storage"
	"photoagent/internal/tools"
)

const dbFileName = "photoagent.db"

// Library 离线组件：存储、索引与检索，不需要规划器
// Library holds the offline components: storage, indexing and search. The
// index, search and dedupe commands use it without a planner.
type Library struct {
	Config  config.Config
	Store   *storage.SQLiteStore
	Root    *security.Library
	Indexer *embedding.Indexer
	Search  *similarity.Engine
}

// OpenLibrary opens the database and the library root. Callers must Close it.
func OpenLibrary(cfg config.Config) (*Library, error) {
	root, err := security.NewLibrary(cfg.Library.Root)
	if err != nil {
		return nil, fmt.Errorf("init library: %w", err)
	}

	store, err := storage.NewSQLiteStore(filepath.Join(cfg.Storage.BaseDir, dbFileName))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	textEncoder, err := embedding.NewCachedTextEncoder(embedding.NewOpenAITextEncoder(embedding.OpenAIConfig{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		TimeoutMS:  cfg.Planner.TimeoutMS,
		MaxRetries: cfg.Planner.MaxRetries,
	}), cfg.Embedding.CacheSize)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init text encoder: %w", err)
	}

	imageEncoder, err := newImageEncoder(cfg.Embedding.ImageEncoder)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	loc, err := config.LoadLocation(cfg.Search.Timezone)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Library{
		Config:  cfg,
		Store:   store,
		Root:    root,
		Indexer: embedding.NewIndexer(root, imageEncoder, store, cfg.Embedding.Workers),
		Search: similarity.NewEngine(store, textEncoder, similarity.Options{
			Threshold:   cfg.Search.Threshold,
			MaxUnranked: cfg.Search.MaxUnranked,
			Location:    loc,
		}),
	}, nil
}

func (l *Library) Close() error {
	return l.Store.Close()
}

func newImageEncoder(name string) (embedding.ImageEncoder, error) {
	switch name {
	case "", "perceptual":
		return embedding.PerceptualEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown embedding.image_encoder %q", name)
	}
}

// Options 构建参数
// Options tune Build.
type Options struct {
	// Resume continues the most recent stored conversation.
	Resume bool
	// Metrics defaults to the instance on the global registry.
	Metrics *metrics.Metrics
	// Planner replaces the configured planner, used by tests.
	Planner planner.Planner
}

// App 组装完成的会话，供 REPL、TUI 与 HTTP 服务使用
// App is a fully wired session for the REPL, the TUI and the HTTP server.
type App struct {
	*Library

	State      *conversation.Store
	Broker     *permission.QueueBroker
	Metrics    *metrics.Metrics
	Media      *media.FS
	Registry   *tools.Registry
	Dispatcher *tools.Dispatcher
	Planner    planner.Planner
	Session    *session.Controller
	Resumed    bool
}

// Build 按顺序初始化并返回 App；调用方负责 Close
// Build initializes everything in dependency order. The caller must Close the
// result; ctx bounds the consent callbacks the session runs.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	lib, err := OpenLibrary(cfg)
	if err != nil {
		return nil, err
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.Default()
	}
	state := conversation.NewStore()
	broker := permission.NewQueueBroker()
	fs := media.NewFS(lib.Root, lib.Store, lib.Indexer, media.Options{OutputDir: cfg.Library.OutputDir})

	registry := tools.NewRegistry(tools.Builtin(tools.Env{
		State:              state,
		Store:              lib.Store,
		Search:             lib.Search,
		Media:              fs,
		Metrics:            m,
		DuplicateThreshold: cfg.Cleanup.DuplicateThreshold,
	})...)

	// 会话在调度器之后创建，通过闭包读取其 ID
	var ctrl *session.Controller
	dispatcher := tools.NewDispatcher(registry, tools.DispatcherOptions{
		Policy:  permission.New(cfg.Permission),
		Broker:  broker,
		State:   state,
		Consent: lib.Store,
		Metrics: m,
		ConversationID: func() string {
			if ctrl == nil {
				return ""
			}
			return ctrl.ConversationID()
		},
	})

	p := opts.Planner
	if p == nil {
		p, err = newPlanner(cfg.Planner, registry)
		if err != nil {
			_ = lib.Close()
			return nil, err
		}
	}

	thumbSize := 0
	var thumbs session.Thumbnailer
	if cfg.Library.AttachThumbnails {
		thumbs = fs
		thumbSize = cfg.Library.ThumbnailSize
	}
	ctrl = session.New(session.Options{
		Planner:       p,
		Dispatcher:    dispatcher,
		State:         state,
		Transcript:    lib.Store,
		Thumbnails:    thumbs,
		ThumbnailSize: thumbSize,
		Metrics:       m,
		PlannerMode:   cfg.Planner.Mode,
	})
	ctrl.Attach(ctx, broker)

	app := &App{
		Library:    lib,
		State:      state,
		Broker:     broker,
		Metrics:    m,
		Media:      fs,
		Registry:   registry,
		Dispatcher: dispatcher,
		Planner:    p,
		Session:    ctrl,
	}
	if opts.Resume {
		if err := app.resume(); err != nil {
			_ = lib.Close()
			return nil, err
		}
	}
	return app, nil
}

func newPlanner(cfg config.PlannerConfig, registry *tools.Registry) (planner.Planner, error) {
	switch cfg.Mode {
	case config.PlannerModeRemote:
		return planner.NewHTTPPlanner(cfg), nil
	case config.PlannerModeOpenAI:
		return planner.NewOpenAIPlanner(cfg, registry.Definitions()), nil
	default:
		return nil, fmt.Errorf("unknown planner mode %q", cfg.Mode)
	}
}

// resume loads the latest conversation; an empty database starts fresh.
func (a *App) resume() error {
	meta, err := a.Store.LatestConversation()
	if errors.Is(err, storage.ErrNoConversation) {
		log.Info().Msg("no conversation to resume")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load latest conversation: %w", err)
	}
	if meta.PlannerMode != a.Config.Planner.Mode || a.Config.Planner.Mode == config.PlannerModeOpenAI {
		// 本地规划器的会话只存在于进程内 / local planner sessions live in memory only
		meta.PlannerSessionID = ""
		meta.PlannerMode = a.Config.Planner.Mode
	}
	msgs, err := a.Store.LoadMessages(meta.ID)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	a.Session.Resume(meta, msgs)
	a.Resumed = true
	log.Info().Str("conversation_id", meta.ID).Int("count", len(msgs)).Msg("conversation resumed")
	return nil
}

// Close waits for in-flight consent callbacks, then closes storage.
func (a *App) Close() error {
	a.Session.Wait()
	return a.Library.Close()
}
