package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"noir-server-go/src/configs"
	"noir-server-go/src/configs/database"
	"noir-server-go/src/core"
	"noir-server-go/src/core/auth"
	"noir-server-go/src/core/chat"
	"noir-server-go/src/core/health"
	"noir-server-go/src/core/memory"
	"noir-server-go/src/core/providers"
	"noir-server-go/src/core/providers/asr"
	"noir-server-go/src/core/providers/llm"
	"noir-server-go/src/core/providers/tts"
	"noir-server-go/src/core/speech"
	"noir-server-go/src/core/utils"
	"noir-server-go/src/models"
	"noir-server-go/src/web"

	// 导入所有providers以确保init函数被调用
	_ "noir-server-go/src/core/providers/asr/whisper"
	_ "noir-server-go/src/core/providers/llm/anthropic"
	_ "noir-server-go/src/core/providers/llm/ollama"
	_ "noir-server-go/src/core/providers/llm/openai"
	_ "noir-server-go/src/core/providers/tts/edge"
	_ "noir-server-go/src/core/providers/tts/elevenlabs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// 短台词缓存目录
const audioCacheDir = "tmp/cache"

// Components 运行期组件，可选组件为空表示对应功能关闭
type Components struct {
	LLM     llm.Provider
	TTS     tts.Provider
	ASR     asr.Provider
	Memory  memory.Store
	Speaker *speech.Speaker
	Agent   *chat.Agent
	Auth    *auth.AuthToken
	Health  *health.HealthChecker
}

func LoadConfigAndLogger() (*configs.Config, *utils.Logger, error) {
	// 加载配置,默认使用.config.yaml
	config, configPath, err := configs.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	// 初始化日志系统
	logger, err := utils.NewLogger(config)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("日志系统初始化成功, 配置文件路径: %s", configPath)

	return config, logger, nil
}

// initLLM LLM是必需的，创建失败时直接退出
func initLLM(config *configs.Config, logger *utils.Logger) (llm.Provider, error) {
	name, cfg := config.SelectedLLM()
	provider, err := llm.Create(cfg.Type, &llm.Config{
		Type:             cfg.Type,
		ModelName:        cfg.ModelName,
		BaseURL:          cfg.BaseURL,
		APIKey:           cfg.APIKey,
		Temperature:      cfg.Temperature,
		MaxTokens:        cfg.MaxTokens,
		TopP:             cfg.TopP,
		FrequencyPenalty: cfg.FrequencyPenalty,
		PresencePenalty:  cfg.PresencePenalty,
		Extra:            cfg.Extra,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化LLM %s 失败: %w", name, err)
	}
	logger.Info("LLM已启用: %s (%s)", name, cfg.ModelName)
	return provider, nil
}

// initMemory 记忆不可用时降级为无记忆对话
func initMemory(ctx context.Context, config *configs.Config, logger *utils.Logger) memory.Store {
	name, cfg, ok := config.SelectedMemory()
	if !ok {
		logger.Warn("未选择记忆模块，对话将不使用长期记忆")
		return memory.Disabled{}
	}
	memCfg := memory.Config{
		Type:        cfg.Type,
		PersistDir:  cfg.PersistDir,
		Collection:  cfg.Collection,
		ModelName:   cfg.ModelName,
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Compress:    cfg.Compress,
		MaxDistance: config.Chat.MaxDistance,
	}
	embedder, err := memory.NewEmbedder(memCfg)
	if err != nil {
		logger.Warn("记忆模块 %s 已关闭: %v", name, err)
		return memory.Disabled{}
	}
	store, err := memory.NewChromemStore(ctx, memCfg, embedder, logger)
	if err != nil {
		logger.Warn("记忆模块 %s 已关闭: %v", name, err)
		return memory.Disabled{}
	}
	logger.Info("记忆模块已启用: %s", name)
	return store
}

// initTTS 语音合成不可用时只返回文字
func initTTS(config *configs.Config, logger *utils.Logger) (tts.Provider, *utils.AudioCache) {
	name, cfg, ok := config.SelectedTTS()
	if !ok {
		logger.Warn("未选择TTS模块，语音合成已关闭")
		return nil, nil
	}
	provider, err := tts.Create(cfg.Type, &tts.Config{
		Type:      cfg.Type,
		OutputDir: cfg.OutputDir,
		Voice:     cfg.Voice,
		Format:    cfg.Format,
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		ModelID:   cfg.ModelID,
	}, config.DeleteAudio)
	if err != nil {
		logger.Warn("TTS %s 已关闭: %v", name, err)
		return nil, nil
	}
	logger.Info("TTS已启用: %s", name)

	cache, err := utils.NewAudioCache(filepath.FromSlash(audioCacheDir), cfg.Type, cfg.Voice, cfg.Format)
	if err != nil {
		logger.Warn("音频缓存不可用: %v", err)
		return provider, nil
	}
	return provider, cache
}

// initASR 语音识别不可用时只接受文字输入
func initASR(config *configs.Config, logger *utils.Logger) asr.Provider {
	name, cfg, ok := config.SelectedASR()
	if !ok {
		logger.Warn("未选择ASR模块，语音识别已关闭")
		return nil
	}
	provider, err := asr.Create(cfg.Type, &asr.Config{
		Type:      cfg.Type,
		ModelName: cfg.ModelName,
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		Language:  cfg.Language,
	})
	if err != nil {
		logger.Warn("ASR %s 已关闭: %v", name, err)
		return nil
	}
	logger.Info("ASR已启用: %s", name)
	return provider
}

// initTranscripts 未配置数据库时不持久化对话记录
func initTranscripts(logger *utils.Logger) (chat.TranscriptStore, error) {
	db, dbType, err := database.InitDB()
	if errors.Is(err, database.ErrNoDatabase) {
		logger.Warn("未配置数据库，对话记录不会持久化")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	store, err := models.NewTranscriptStore(db)
	if err != nil {
		return nil, err
	}
	logger.Info("对话记录已启用，数据库类型: %s", dbType)
	return store, nil
}

func initAuth(config *configs.Config, logger *utils.Logger) (*auth.AuthToken, error) {
	if !config.Server.Auth.Enabled {
		return nil, nil
	}
	tokens := make([]string, 0, len(config.Server.Auth.Tokens))
	for _, t := range config.Server.Auth.Tokens {
		tokens = append(tokens, t.Token)
	}
	at, err := auth.NewAuthToken(config.Server.Auth.Secret, tokens...)
	if err != nil {
		return nil, err
	}
	logger.Info("接口认证已开启")
	return at, nil
}

// InitComponents 按配置创建全部组件
func InitComponents(ctx context.Context, config *configs.Config, logger *utils.Logger) (*Components, error) {
	c := &Components{}

	var err error
	if c.LLM, err = initLLM(config, logger); err != nil {
		return nil, err
	}
	if c.Auth, err = initAuth(config, logger); err != nil {
		return nil, err
	}
	transcripts, err := initTranscripts(logger)
	if err != nil {
		return nil, err
	}

	c.Memory = initMemory(ctx, config, logger)
	c.ASR = initASR(config, logger)

	var ttsProvider providers.TTSProvider
	var cache *utils.AudioCache
	if c.TTS, cache = initTTS(config, logger); c.TTS != nil {
		ttsProvider = c.TTS
	}
	c.Speaker = speech.NewSpeaker(ttsProvider, cache, logger)

	sessions := chat.NewSessionStore(transcripts, config.Chat.HistoryLimit, logger)
	c.Agent = chat.NewAgent(c.LLM, c.Memory, sessions, chat.AgentConfig{
		SystemPrompt: config.DefaultPrompt,
		UserTopK:     config.Chat.UserTopK,
		AITopK:       config.Chat.AITopK,
	}, logger)

	c.Health = health.NewHealthChecker(health.Targets{
		LLM:    c.LLM,
		TTS:    ttsProvider,
		ASR:    c.asrProvider(),
		Memory: c.Memory,
	}, health.ConfigFromYAML(&config.ConnectivityCheck), logger)
	return c, nil
}

// CheckConnectivity 启动时检查上游服务，LLM不可用时返回错误
func CheckConnectivity(ctx context.Context, config *configs.Config, c *Components) error {
	connConfig := health.ConfigFromYAML(&config.ConnectivityCheck)
	if !connConfig.Enabled {
		return nil
	}
	mode := health.BasicCheck
	if connConfig.Functional {
		mode = health.FunctionalCheck
	}
	err := c.Health.CheckAllProviders(ctx, mode)
	c.Health.PrintReport()
	return err
}

// Close 释放组件资源
func (c *Components) Close(logger *utils.Logger) {
	var all []providers.Provider
	if c.LLM != nil {
		all = append(all, c.LLM)
	}
	if c.TTS != nil {
		all = append(all, c.TTS)
	}
	if c.ASR != nil {
		all = append(all, c.ASR)
	}
	for _, p := range all {
		if err := p.Cleanup(); err != nil {
			logger.Warn("清理提供者失败: %v", err)
		}
	}
	if c.Memory != nil {
		if err := c.Memory.Close(); err != nil {
			logger.Warn("关闭记忆存储失败: %v", err)
		}
	}
}

func (c *Components) asrProvider() providers.ASRProvider {
	if c.ASR == nil {
		return nil
	}
	return c.ASR
}

func StartWSServer(config *configs.Config, c *Components, logger *utils.Logger, g *errgroup.Group, groupCtx context.Context) (*core.WebSocketServer, error) {
	// 创建 WebSocket 服务
	wsServer, err := core.NewWebSocketServer(config, core.Deps{
		Agent:   c.Agent,
		Speaker: c.Speaker,
		ASR:     c.asrProvider(),
		Auth:    c.Auth,
	}, logger)
	if err != nil {
		return nil, err
	}

	// 启动 WebSocket 服务
	g.Go(func() error {
		// 监听关闭信号
		go func() {
			<-groupCtx.Done()
			logger.Info("收到关闭信号，开始关闭WebSocket服务...")
			if err := wsServer.Stop(); err != nil {
				logger.Error("WebSocket服务关闭失败: %v", err)
			} else {
				logger.Info("WebSocket服务已优雅关闭")
			}
		}()

		if err := wsServer.Start(groupCtx); err != nil {
			if groupCtx.Err() != nil {
				return nil // 正常关闭
			}
			logger.Error("WebSocket 服务运行失败: %v", err)
			return err
		}
		return nil
	})

	logger.Info("WebSocket 服务已成功启动")
	return wsServer, nil
}

func StartHttpServer(config *configs.Config, c *Components, logger *utils.Logger, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	// 初始化Gin引擎
	if config.Log.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := web.NewRouter(groupCtx, &web.Deps{
		Config:  config,
		Logger:  logger,
		Agent:   c.Agent,
		Speaker: c.Speaker,
		ASR:     c.asrProvider(),
		Memory:  c.Memory,
		Auth:    c.Auth,
		Health:  c.Health,
	})
	if err != nil {
		return nil, err
	}

	// HTTP Server（支持优雅关机）
	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(config.Web.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.Info("Gin 服务已启动，访问地址: http://0.0.0.0:%d", config.Web.Port)

		// 在单独的 goroutine 中监听关闭信号
		go func() {
			<-groupCtx.Done()
			logger.Info("收到关闭信号，开始关闭HTTP服务...")

			// 创建关闭超时上下文
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP服务关闭失败: %v", err)
			} else {
				logger.Info("HTTP服务已优雅关闭")
			}
		}()

		// ListenAndServe 返回 ErrServerClosed 时表示正常关闭
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP 服务启动失败: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func GracefulShutdown(cancel context.CancelFunc, logger *utils.Logger, g *errgroup.Group) {
	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// 服务自行退出（例如端口被占用）时不再等待信号
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case sig := <-sigChan:
		logger.Info("接收到系统信号: %v，开始优雅关闭服务", sig)
	case err := <-done:
		if err != nil {
			logger.Error("服务异常退出: %v", err)
			os.Exit(1)
		}
		return
	}

	// 取消上下文，通知所有服务开始关闭
	cancel()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("服务关闭过程中出现错误: %v", err)
			os.Exit(1)
		}
		logger.Info("所有服务已优雅关闭")
	case <-time.After(15 * time.Second):
		logger.Error("服务关闭超时，强制退出")
		os.Exit(1)
	}
}

func startServices(config *configs.Config, c *Components, logger *utils.Logger, g *errgroup.Group, groupCtx context.Context) error {
	// 启动 WebSocket 服务
	if _, err := StartWSServer(config, c, logger, g, groupCtx); err != nil {
		return fmt.Errorf("启动 WebSocket 服务失败: %w", err)
	}

	// 启动 Http 服务
	if config.Web.Enabled {
		if _, err := StartHttpServer(config, c, logger, g, groupCtx); err != nil {
			return fmt.Errorf("启动 Http 服务失败: %w", err)
		}
	}

	return nil
}

func main() {
	// 先加载 .env 文件，密钥需要在读取配置时覆盖
	envErr := godotenv.Load()

	// 加载配置和初始化日志系统
	config, logger, err := LoadConfigAndLogger()
	if err != nil {
		fmt.Println("加载配置或初始化日志系统失败:", err)
		os.Exit(1)
	}
	defer logger.Close()
	if envErr != nil {
		logger.Warn("未找到 .env 文件，使用系统环境变量")
	}

	// 创建可取消的上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := InitComponents(ctx, config, logger)
	if err != nil {
		logger.Error("初始化组件失败: %v", err)
		os.Exit(1)
	}
	defer components.Close(logger)

	if err := CheckConnectivity(ctx, config, components); err != nil {
		logger.Error("连通性检查失败: %v", err)
		components.Close(logger)
		os.Exit(1)
	}

	// 用 errgroup 管理两个服务
	g, groupCtx := errgroup.WithContext(ctx)

	// 启动所有服务
	if err := startServices(config, components, logger, g, groupCtx); err != nil {
		logger.Error("启动服务失败: %v", err)
		cancel()
		os.Exit(1)
	}

	// 启动优雅关机处理
	GracefulShutdown(cancel, logger, g)

	logger.Info("程序已成功退出")
}
