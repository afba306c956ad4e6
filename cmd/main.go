package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"knowrag-backend/internal/callback"
	"knowrag-backend/internal/config"
	"knowrag-backend/internal/handler"
	"knowrag-backend/internal/llm"
	"knowrag-backend/internal/modelprovider"
	"knowrag-backend/internal/prompt"
	"knowrag-backend/internal/retrieval"
	"knowrag-backend/internal/service"
	"knowrag-backend/internal/storage"
	"knowrag-backend/internal/token"
	"knowrag-backend/pkg/logger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// 分词器，进程内共享一份
	enc, err := token.NewEncoder(cfg.RAG.TiktokenCache)
	if err != nil {
		logger.Fatalf("初始化分词器失败: %v", err)
	}

	// 缓存：未启用 Redis 时退化为进程内实现
	var cache storage.Cache
	if cfg.Redis.Enabled {
		redisCache := storage.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			logger.Fatalf("连接 Redis 失败: %v", err)
		}
		cancel()
		cache = redisCache
	} else {
		logger.Warn("Redis 未启用，飞轮缓存与专名词表使用进程内实现")
		cache = storage.NewMemoryCache()
	}

	// 用户日志存储，未启用时不落库
	var logs *storage.MongoLogStore
	var logStore service.UserLogStore
	if cfg.Mongo.Enabled {
		mongoCtx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.Timeout)
		logs, err = storage.NewMongoLogStore(mongoCtx, cfg.Mongo.URL, cfg.Mongo.Database, cfg.Mongo.Collection)
		cancel()
		if err != nil {
			logger.Fatalf("连接 MongoDB 失败: %v", err)
		}
		logStore = logs
	}

	// 媒体存储，图片外链改写依赖它
	var rewriteURL func(string) string
	if cfg.Minio.Address != "" {
		media, err := storage.NewMediaStore(
			cfg.Minio.Address,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.ReplaceDownloadURL,
			cfg.Minio.UploadBucket,
			cfg.Minio.Secure,
		)
		if err != nil {
			logger.Fatalf("初始化 MinIO 失败: %v", err)
		}
		rewriteURL = media.RewriteFileURL
	}

	assembler := prompt.NewAssembler(enc, rewriteURL)
	llmClient := llm.NewClient(cfg.RAG.StreamTimeout)
	retriever := retrieval.NewClient(cfg.Retrieval.BaseURL, cfg.Retrieval.Timeout)
	provider := modelprovider.NewClient(cfg.ModelProvider.BaseURL, cfg.ModelProvider.Timeout)

	queryService := service.NewQueryService(cfg, enc, assembler, llmClient, retriever, provider, cache, logStore)
	ragHandler := handler.NewRAGHandler(queryService, cfg.RAG.StreamTimeout)

	callbackHandler := handler.NewCallbackHandler(
		callback.NewBochaClient(cfg.Callback.BochaBaseURL, cfg.Callback.Timeout),
		callback.NewTavilyClient(cfg.Callback.TavilyBaseURL, cfg.Callback.Timeout),
		callback.NewAliClient(cfg.Callback.DashScopeBaseURL, cfg.Callback.Timeout),
	)

	router := setupRouter(cfg, ragHandler, callbackHandler)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("服务器启动在端口 %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待信号优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务器正在关闭...")
	if err := server.Close(); err != nil {
		logger.Errorf("服务器关闭失败: %v", err)
	}
	if logs != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := logs.Close(closeCtx); err != nil {
			logger.Errorf("关闭 MongoDB 连接失败: %v", err)
		}
		cancel()
	}
	if err := cache.Close(); err != nil {
		logger.Errorf("关闭缓存连接失败: %v", err)
	}
	logger.Info("服务器已关闭")
}

func setupRouter(cfg *config.Config, ragHandler *handler.RAGHandler, callbackHandler *handler.CallbackHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	rag := router.Group("/rag")
	{
		rag.POST("/knowledge/stream/search", ragHandler.StreamSearch)
	}

	cb := router.Group("/callback/v1")
	{
		cb.POST("/bocha/search", callbackHandler.BochaSearch)
		cb.POST("/tavily/news", callbackHandler.TavilyNews)
		cb.POST("/tavily/news/deep", callbackHandler.TavilyNewsDeep)
		cb.POST("/ali/text2image", callbackHandler.AliTextToImage)
		cb.POST("/ali/image2video", callbackHandler.AliImageToVideo)
		cb.GET("/ali/tasks/:task_id", callbackHandler.AliTaskStatus)
	}

	return router
}
