// Package main 是聊天组件服务的入口点。
package main

import (
	"chat-widget-go/internal/config"
	"chat-widget-go/internal/handler"
	"chat-widget-go/internal/middleware"
	"chat-widget-go/internal/model"
	"chat-widget-go/internal/pipeline"
	"chat-widget-go/internal/render"
	"chat-widget-go/internal/repository"
	"chat-widget-go/internal/service"
	"chat-widget-go/internal/web"
	"chat-widget-go/pkg/backend"
	"chat-widget-go/pkg/database"
	"chat-widget-go/pkg/es"
	"chat-widget-go/pkg/export"
	"chat-widget-go/pkg/kafka"
	"chat-widget-go/pkg/log"
	"chat-widget-go/pkg/storage"
	"chat-widget-go/pkg/token"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

const (
	widgetBasePath = "/api/v1/widget"
	wsPath         = "/ws"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "chat-widget",
	Short: "Serve the JIA chat widget and its API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(configPath)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "./configs/config.yaml", "path to the YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	// 1. 初始化配置
	v := config.Init(path)
	cfg := config.Conf

	// 2. 初始化日志记录器，配置文件变化时热更新日志级别
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")
	config.Watch(v, func(c config.Config) {
		log.SetLevel(c.Log.Level)
		log.Infof("配置已重新加载，日志级别: %s", log.Level())
	})

	// 3. 初始化数据库、Redis、对象存储、检索与消息队列
	database.InitMySQL(cfg.Database.MySQL.DSN, &model.ArchivedExchange{})
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	var exchangeIndex es.ExchangeIndex
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		// 检索只服务于管理端，不可用时组件照常工作
		log.Errorf("es 初始化失败，归档检索不可用: %v", err)
	} else {
		exchangeIndex = es.NewExchangeIndex(es.ESClient, cfg.Elasticsearch.IndexName)
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	sessionRepo := repository.NewSessionRepository(database.RDB, time.Duration(cfg.Session.TTLHours)*time.Hour)
	archiveRepo := repository.NewArchiveRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	sessionManager := token.NewSessionManager(cfg.Session.Secret, cfg.Session.ExpireHours)
	backendClient := backend.NewClient(cfg.Backend)
	attachmentStore := storage.NewAttachmentStore(storage.MinioClient, cfg.MinIO.BucketName)
	renderer, err := render.NewRenderer(render.Options{
		AssistantName: cfg.Widget.AssistantName,
		LogoURL:       cfg.Widget.LogoURL,
		PageSize:      cfg.Widget.PageSize,
		BasePath:      widgetBasePath,
	})
	if err != nil {
		return fmt.Errorf("初始化渲染器失败: %w", err)
	}
	hub := service.NewHub()
	chatService := service.NewChatService(
		sessionRepo,
		backendClient,
		attachmentStore,
		kafka.Publisher{},
		hub,
		cfg.Widget.WelcomeMessage,
		cfg.Backend.Timeout(),
	)
	tableService := service.NewTableService(chatService, renderer, export.NewRegistry())
	adminService := service.NewAdminService(archiveRepo, exchangeIndex)

	// 6. 初始化归档管道并启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(archiveRepo, exchangeIndex)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go kafka.StartConsumer(consumerCtx, cfg.Kafka, processor)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	secure := cfg.Server.Mode == gin.ReleaseMode
	session := middleware.SessionMiddleware(sessionManager, cfg.Session.CookieName, secure)
	widgetHandler := handler.NewWidgetHandler(chatService, tableService, renderer, web.PageData{
		AssistantName: cfg.Widget.AssistantName,
		LogoURL:       cfg.Widget.LogoURL,
		BasePath:      widgetBasePath,
		WSPath:        wsPath,
	}, secure)
	wsHandler := handler.NewWSHandler(chatService, renderer, hub, cfg.Server.AllowedOrigins)
	adminHandler := handler.NewAdminHandler(adminService)

	// 8. 注册路由
	r.StaticFS("/static", web.Static())
	r.GET("/", session, widgetHandler.Page)
	r.GET(wsPath, session, wsHandler.Handle)

	widget := r.Group(widgetBasePath)
	widget.Use(session)
	{
		widget.GET("/transcript", widgetHandler.Transcript)
		widget.POST("/send", widgetHandler.Send)
		widget.POST("/category", widgetHandler.SelectCategory)
		widget.POST("/menu", widgetHandler.ShowMenu)
		widget.POST("/clear", widgetHandler.Clear)
		widget.POST("/new", widgetHandler.NewChat)
		widget.POST("/continue", widgetHandler.SetContinue)
		widget.POST("/columns", widgetHandler.SetColumns)

		widget.POST("/attachments", widgetHandler.AddAttachments)
		widget.DELETE("/attachments", widgetHandler.ClearAttachments)
		widget.GET("/attachments/:id", widgetHandler.Attachment)

		blocks := widget.Group("/blocks/:id")
		{
			blocks.GET("", widgetHandler.Block)
			blocks.GET("/chart.png", widgetHandler.Chart)
			blocks.GET("/export/:format", widgetHandler.Export)
		}
	}

	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.AdminAuthMiddleware(cfg.Admin.Username, cfg.Admin.PasswordHash))
	{
		admin.GET("/exchanges", adminHandler.ListExchanges)
		admin.GET("/exchanges/search", adminHandler.SearchExchanges)
	}

	// 组件可能嵌入在其它站点中，跨域请求需要携带 Cookie
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}).Handler(r)

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: corsHandler,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP 服务器关闭失败: %w", err)
	}
	stopConsumer()
	if err := kafka.CloseProducer(); err != nil {
		log.Warnf("关闭 Kafka 生产者失败: %v", err)
	}
	log.Info("服务已优雅关闭")
	return nil
}
