package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/z-wentao/meetscribe/pkg/config"
	"github.com/z-wentao/meetscribe/pkg/media"
	"github.com/z-wentao/meetscribe/pkg/proc"
	"github.com/z-wentao/meetscribe/pkg/queue"
	"github.com/z-wentao/meetscribe/pkg/registry"
	"github.com/z-wentao/meetscribe/pkg/speaker"
	"github.com/z-wentao/meetscribe/pkg/transcriber"
	"github.com/z-wentao/meetscribe/pkg/upload"
	"github.com/z-wentao/meetscribe/pkg/worker"
)

// App 应用上下文（组合根：所有依赖在这里显式注入）
type App struct {
	config   *config.Config
	store    registry.Store
	queue    queue.Queue
	uploader *upload.Service
	resolver *speaker.Resolver // 可为 nil
	pool     *worker.Pool
}

func main() {
	// 1. 加载配置
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("❌ 加载配置失败: %v", err)
	}
	log.Println("✓ 配置加载成功")

	// 2. 确保必要的目录存在
	for _, dir := range []string{cfg.Upload.AudioDir, cfg.Upload.TranscriptDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("❌ 创建目录失败 (%s): %v", dir, err)
		}
	}

	app := &App{config: cfg}

	// 3. 初始化存储（根据配置选择类型）
	app.store, err = registry.NewStore(&cfg.Storage)
	if err != nil {
		log.Fatalf("❌ 初始化存储失败: %v", err)
	}
	log.Printf("✓ 使用 %s 存储", cfg.Storage.Type)

	// 4. 初始化队列
	switch cfg.Queue.Type {
	case "memory":
		app.queue = queue.NewMemoryQueue(cfg.Queue.BufferSize)
		log.Println("✓ 使用内存队列")
	case "rabbitmq":
		app.queue, err = queue.NewRabbitMQQueue(
			cfg.Queue.RabbitMQ.URL,
			cfg.Queue.RabbitMQ.QueueName,
			cfg.Transcriber.MaxConcurrentJobs,
		)
		if err != nil {
			log.Fatalf("❌ 初始化 RabbitMQ 失败: %v", err)
		}
	default:
		log.Fatalf("❌ 不支持的队列类型: %s", cfg.Queue.Type)
	}

	// 5. 初始化转录引擎与媒体工具
	runner := proc.NewExecRunner()
	prober := media.NewProber(runner)
	normalizer := media.NewNormalizer(runner)
	engine := transcriber.NewEngine(runner, cfg.Transcriber, cfg.Upload.TranscriptDir)
	log.Println("✓ 转录引擎初始化成功")

	// 6. 说话人姓名解析器（可选）
	if cfg.OpenAI.ResolveSpeakers && cfg.OpenAI.APIKey != "" {
		app.resolver = speaker.NewResolver(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		log.Println("✓ 说话人姓名解析器初始化成功")
	} else {
		log.Println("⚠️ 说话人姓名解析未启用")
	}

	// 7. 上传管线
	app.uploader = upload.NewService(
		upload.NewValidator(cfg.Upload.MaxFileSize),
		upload.NewDedup(app.store),
		upload.NewFileStore(cfg.Upload.AudioDir, prober),
		app.store,
		app.queue,
		cfg.Transcriber.ModelSize,
		cfg.Transcriber.Language,
		cfg.Transcriber.Diarization,
	)

	// 8. 启动 Worker 池（并发上限 = max_concurrent_jobs）
	var resolver worker.SpeakerResolver
	if app.resolver != nil {
		resolver = app.resolver
	}
	app.pool = worker.NewPool(app.queue, app.store, engine, normalizer, resolver, cfg.Transcriber.MaxConcurrentJobs)
	app.pool.Start()

	// 9. 启动 HTTP 服务器
	router := app.setupRouter()
	port := fmt.Sprintf(":%d", cfg.Server.Port)

	log.Printf("🚀 meetscribe 服务器启动在 http://localhost:%d", cfg.Server.Port)
	log.Printf("📝 配置信息:")
	log.Printf("   - 并发转录上限: %d", cfg.Transcriber.MaxConcurrentJobs)
	log.Printf("   - 模型: %s / 设备: %s", cfg.Transcriber.ModelSize, cfg.Transcriber.Device)
	log.Printf("   - 单次尝试超时: %d 分钟", cfg.Transcriber.AttemptTimeoutMin)
	log.Printf("   - 存储: %s / 队列: %s", cfg.Storage.Type, cfg.Queue.Type)

	go func() {
		if err := router.Run(port); err != nil {
			log.Fatalf("❌ 服务器启动失败: %v", err)
		}
	}()

	// 10. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 正在关闭服务器...")
	// 先关队列让阻塞中的 Dequeue 返回，Worker 池才能退出
	app.queue.Close()
	app.pool.Stop()
	app.store.Close()
	log.Println("✓ 服务器已关闭")
}

// setupRouter 设置路由
func (app *App) setupRouter() *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	{
		api.GET("/ping", app.handlePing)
		api.POST("/upload", app.handleUpload)
		api.GET("/files", app.handleListFiles)
		api.GET("/files/:file_id", app.handleGetFile)
		api.GET("/jobs", app.handleListJobs)
		api.GET("/jobs/:job_id", app.handleGetJob)
		api.GET("/jobs/:job_id/subtitle", app.handleSubtitle)
		api.POST("/jobs/:job_id/resolve-speakers", app.handleResolveSpeakers)
	}

	return r
}
