package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/z-wentao/meetscribe/pkg/models"
	"github.com/z-wentao/meetscribe/pkg/queue"
	"github.com/z-wentao/meetscribe/pkg/registry"
	"github.com/z-wentao/meetscribe/pkg/transcriber"
)

// Transcriber 转录引擎接口（测试时注入假实现）
type Transcriber interface {
	Transcribe(ctx context.Context, req *transcriber.Request) (*transcriber.Output, error)
}

// Normalizer 音频归一化接口
type Normalizer interface {
	Normalize(ctx context.Context, audioPath string) string
}

// SpeakerResolver 说话人姓名解析接口
type SpeakerResolver interface {
	Resolve(ctx context.Context, segments []models.TranscriptSegment) ([]models.TranscriptSegment, error)
}

// Pool 转录 Worker 池
// 池大小即并发转录上限：只有池内 Worker 会消费队列，
// 同时运行的引擎子进程数不会超过 size
type Pool struct {
	queue      queue.Queue
	store      registry.Store
	engine     Transcriber
	normalizer Normalizer
	resolver   SpeakerResolver // 可为 nil（未配置 OpenAI）
	size       int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool 创建 Worker 池
func NewPool(
	q queue.Queue,
	store registry.Store,
	engine Transcriber,
	normalizer Normalizer,
	resolver SpeakerResolver,
	size int,
) *Pool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		queue:      q,
		store:      store,
		engine:     engine,
		normalizer: normalizer,
		resolver:   resolver,
		size:       size,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start 启动所有 Worker
func (p *Pool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	log.Printf("✓ Worker 池已启动 (并发上限: %d)", p.size)
}

// Stop 停止 Worker 池并等待在途任务结束
func (p *Pool) Stop() {
	log.Println("正在停止 Worker 池...")
	p.cancel()
	p.wg.Wait()
	log.Println("✓ Worker 池已停止")
}

// run Worker 主循环
func (p *Pool) run(id int) {
	defer p.wg.Done()
	log.Printf("Worker #%d 已启动，等待任务...", id)

	for {
		select {
		case <-p.ctx.Done():
			log.Printf("Worker #%d 已停止", id)
			return
		default:
		}

		// 从队列获取任务（阻塞）
		msg, err := p.queue.Dequeue()
		if err != nil {
			select {
			case <-p.ctx.Done():
				log.Printf("Worker #%d 已停止", id)
				return
			default:
			}
			log.Printf("从队列获取任务失败: %v", err)
			time.Sleep(1 * time.Second)
			continue
		}

		p.ProcessJob(msg)
	}
}

// ProcessJob 处理单个任务
// 状态严格按 pending→processing→{completed,failed} 推进，终态只写一次；
// 任何错误都收敛到任务的 error 字段，不向外抛
func (p *Pool) ProcessJob(msg *queue.JobMessage) {
	job, err := p.store.GetJob(msg.JobID)
	if err != nil {
		// 任务记录不在了，消息作废
		log.Printf("⚠️ 任务不存在，丢弃消息: %s", msg.JobID)
		p.queue.Nack(msg, false)
		return
	}
	if job.Status.IsTerminal() {
		// 重复投递的消息，终态不回退
		log.Printf("⚠️ 任务已是终态 (%s)，忽略重复消息: %s", job.Status, msg.JobID)
		p.queue.Ack(msg)
		return
	}

	log.Printf("📝 开始处理任务: %s", msg.JobID)

	// 1. 标记 processing
	p.setStatus(msg, models.StatusProcessing, func(j *models.TranscriptionJob) {
		j.Progress = 0
		j.Error = ""
		j.StartedAt = time.Now()
	})

	// 2. 归一化（尽力而为，失败时用原始文件）
	audioPath := msg.AudioPath
	if p.normalizer != nil {
		audioPath = p.normalizer.Normalize(p.ctx, audioPath)
	}

	// 3. 调用引擎（设备降级和超时都在引擎内部处理）
	file, _ := p.store.GetFile(msg.FileID)
	fileDuration := 0
	if file != nil {
		fileDuration = file.Duration
	}

	startTime := time.Now()
	output, err := p.engine.Transcribe(p.ctx, &transcriber.Request{
		JobID:        job.JobID,
		AudioPath:    audioPath,
		ModelSize:    job.ModelSize,
		Language:     job.Language,
		Diarization:  job.Diarization,
		SpeakerCount: job.SpeakerCount,
		FileDuration: fileDuration,
	})

	if err != nil {
		// 4a. 失败终态：只留可读的错误信息，不保留部分片段
		log.Printf("❌ 任务 %s 失败: %v", msg.JobID, err)
		p.setStatus(msg, models.StatusFailed, func(j *models.TranscriptionJob) {
			j.Error = err.Error()
			j.Segments = nil
			j.CompletedAt = time.Now()
		})
		p.queue.Ack(msg)
		return
	}

	// 4b. 成功终态
	segments := output.Segments

	// 5. 说话人姓名解析（可恢复：失败保留原始标签）
	if p.resolver != nil && models.HasSpeakerLabels(segments) {
		resolved, err := p.resolver.Resolve(p.ctx, segments)
		if err != nil {
			log.Printf("⚠️ 说话人姓名解析失败，保留原始标签: %v", err)
		} else {
			segments = resolved
		}
	}

	p.setStatus(msg, models.StatusCompleted, func(j *models.TranscriptionJob) {
		j.Segments = segments
		j.Progress = 100
		j.Error = ""
		j.CompletedAt = time.Now()
	})
	p.queue.Ack(msg)

	log.Printf("🎉 任务 %s 完成！片段数: %d，耗时: %.1f 秒",
		msg.JobID, len(segments), time.Since(startTime).Seconds())
}

// setStatus 写任务状态，同时把状态镜像到文件记录
func (p *Pool) setStatus(msg *queue.JobMessage, status models.JobStatus, updateFn func(*models.TranscriptionJob)) {
	if err := p.store.UpdateJob(msg.JobID, func(j *models.TranscriptionJob) {
		j.Status = status
		if updateFn != nil {
			updateFn(j)
		}
	}); err != nil {
		log.Printf("⚠️ 更新任务状态失败 (%s -> %s): %v", msg.JobID, status, err)
		return
	}

	if err := p.store.UpdateFile(msg.FileID, func(f *models.AudioFile) {
		f.TranscriptionStatus = status
	}); err != nil {
		log.Printf("⚠️ 更新文件状态失败 (%s): %v", msg.FileID, err)
	}
}
