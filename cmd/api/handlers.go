package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/z-wentao/meetscribe/pkg/apperr"
	"github.com/z-wentao/meetscribe/pkg/models"
	"github.com/z-wentao/meetscribe/pkg/registry"
	"github.com/z-wentao/meetscribe/pkg/transcriber"
	"github.com/z-wentao/meetscribe/pkg/upload"
)

// handlePing 健康检查
func (app *App) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"version": "0.1.0",
	})
}

// handleUpload 处理文件上传
// 表单字段：audio（文件）、speaker_count、allow_duplicates、draft
func (app *App) handleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请上传文件"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取上传文件失败"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取上传文件失败"})
		return
	}

	speakerCount, _ := strconv.Atoi(c.PostForm("speaker_count"))

	req := &upload.Request{
		Data:            data,
		OriginalName:    fileHeader.Filename,
		MimeType:        fileHeader.Header.Get("Content-Type"),
		SpeakerCount:    speakerCount,
		AllowDuplicates: parseBool(c.PostForm("allow_duplicates")),
		Draft:           parseBool(c.PostForm("draft")),
	}

	resp, err := app.uploader.HandleUpload(c.Request.Context(), req)
	if err != nil {
		app.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// writeError 错误分类 -> HTTP 状态码
// 校验错误 400，重复冲突 409（带已存在记录），其余 500
func (app *App) writeError(c *gin.Context, err error) {
	if apperr.IsValidation(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if conflict, ok := apperr.AsConflict(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"error":         err.Error(),
			"existing_file": conflict,
		})
		return
	}
	log.Printf("❌ 请求处理失败: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
}

// handleGetJob 获取任务状态
func (app *App) handleGetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := app.store.GetJob(jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// handleListJobs 列出所有任务
func (app *App) handleListJobs(c *gin.Context) {
	jobs, err := app.store.ListJobs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询任务列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// handleGetFile 获取文件记录
func (app *App) handleGetFile(c *gin.Context) {
	fileID := c.Param("file_id")

	file, err := app.store.GetFile(fileID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "文件不存在"})
		return
	}

	c.JSON(http.StatusOK, file)
}

// handleListFiles 列出所有文件
func (app *App) handleListFiles(c *gin.Context) {
	files, err := app.store.ListFiles()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询文件列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"files": files,
		"total": len(files),
	})
}

// handleSubtitle 导出字幕（srt 或 vtt）
func (app *App) handleSubtitle(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := app.store.GetJob(jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在"})
		return
	}
	if job.Status != models.StatusCompleted || len(job.Segments) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "任务尚未完成，没有可导出的字幕"})
		return
	}

	format := c.DefaultQuery("format", "srt")
	switch format {
	case "srt":
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.srt", jobID))
		c.Header("Content-Type", "application/x-subrip")
		if err := transcriber.WriteSRT(c.Writer, job.Segments); err != nil {
			log.Printf("❌ 生成 SRT 失败: %v", err)
		}
	case "vtt":
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.vtt", jobID))
		c.Header("Content-Type", "text/vtt")
		if err := transcriber.WriteVTT(c.Writer, job.Segments); err != nil {
			log.Printf("❌ 生成 VTT 失败: %v", err)
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "不支持的字幕格式: " + format})
	}
}

// handleResolveSpeakers 重新解析说话人姓名
// 失败可恢复：保留原始标签并返回提示，不影响任务状态
func (app *App) handleResolveSpeakers(c *gin.Context) {
	jobID := c.Param("job_id")

	if app.resolver == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "说话人姓名解析未启用"})
		return
	}

	job, err := app.store.GetJob(jobID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询任务失败"})
		return
	}

	if job.Status != models.StatusCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "任务尚未完成，无法解析说话人"})
		return
	}
	if !models.HasSpeakerLabels(job.Segments) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "转录结果没有说话人标签"})
		return
	}

	resolved, err := app.resolver.Resolve(c.Request.Context(), job.Segments)
	if err != nil {
		// AI 失败不是任务失败
		log.Printf("⚠️ 说话人姓名解析失败: %v", err)
		c.JSON(http.StatusOK, gin.H{
			"job_id":   jobID,
			"resolved": false,
			"message":  "姓名解析失败，保留原始标签",
		})
		return
	}

	if err := app.store.UpdateJob(jobID, func(j *models.TranscriptionJob) {
		j.Segments = resolved
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存解析结果失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":   jobID,
		"resolved": true,
		"segments": resolved,
	})
}

func parseBool(s string) bool {
	return s == "true" || s == "1" || s == "yes"
}
