package queue

import amqp "github.com/rabbitmq/amqp091-go"

// JobMessage 队列消息：只携带任务引用，完整状态以 Registry 为准
type JobMessage struct {
	JobID     string `json:"job_id"`
	FileID    string `json:"file_id"`
	AudioPath string `json:"audio_path"`

	// RabbitMQ 相关（不序列化）
	DeliveryTag uint64         `json:"-"`
	delivery    *amqp.Delivery // 用于 Ack/Nack
}

// Queue 任务队列接口
// 使用接口抽象，单机用内存队列，分布式切换到 RabbitMQ
type Queue interface {
	// Enqueue 将任务加入队列
	Enqueue(msg *JobMessage) error

	// Dequeue 从队列取出任务（阻塞）
	Dequeue() (*JobMessage, error)

	// Ack 确认消息（任务已写入终态）
	Ack(msg *JobMessage) error

	// Nack 拒绝消息（任务无法处理）
	// requeue: 是否重新入队
	Nack(msg *JobMessage, requeue bool) error

	// Close 关闭队列
	Close() error
}
