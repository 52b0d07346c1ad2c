package queue

import "fmt"

// MemoryQueue 基于 Channel 的内存队列实现
type MemoryQueue struct {
	queue chan *JobMessage
}

// NewMemoryQueue 创建内存队列
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	return &MemoryQueue{
		queue: make(chan *JobMessage, bufferSize),
	}
}

// Enqueue 将任务加入队列
func (mq *MemoryQueue) Enqueue(msg *JobMessage) error {
	select {
	case mq.queue <- msg:
		return nil
	default:
		return fmt.Errorf("队列已满")
	}
}

// Dequeue 从队列取出任务（阻塞等待）
func (mq *MemoryQueue) Dequeue() (*JobMessage, error) {
	msg, ok := <-mq.queue
	if !ok {
		return nil, fmt.Errorf("队列已关闭")
	}
	return msg, nil
}

// Ack 内存队列无需确认
func (mq *MemoryQueue) Ack(msg *JobMessage) error {
	return nil
}

// Nack 内存队列取出即消费，不支持重新入队
func (mq *MemoryQueue) Nack(msg *JobMessage, requeue bool) error {
	return nil
}

// Close 关闭队列
func (mq *MemoryQueue) Close() error {
	close(mq.queue)
	return nil
}
