package model

// Frame 从影片中抽取的单帧画面。
// 帧只在一次分析调用中使用，任务结束后随临时目录一起删除。
type Frame struct {
	Index            int     `json:"index"`             // 在选出序列中的位置（0 起）
	TimestampSeconds float64 `json:"timestamp_seconds"` // 对应的影片时间点
	Path             string  `json:"path"`              // 临时目录内的文件路径
	Data             []byte  `json:"-"`                 // JPEG 字节
}
