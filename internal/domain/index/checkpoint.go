// Package index 定义增量索引所需的检查点、向量与存储接口
package index

// Checkpoint 源文件的索引检查点
// 以 (SourceRoot, FilePath) 为键，只有会话完整写入后才会更新
type Checkpoint struct {
	SourceRoot    string // 扫描根目录
	FilePath      string // 源文件路径
	SessionID     string
	ContentHash   string // 文件内容 sha256
	FileSize      int64
	FileMtime     int64 // 纳秒
	MessageCount  int
	EmbeddedCount int
	Status        string
	IndexedAt     int64 // 毫秒
}

// 检查点状态
const (
	StatusIndexed = "indexed"
	StatusEmpty   = "empty" // 文件中没有可索引的消息
)

// QuickMatch 大小与 mtime 都未变化，视为未修改（不读取文件内容）
func (c *Checkpoint) QuickMatch(size, mtime int64) bool {
	return c.FileSize == size && c.FileMtime == mtime
}

// NeedsReindex 内容哈希变化，需要重新索引
func (c *Checkpoint) NeedsReindex(hash string) bool {
	return c.ContentHash != hash
}

// NeedsMtimeUpdate 文件被 touch 过但内容未变，只需刷新 mtime
func (c *Checkpoint) NeedsMtimeUpdate(size, mtime int64, hash string) bool {
	return !c.QuickMatch(size, mtime) && c.ContentHash == hash
}
