package config

import (
	"path/filepath"
	"time"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Vector    VectorConfig    `yaml:"vector" mapstructure:"vector"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Files     FilesConfig     `yaml:"files" mapstructure:"files"`
	Schedule  ScheduleConfig  `yaml:"schedule" mapstructure:"schedule"`
	Watcher   WatcherConfig   `yaml:"watcher" mapstructure:"watcher"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort string `yaml:"http_port" mapstructure:"http_port"` // 固定端口，同时用于单例锁
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Path 数据库文件路径，留空为 <data dir>/recall.db
	Path string `yaml:"path" mapstructure:"path"`
}

// SourcesConfig 会话来源目录
type SourcesConfig struct {
	// ArchiveDir 归档会话目录（已结束的会话）
	ArchiveDir string `yaml:"archive_dir" mapstructure:"archive_dir"`
	// ActiveDir 进行中的会话目录，文件可能仍在追加
	ActiveDir string `yaml:"active_dir" mapstructure:"active_dir"`
	// Extra 额外的归档目录
	Extra []string `yaml:"extra" mapstructure:"extra"`
}

// EmbeddingConfig Embedding 服务配置（OpenAI 兼容接口）
type EmbeddingConfig struct {
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey            string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Model             string        `yaml:"model" mapstructure:"model"`
	BatchSize         int           `yaml:"batch_size" mapstructure:"batch_size"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	MinContentLength  int           `yaml:"min_content_length" mapstructure:"min_content_length"`
	MaxInputTokens    int           `yaml:"max_input_tokens" mapstructure:"max_input_tokens"`
}

// Enabled 是否配置了凭证
func (c *EmbeddingConfig) Enabled() bool {
	return c.APIKey != ""
}

// VectorConfig 向量检索后端配置
type VectorConfig struct {
	// Backend sqlite（默认，暴力余弦）| chromem | qdrant
	Backend string        `yaml:"backend" mapstructure:"backend"`
	Chromem ChromemConfig `yaml:"chromem" mapstructure:"chromem"`
	Qdrant  QdrantConfig  `yaml:"qdrant" mapstructure:"qdrant"`
}

// ChromemConfig 嵌入式向量库配置
type ChromemConfig struct {
	Path       string `yaml:"path" mapstructure:"path"`
	Collection string `yaml:"collection" mapstructure:"collection"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// QdrantConfig Qdrant 配置
type QdrantConfig struct {
	Host       string `yaml:"host" mapstructure:"host"`
	Port       int    `yaml:"port" mapstructure:"port"`
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	UseTLS     bool   `yaml:"use_tls" mapstructure:"use_tls"`
	Collection string `yaml:"collection" mapstructure:"collection"`
	Dimension  uint64 `yaml:"dimension" mapstructure:"dimension"`
}

// SearchConfig 查询配置
type SearchConfig struct {
	DefaultLimit     int     `yaml:"default_limit" mapstructure:"default_limit"`
	MaxLimit         int     `yaml:"max_limit" mapstructure:"max_limit"`
	SemanticMinScore float64 `yaml:"semantic_min_score" mapstructure:"semantic_min_score"`
	SnippetLength    int     `yaml:"snippet_length" mapstructure:"snippet_length"`
}

// FileRoot 文件检索根目录
type FileRoot struct {
	Agent string `yaml:"agent" mapstructure:"agent"`
	Path  string `yaml:"path" mapstructure:"path"`
}

// FilesConfig 文件检索配置
type FilesConfig struct {
	Roots     []FileRoot `yaml:"roots" mapstructure:"roots"`
	Patterns  []string   `yaml:"patterns" mapstructure:"patterns"`
	SkipDirs  []string   `yaml:"skip_dirs" mapstructure:"skip_dirs"`
	CacheSize int        `yaml:"cache_size" mapstructure:"cache_size"`
}

// ScheduleJob 定时索引任务
type ScheduleJob struct {
	Name          string `yaml:"name" mapstructure:"name"`
	Cron          string `yaml:"cron" mapstructure:"cron"`
	Incremental   bool   `yaml:"incremental" mapstructure:"incremental"`
	IncludeActive bool   `yaml:"include_active" mapstructure:"include_active"`
	Embeddings    bool   `yaml:"embeddings" mapstructure:"embeddings"`
}

// ScheduleConfig 定时任务配置
type ScheduleConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Jobs    []ScheduleJob `yaml:"jobs" mapstructure:"jobs"`
}

// WatcherConfig 活跃会话目录监听配置
type WatcherConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// WebSocketConfig WebSocket 配置
type WebSocketConfig struct {
	ReadBufferSize  int `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
}

// NewConfig 创建配置（默认值）
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: ":8765",
		},
		Sources: SourcesConfig{
			ArchiveDir: "~/.openclaw/agents-archive",
			ActiveDir:  "~/.openclaw/agents",
		},
		Embedding: EmbeddingConfig{
			BaseURL:           "https://api.openai.com/v1",
			Model:             "text-embedding-3-small",
			BatchSize:         100,
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			RetryDelay:        time.Second,
			RequestsPerMinute: 500,
			MinContentLength:  20,
			MaxInputTokens:    8000,
		},
		Vector: VectorConfig{
			Backend: "sqlite",
			Chromem: ChromemConfig{
				Collection: "recall_messages",
				Compress:   true,
			},
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "recall_messages",
				Dimension:  1536,
			},
		},
		Search: SearchConfig{
			DefaultLimit:     10,
			MaxLimit:         100,
			SemanticMinScore: 0.2,
			SnippetLength:    300,
		},
		Files: FilesConfig{
			Patterns:  []string{"*.md", "*.txt"},
			SkipDirs:  []string{".git", "node_modules", "__pycache__", ".venv", "venv", "videos", "tmp"},
			CacheSize: 512,
		},
		Schedule: ScheduleConfig{
			Enabled: true,
			Jobs: []ScheduleJob{
				{Name: "light", Cron: "*/15 * * * *", Incremental: true, IncludeActive: true},
				{Name: "embeddings", Cron: "7 * * * *", Incremental: true, IncludeActive: true, Embeddings: true},
			},
		},
		Watcher: WatcherConfig{
			Enabled:  true,
			Debounce: 2 * time.Second,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// DBPath 数据库文件路径
func (c *Config) DBPath() string {
	if c.Database.Path != "" {
		return ExpandPath(c.Database.Path)
	}
	return filepath.Join(GetDataDir(), "recall.db")
}

// ChromemPath 嵌入式向量库目录
func (c *Config) ChromemPath() string {
	if c.Vector.Chromem.Path != "" {
		return ExpandPath(c.Vector.Chromem.Path)
	}
	return filepath.Join(GetDataDir(), "vectors")
}

// SourceDirs 归档目录列表（不含活跃目录）
func (c *Config) SourceDirs() []string {
	dirs := make([]string, 0, 1+len(c.Sources.Extra))
	if c.Sources.ArchiveDir != "" {
		dirs = append(dirs, ExpandPath(c.Sources.ArchiveDir))
	}
	for _, d := range c.Sources.Extra {
		if d != "" {
			dirs = append(dirs, ExpandPath(d))
		}
	}
	return dirs
}

// ActiveDir 活跃会话目录
func (c *Config) ActiveDir() string {
	return ExpandPath(c.Sources.ActiveDir)
}

// NewDatabaseConfig 创建数据库配置
func NewDatabaseConfig(cfg *Config) *DatabaseConfig {
	return &cfg.Database
}

// NewServerConfig 创建服务器配置
func NewServerConfig(cfg *Config) *ServerConfig {
	return &cfg.Server
}

// NewEmbeddingConfig 创建 Embedding 配置
func NewEmbeddingConfig(cfg *Config) *EmbeddingConfig {
	return &cfg.Embedding
}

// NewSearchConfig 创建查询配置
func NewSearchConfig(cfg *Config) *SearchConfig {
	return &cfg.Search
}

// NewFilesConfig 创建文件检索配置
func NewFilesConfig(cfg *Config) *FilesConfig {
	return &cfg.Files
}

// NewWebSocketConfig 创建 WebSocket 配置
func NewWebSocketConfig(cfg *Config) *WebSocketConfig {
	return &cfg.WebSocket
}
