package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// EnvDataDir 数据目录环境变量名
	EnvDataDir = "RECALL_DATA_DIR"
	// DefaultDataDirName 默认数据目录名
	DefaultDataDirName = ".recall"
)

var (
	dataDirOnce sync.Once
	dataDirPath string
)

// GetDataDir 获取数据根目录
// 优先读取 RECALL_DATA_DIR 环境变量，默认 ~/.recall/
// 所有数据路径都从这里派生，禁止直接拼接 homeDir + ".recall"
func GetDataDir() string {
	dataDirOnce.Do(func() {
		if dir := os.Getenv(EnvDataDir); dir != "" {
			dataDirPath = ExpandPath(dir)
			return
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			// 回退到当前目录
			dataDirPath = DefaultDataDirName
			return
		}
		dataDirPath = filepath.Join(homeDir, DefaultDataDirName)
	})
	return dataDirPath
}

// ResetDataDir 重置数据目录缓存（仅用于测试）
func ResetDataDir() {
	dataDirOnce = sync.Once{}
	dataDirPath = ""
}

// ExpandPath 展开开头的 ~ 为用户主目录
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return homeDir
	}
	return filepath.Join(homeDir, path[2:])
}
