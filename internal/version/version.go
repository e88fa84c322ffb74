package version

// Version 构建时通过 -ldflags "-X github.com/convomemory/recall/internal/version.Version=..." 注入
var Version = "0.1.0"
