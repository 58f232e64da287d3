// 包 version：构建信息，发布时通过 -ldflags "-X" 注入
package version

var (
	Version = "1.0.0"
	Commit  = "dev"
)
