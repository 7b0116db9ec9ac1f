// 版本信息, 发布时通过 -ldflags "-X" 注入构建信息
package version

var (
	Version   = "1.0.0"
	BuildTime string
	GitCommit string
	GoVersion string
)

// GetVersion 获取版本号
func GetVersion() string {
	return Version
}
