package engine

type ApplicationConfig struct {
	// The application name used in logs.
	Name string
	// Path of the .rtscene file to build.
	ScenePath string
	// Directory watched for scene changes. Defaults to the directory of ScenePath.
	AssetsDir string
	// Log level, overriding the one of the scene file when set.
	LogLevel string
	// Rebuild the scene whenever its file changes. The scene file can enable it too.
	Watch bool
}
