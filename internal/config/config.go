package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AWS       AWSConfig
	Storage   StorageConfig
	Session   SessionConfig
	Extension ExtensionConfig
}

type AWSConfig struct {
	Region             string
	CredentialDuration int
}

type StorageConfig struct {
	Bucket     string
	Prefix     string
	KeepLatest int
}

type SessionConfig struct {
	BrowserIdentifier string
	TimeoutSeconds    int
}

type ExtensionConfig struct {
	WorkDir string
	RepoURL string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("AWS_REGION", "us-east-1")
		viper.SetDefault("CREDENTIAL_DURATION_SECONDS", 3600)
		viper.SetDefault("S3_BUCKET_NAME", "browser-extension-demo")
		viper.SetDefault("S3_EXTENSION_PREFIX", "extensions/")
		viper.SetDefault("EXTENSION_KEEP_LATEST", 3)
		viper.SetDefault("BROWSER_IDENTIFIER", "aws.browser.v1")
		viper.SetDefault("SESSION_TIMEOUT_SECONDS", 1800)
		viper.SetDefault("EXTENSION_WORK_DIR", "")
		viper.SetDefault("EXTENSION_REPO_URL", "https://github.com/aws-samples/amazon-bedrock-summary-client-for-chrome.git")

		// Read from environment variables
		viper.AutomaticEnv()

		workDir := viper.GetString("EXTENSION_WORK_DIR")
		if workDir != "" {
			ensureDir(workDir)
		}

		instance = &Config{
			AWS: AWSConfig{
				Region:             viper.GetString("AWS_REGION"),
				CredentialDuration: viper.GetInt("CREDENTIAL_DURATION_SECONDS"),
			},
			Storage: StorageConfig{
				Bucket:     viper.GetString("S3_BUCKET_NAME"),
				Prefix:     viper.GetString("S3_EXTENSION_PREFIX"),
				KeepLatest: viper.GetInt("EXTENSION_KEEP_LATEST"),
			},
			Session: SessionConfig{
				BrowserIdentifier: viper.GetString("BROWSER_IDENTIFIER"),
				TimeoutSeconds:    viper.GetInt("SESSION_TIMEOUT_SECONDS"),
			},
			Extension: ExtensionConfig{
				WorkDir: workDir,
				RepoURL: viper.GetString("EXTENSION_REPO_URL"),
			},
		}
	})

	return instance
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
