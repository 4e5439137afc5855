package config

import "strconv"

// MinioConfig 文档存储 (MinIO)
type MinioConfig struct {
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Endpoint   string `yaml:"endpoint"`
	UseSSL     bool   `yaml:"use_ssl"`
	Region     string `yaml:"region"`
	BucketName string `yaml:"bucket_name"`
}

func (c *MinioConfig) applyEnv() {
	setString(&c.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Region, "MINIO_REGION")
	setString(&c.BucketName, "MINIO_BUCKET_NAME")

	var ssl string
	setString(&ssl, "MINIO_USE_SSL")
	if b, err := strconv.ParseBool(ssl); err == nil {
		c.UseSSL = b
	}
}

// GetMinioConfig returns the MinIO section of the global config.
func GetMinioConfig() *MinioConfig {
	return &Get().Minio
}
