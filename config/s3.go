package config

// S3Config 文档存储 (AWS S3)
type S3Config struct {
	BucketName string `yaml:"bucket_name"`
	Region     string `yaml:"region"`
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
}

func (c *S3Config) applyEnv() {
	setString(&c.BucketName, "AWS_S3_BUCKET_NAME")
	setString(&c.Region, "AWS_REGION")
	setString(&c.Endpoint, "AWS_ENDPOINT")
	setString(&c.AccessKey, "AWS_ACCESS_KEY")
	setString(&c.SecretKey, "AWS_SECRET_KEY")
}

// GetS3Config returns the S3 section of the global config.
func GetS3Config() *S3Config {
	return &Get().S3
}

// HasStaticCredentials is false when the default AWS credential chain applies.
func (c *S3Config) HasStaticCredentials() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}
