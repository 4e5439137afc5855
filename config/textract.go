package config

// TextractConfig OCR (AWS Textract)
type TextractConfig struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// MaxImageSide downscales larger images before upload; 0 disables it.
	MaxImageSide int `yaml:"max_image_side"`
}

func (c *TextractConfig) applyEnv() {
	setString(&c.Region, "AWS_REGION")
	setString(&c.Endpoint, "AWS_TEXTRACT_ENDPOINT")
	setString(&c.AccessKey, "AWS_ACCESS_KEY")
	setString(&c.SecretKey, "AWS_SECRET_KEY")
	_ = setInt(&c.MaxImageSide, "AWS_TEXTRACT_MAX_IMAGE_SIDE")
}

// GetTextractConfig returns the Textract section of the global config.
func GetTextractConfig() *TextractConfig {
	return &Get().Textract
}

// HasStaticCredentials is false when the default AWS credential chain applies.
func (c *TextractConfig) HasStaticCredentials() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}
