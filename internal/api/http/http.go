package http

type Config struct {
	Port        uint   `mapstructure:"port"`
	AdminAPIKey string `mapstructure:"admin_api_key"`
	CertFile    string `mapstructure:"cert_file"`
	KeyFile     string `mapstructure:"key_file"`
}

// TLSEnabled reports whether the API should serve HTTPS.
func (c Config) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}
