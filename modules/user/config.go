package user

// Config holds the user module settings. When an admin email and password
// are configured, a missing admin account is seeded on startup.
type Config struct {
	AdminEmail    string `yaml:"admin_email" env:"ADMIN_EMAIL"`
	AdminName     string `yaml:"admin_name" env:"ADMIN_NAME" default:"Administrator"`
	AdminPassword string `yaml:"admin_password" env:"ADMIN_PASSWORD"`
}
