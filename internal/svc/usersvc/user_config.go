package usersvc

// SeedConfig describes the accounts created on bootstrap.
type SeedConfig struct {
	Enabled bool `env:"ENABLED" default:"true"`

	AdminUsername string `env:"ADMIN_USERNAME" default:"test"`
	AdminPassword string `env:"ADMIN_PASSWORD" default:"test"`
	UserUsername  string `env:"USER_USERNAME" default:"test2"`
	UserPassword  string `env:"USER_PASSWORD" default:"test"`
}

// Seed is an account that Bootstrap makes sure exists.
type Seed struct {
	Username string
	Password string
	Roles    []string
}

// Seeds returns the configured seed accounts: an admin that is also a
// regular user, and a plain user. None when seeding is disabled.
func (cfg SeedConfig) Seeds() []Seed {
	if !cfg.Enabled {
		return nil
	}

	return []Seed{
		{Username: cfg.AdminUsername, Password: cfg.AdminPassword, Roles: []string{"admin", "user"}},
		{Username: cfg.UserUsername, Password: cfg.UserPassword, Roles: []string{"user"}},
	}
}
