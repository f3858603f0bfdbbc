package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string        `mapstructure:"host"`
		DebugHost       string        `mapstructure:"debughost"`
		StaticDir       string        `mapstructure:"staticdir"`
		ReadTimeout     time.Duration `mapstructure:"readtimeout"`
		WriteTimeout    time.Duration `mapstructure:"writetimeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdowntimeout"`

		VerifyTokenDelta  time.Duration `mapstructure:"verifytokendelta"`
		SessionTokenDelta time.Duration `mapstructure:"sessiontokendelta"`
	}

	DatabaseConfig struct {
		Engine        string `mapstructure:"engine"`
		Host          string `mapstructure:"host"`
		Port          string `mapstructure:"port"`
		Name          string `mapstructure:"name"`
		User          string `mapstructure:"user"`
		Password      string `mapstructure:"password"`
		AdminUser     string `mapstructure:"adminuser"`
		AdminPassword string `mapstructure:"adminpassword"`
		DisableTLS    bool   `mapstructure:"disabletls"`
	}

	ExamConfig struct {
		Duration           time.Duration `mapstructure:"duration"`
		ShrinkRatio        float64       `mapstructure:"shrinkratio"`
		ViolationDebounce  time.Duration `mapstructure:"violationdebounce"`
		StatusPollInterval time.Duration `mapstructure:"statuspollinterval"`
	}

	ServicesConfig struct {
		ExecutorURL string        `mapstructure:"executorurl"`
		MonitorURL  string        `mapstructure:"monitorurl"`
		VerifyURL   string        `mapstructure:"verifyurl"`
		Timeout     time.Duration `mapstructure:"timeout"`
	}

	Config struct {
		Debug    bool   `mapstructure:"debug"`
		TestMode bool   `mapstructure:"testmode"`
		Env      string `mapstructure:"env"`
		Build    string `mapstructure:"build"`
		AppName  string `mapstructure:"appname"`

		SecretKey        string `mapstructure:"secretkey"`
		FrontendBaseURL  string `mapstructure:"frontendbaseurl"`
		DefaultFromEmail string `mapstructure:"defaultfromemail"`
		ProctorEmail     string `mapstructure:"proctoremail"`
		SendgridApiKey   string `mapstructure:"sendgridapikey"`
		RollbarToken     string `mapstructure:"rollbartoken"`

		Server   ServerConfig   `mapstructure:"server"`
		Database DatabaseConfig `mapstructure:"database"`
		Exam     ExamConfig     `mapstructure:"exam"`
		Services ServicesConfig `mapstructure:"services"`
	}
)

// Address returns the "host:port" of the database server.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Enabled reports whether a database has been configured. Sessions are kept in memory otherwise.
func (c DatabaseConfig) Enabled() bool {
	return c.Engine != "" && c.Name != ""
}

func (c Config) FromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.DefaultFromEmail}
}

// ProctorAddress returns the address notified about terminated sessions, if any.
func (c Config) ProctorAddress() (mail.Address, bool) {
	if c.ProctorEmail == "" {
		return mail.Address{}, false
	}
	addr, err := mail.ParseAddress(c.ProctorEmail)
	if err != nil {
		return mail.Address{}, false
	}
	return *addr, true
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "EvalEdge")
	v.SetDefault("secretKey", "x9#k2v!mq7p$z4w8^t)e0r6y(u3b5n1j@h&g*f%d")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("proctorEmail", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.staticDir", "")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.verifyTokenDelta", 15*time.Minute)
	v.SetDefault("server.sessionTokenDelta", 2*time.Hour)

	v.SetDefault("database.engine", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("exam.duration", 90*time.Minute)
	v.SetDefault("exam.shrinkRatio", 0.9)
	v.SetDefault("exam.violationDebounce", time.Duration(0))
	v.SetDefault("exam.statusPollInterval", 3*time.Second)

	v.SetDefault("services.executorURL", "http://localhost:5001")
	v.SetDefault("services.monitorURL", "http://localhost:6000")
	v.SetDefault("services.verifyURL", "http://localhost:5000")
	v.SetDefault("services.timeout", 10*time.Second)
}

// NewConfig loads the configuration from the defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the env name, e.g. DEV_EXAM_DURATION=45m.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetDefault("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		log.Fatalf("config.Unmarshal: %v", err)
	}
	return &conf
}

// NewTestConfig returns the configuration used by tests: no database, no external reporting.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	v.Set("env", "TEST")
	v.Set("testMode", true)
	v.Set("secretKey", "secret")

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		panic(fmt.Sprintf("config.Unmarshal: %v", err))
	}
	return &conf
}
