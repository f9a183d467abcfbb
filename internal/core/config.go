package core

import (
	"errors"
	"fmt"
	"log" // Usado para logs iniciais antes que o logger da aplicação esteja configurado
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultSecretKey = "default_secret_key_please_change_this_in_production_12345"

// Config struct para armazenar todas as configurações da aplicação
type Config struct {
	AppName    string
	AppVersion string
	AppDebug   bool
	SecretKey  string

	// Database
	DBEngine   string
	DBName     string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// Logging
	LogDir         string
	LogLevel       string
	LogMaxBytes    int
	LogBackupCount int
	LogToConsole   bool

	// HTTP
	HTTPAddr string

	// Sessão
	SessionTimeout         time.Duration
	SessionCleanupInterval time.Duration
	SessionCleanupEnabled  bool

	// Realtime (change feed)
	RealtimeChannel          string
	RealtimeMaxRetries       int
	RealtimeBaseDelay        time.Duration
	RealtimeMaxDelay         time.Duration
	RealtimeFetchTimeout     time.Duration
	RealtimeSubscriberBuffer int

	// Armazenamento de arquivos
	StorageDir       string
	StoragePublicURL string

	// Integrações
	WebhookURL          string
	WebhookTimeout      time.Duration
	CEPBaseURL          string
	CEPTimeout          time.Duration
	WhatsAppAPIURL      string
	WhatsAppAPIToken    string
	WhatsAppTemplates   string
	WhatsAppConcurrency int

	// Export
	ExportDir string
}

// LoadConfig carrega as configurações do arquivo .env especificado ou encontrado na árvore de diretórios.
func LoadConfig(envPath string) (*Config, error) {
	foundEnvPath, err := findEnvFile(envPath)
	if err != nil {
		log.Printf("Aviso: Arquivo .env em '%s' não encontrado ou inacessível: %v. Usando variáveis de ambiente existentes.", envPath, err)
	} else {
		log.Printf("Carregando configurações de: %s", foundEnvPath)
		if err := godotenv.Load(foundEnvPath); err != nil {
			log.Printf("Aviso: Erro ao carregar arquivo .env de '%s': %v. Usando valores padrão ou variáveis de ambiente existentes.", foundEnvPath, err)
		}
	}

	cfg := &Config{}

	cfg.AppName = getEnv("APP_NAME", "Gabinete GO")
	cfg.AppVersion = getEnv("APP_VERSION", "1.0.0-go")
	cfg.AppDebug = getEnvAsBool("APP_DEBUG", false)
	cfg.SecretKey = getEnv("SECRET_KEY", defaultSecretKey)

	cfg.DBEngine = getEnv("APP_DB_ENGINE", "sqlite")
	cfg.DBName = getEnv("APP_DB_NAME", "gabinete_go.db")
	cfg.DBHost = getEnv("APP_DB_HOST", "localhost")
	cfg.DBPort = getEnvAsInt("APP_DB_PORT", 5432)
	cfg.DBUser = getEnv("APP_DB_USER", "user")
	cfg.DBPassword = getEnv("APP_DB_PASSWORD", "password")
	cfg.DBSSLMode = getEnv("APP_DB_SSLMODE", "disable")

	cfg.LogDir = getEnv("APP_LOG_DIR", "./app_logs")
	cfg.LogLevel = strings.ToUpper(getEnv("APP_LOG_LEVEL", "INFO"))
	cfg.LogMaxBytes = getEnvAsInt("APP_LOG_MAX_BYTES", 5*1024*1024) // 5MB
	cfg.LogBackupCount = getEnvAsInt("APP_LOG_BACKUP_COUNT", 7)
	cfg.LogToConsole = getEnvAsBool("APP_LOG_TO_CONSOLE", true)

	cfg.HTTPAddr = getEnv("APP_HTTP_ADDR", ":8080")

	cfg.SessionTimeout = getEnvAsDuration("APP_SESSION_TIMEOUT", 3600)                 // 1 hora
	cfg.SessionCleanupInterval = getEnvAsDuration("APP_SESSION_CLEANUP_INTERVAL", 600) // 10 minutos
	cfg.SessionCleanupEnabled = getEnvAsBool("APP_SESSION_CLEANUP_ENABLED", true)

	cfg.RealtimeChannel = getEnv("APP_REALTIME_CHANNEL", "gabinete_changes")
	cfg.RealtimeMaxRetries = getEnvAsInt("APP_REALTIME_MAX_RETRIES", 3)
	cfg.RealtimeBaseDelay = getEnvAsMillis("APP_REALTIME_BASE_DELAY_MS", 500)
	cfg.RealtimeMaxDelay = getEnvAsMillis("APP_REALTIME_MAX_DELAY_MS", 10000)
	cfg.RealtimeFetchTimeout = getEnvAsDuration("APP_REALTIME_FETCH_TIMEOUT", 30)
	cfg.RealtimeSubscriberBuffer = getEnvAsInt("APP_REALTIME_SUBSCRIBER_BUFFER", 256)

	cfg.StorageDir = getEnv("APP_STORAGE_DIR", "./app_storage")
	cfg.StoragePublicURL = getEnv("APP_STORAGE_PUBLIC_URL", "http://localhost:8080/files")

	cfg.WebhookURL = getEnv("APP_WEBHOOK_URL", "")
	cfg.WebhookTimeout = getEnvAsDuration("APP_WEBHOOK_TIMEOUT", 10)
	cfg.CEPBaseURL = getEnv("APP_CEP_BASE_URL", "https://viacep.com.br/ws")
	cfg.CEPTimeout = getEnvAsDuration("APP_CEP_TIMEOUT", 5)
	cfg.WhatsAppAPIURL = getEnv("APP_WHATSAPP_API_URL", "")
	cfg.WhatsAppAPIToken = getEnv("APP_WHATSAPP_API_TOKEN", "")
	cfg.WhatsAppTemplates = getEnv("APP_WHATSAPP_TEMPLATES", "./whatsapp_templates.yaml")
	cfg.WhatsAppConcurrency = getEnvAsInt("APP_WHATSAPP_CONCURRENCY", 4)

	cfg.ExportDir = getEnv("APP_EXPORT_DIR", "./app_exports")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// LogDir é crítico
	if err := ensureDir(cfg.LogDir, true); err != nil {
		return nil, fmt.Errorf("falha ao criar diretório de log essencial '%s': %w", cfg.LogDir, err)
	}
	if cfg.DBEngine == "sqlite" {
		sqliteDir := filepath.Dir(cfg.DBName)
		if sqliteDir != "." && sqliteDir != string(filepath.Separator) {
			if err := ensureDir(sqliteDir, true); err != nil {
				return nil, fmt.Errorf("falha ao criar diretório para banco de dados SQLite '%s': %w", sqliteDir, err)
			}
		}
	}
	if err := ensureDir(cfg.StorageDir, true); err != nil {
		return nil, fmt.Errorf("falha ao criar diretório de armazenamento '%s': %w", cfg.StorageDir, err)
	}
	_ = ensureDir(cfg.ExportDir, false)

	log.Println("Configurações carregadas e validadas.")
	return cfg, nil
}

// Validate verifica combinações de configuração que impedem a inicialização.
func (cfg *Config) Validate() error {
	if !cfg.AppDebug && cfg.SecretKey == defaultSecretKey {
		return fmt.Errorf("%w: SECRET_KEY não pode ser o valor padrão em ambiente de não depuração (AppDebug=false)", ErrConfiguration)
	}
	switch cfg.DBEngine {
	case "sqlite", "postgresql":
	default:
		return fmt.Errorf("%w: motor de banco de dados não suportado: %s", ErrConfiguration, cfg.DBEngine)
	}
	if cfg.RealtimeMaxRetries < 0 {
		return fmt.Errorf("%w: APP_REALTIME_MAX_RETRIES não pode ser negativo", ErrConfiguration)
	}
	if cfg.RealtimeMaxDelay < cfg.RealtimeBaseDelay {
		return fmt.Errorf("%w: APP_REALTIME_MAX_DELAY_MS menor que APP_REALTIME_BASE_DELAY_MS", ErrConfiguration)
	}
	if cfg.WhatsAppConcurrency < 1 {
		cfg.WhatsAppConcurrency = 1
	}
	return nil
}

// PostgresDSN monta a string de conexão usada pelo GORM e pelo listener de notificações.
func (cfg *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
}

// findEnvFile tenta localizar o arquivo .env.
// Primeiro no path fornecido, depois subindo na árvore de diretórios a partir do CWD.
func findEnvFile(envPath string) (string, error) {
	if _, err := os.Stat(envPath); err == nil {
		absPath, _ := filepath.Abs(envPath)
		return absPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("não foi possível obter o diretório de trabalho atual: %w", err)
	}

	for i := 0; i < 5; i++ {
		tryPath := filepath.Join(cwd, ".env")
		if _, err := os.Stat(tryPath); err == nil {
			return tryPath, nil
		}
		parent := filepath.Dir(cwd)
		if parent == cwd { // Chegou à raiz
			break
		}
		cwd = parent
	}
	return "", fmt.Errorf("arquivo .env não encontrado no caminho '%s' ou nos diretórios pais", envPath)
}

// ensureDir garante que um diretório exista, criando-o se necessário.
// Se 'critical' for true, retorna erro em caso de falha. Caso contrário, apenas loga um aviso.
func ensureDir(dirPath string, critical bool) error {
	absPath, err := filepath.Abs(dirPath)
	if err != nil {
		msg := fmt.Sprintf("Não foi possível resolver o caminho absoluto para '%s': %v", dirPath, err)
		if critical {
			return errors.New(msg)
		}
		log.Println("AVISO:", msg)
		return nil
	}

	if err := os.MkdirAll(absPath, os.ModePerm); err != nil {
		msg := fmt.Sprintf("Não foi possível criar o diretório '%s': %v", absPath, err)
		if critical {
			return errors.New(msg)
		}
		log.Println("AVISO:", msg)
	}
	return nil
}

// getEnv recupera o valor de uma variável de ambiente ou retorna um fallback.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt recupera uma variável de ambiente como int ou retorna um fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsBool recupera uma variável de ambiente como bool ou retorna um fallback.
func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration recupera uma variável de ambiente como time.Duration em segundos, ou retorna um fallback.
func getEnvAsDuration(key string, fallbackSeconds int) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(value) * time.Second
	}
	return time.Duration(fallbackSeconds) * time.Second
}

func getEnvAsMillis(key string, fallbackMillis int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallbackMillis)) * time.Millisecond
}
