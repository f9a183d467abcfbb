package data

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Dukorsa/APP_GABINETE_GO/internal/core"
	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
)

// InitializeDB abre a conexão com o banco configurado e executa as migrações.
func InitializeDB(cfg *core.Config) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, cfg); err != nil {
		_ = CloseDB(db)
		return nil, err
	}
	return db, nil
}

// Open estabelece a conexão (GORM + pool) sem migrar o esquema.
func Open(cfg *core.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	appLogger.Infof("Inicializando conexão com banco de dados: %s", cfg.DBEngine)

	gormLogLevel := gormlogger.Silent
	if cfg.AppDebug {
		gormLogLevel = gormlogger.Info // Loga todas as queries SQL em modo debug
	}
	newGormLogger := gormlogger.New(
		appLogger.WithFields(logrus.Fields{"component": "gorm"}),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gormConfig := &gorm.Config{
		Logger:         newGormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	switch cfg.DBEngine {
	case "postgresql":
		dialector = postgres.Open(cfg.PostgresDSN())
		appLogger.Infof("Conectando ao PostgreSQL: host=%s dbname=%s user=%s port=%d", cfg.DBHost, cfg.DBName, cfg.DBUser, cfg.DBPort)
	case "sqlite":
		// O diretório já foi criado por LoadConfig. FKs precisam ser habilitadas por conexão.
		dialector = sqlite.Open(cfg.DBName + "?_foreign_keys=on")
		appLogger.Infof("Usando banco de dados SQLite: %s", cfg.DBName)
	default:
		return nil, fmt.Errorf("%w: motor de banco de dados não suportado: %s", core.ErrConfiguration, cfg.DBEngine)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		appLogger.Errorf("Falha ao conectar ao banco de dados %s: %v", cfg.DBEngine, err)
		return nil, fmt.Errorf("falha ao abrir conexão com %s: %w", cfg.DBEngine, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		appLogger.Errorf("Falha ao obter instância *sql.DB do GORM: %v", err)
		return nil, fmt.Errorf("falha ao configurar pool de conexões: %w", err)
	}
	if cfg.DBEngine == "sqlite" {
		// Uma única conexão evita "database is locked" com escritas concorrentes.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	appLogger.Info("Conexão com banco de dados estabelecida.")
	return db, nil
}

// allModels lista os modelos na ordem de criação (referenciados antes de quem referencia).
func allModels() []interface{} {
	return []interface{}{
		&models.Empresa{},
		&models.Usuario{},
		&models.TipoCategoria{},
		&models.Categoria{},
		&models.Eleitor{},
		&models.Atendimento{},
		&models.Oficio{},
		&models.WhatsAppInstancia{},
		&models.AuditLogEntry{},
	}
}

// Migrate executa o AutoMigrate e, no PostgreSQL, instala os triggers do feed de alterações.
func Migrate(db *gorm.DB, cfg *core.Config) error {
	if db == nil {
		return errors.New("instância de banco de dados é nil, não é possível migrar")
	}
	appLogger.Info("Executando migrações automáticas do GORM...")
	if err := db.AutoMigrate(allModels()...); err != nil {
		appLogger.Errorf("Falha durante AutoMigrate: %v", err)
		return fmt.Errorf("falha na migração do esquema do banco de dados: %w", err)
	}

	if cfg.DBEngine == "postgresql" {
		if err := InstallNotifyTriggers(db, cfg.RealtimeChannel, models.RealtimeTables); err != nil {
			return err
		}
	}
	appLogger.Info("Migrações automáticas do GORM concluídas.")
	return nil
}

// --- Feed de alterações (PostgreSQL) ---

var channelNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// notifyFunctionSQL publica cada alteração de linha como JSON no canal passado
// como argumento do trigger. Payloads acima do limite do NOTIFY (8000 bytes)
// seguem só com id/empresa_id e "truncated": true; o ouvinte recarrega a lista.
const notifyFunctionSQL = `
CREATE OR REPLACE FUNCTION gabinete_notify_change() RETURNS trigger AS $$
DECLARE
	payload text;
	rec record;
BEGIN
	IF TG_OP = 'DELETE' THEN rec := OLD; ELSE rec := NEW; END IF;
	payload := json_build_object(
		'table', TG_TABLE_NAME,
		'type', TG_OP,
		'new', CASE WHEN TG_OP = 'DELETE' THEN NULL ELSE row_to_json(NEW) END,
		'old', CASE WHEN TG_OP = 'INSERT' THEN NULL ELSE row_to_json(OLD) END,
		'commit_timestamp', now()
	)::text;
	IF octet_length(payload) > 7900 THEN
		payload := json_build_object(
			'table', TG_TABLE_NAME,
			'type', TG_OP,
			'new', CASE WHEN TG_OP = 'DELETE' THEN NULL ELSE json_build_object('id', rec.id, 'empresa_id', rec.empresa_id) END,
			'old', json_build_object('id', rec.id, 'empresa_id', rec.empresa_id),
			'commit_timestamp', now(),
			'truncated', true
		)::text;
	END IF;
	PERFORM pg_notify(TG_ARGV[0], payload);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;`

// InstallNotifyTriggers cria (ou recria) a função de notificação e um trigger por tabela.
func InstallNotifyTriggers(db *gorm.DB, channel string, tables []string) error {
	if !channelNameRegex.MatchString(channel) {
		return fmt.Errorf("%w: nome de canal de notificação inválido: %q", core.ErrConfiguration, channel)
	}
	return WithTransaction(db, func(tx *gorm.DB) error {
		if err := tx.Exec(notifyFunctionSQL).Error; err != nil {
			return fmt.Errorf("falha ao criar função de notificação: %w", err)
		}
		for _, table := range tables {
			trigger := "gabinete_notify_" + table
			stmts := []string{
				fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, trigger, table),
				fmt.Sprintf(`CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s FOR EACH ROW EXECUTE FUNCTION gabinete_notify_change('%s')`, trigger, table, channel),
			}
			for _, stmt := range stmts {
				if err := tx.Exec(stmt).Error; err != nil {
					return fmt.Errorf("falha ao instalar trigger em %s: %w", table, err)
				}
			}
		}
		appLogger.Infof("Triggers de notificação instalados no canal '%s' (%d tabelas).", channel, len(tables))
		return nil
	})
}

// CloseDB fecha a conexão com o banco de dados.
func CloseDB(db *gorm.DB) error {
	if db == nil {
		appLogger.Warn("Tentativa de fechar conexão DB nula.")
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.Errorf("Erro ao obter *sql.DB para fechar: %v", err)
		return err
	}
	appLogger.Info("Fechando conexão com o banco de dados...")
	return sqlDB.Close()
}

type DBSessionFunc func(tx *gorm.DB) error

// WithTransaction executa uma função dentro de uma transação GORM.
// Faz commit se a função não retornar erro, rollback caso contrário.
func WithTransaction(db *gorm.DB, fn DBSessionFunc) error {
	tx := db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("falha ao iniciar transação: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			return fmt.Errorf("erro ao executar função (%v) E erro no rollback (%w)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("falha ao commitar transação: %w", err)
	}
	return nil
}

// --- Classificação de erros do driver ---

// IsForeignKeyViolation reconhece violações de FK tanto pelo erro traduzido do
// GORM quanto pela mensagem do driver (o SQLite nem sempre é traduzido).
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}

// IsUniqueViolation reconhece violações de chave única.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
