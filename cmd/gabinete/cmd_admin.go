package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	appLogger "github.com/Dukorsa/APP_GABINETE_GO/internal/core/logger"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/data/models"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/listview"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/repositories"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/services"
	"github.com/Dukorsa/APP_GABINETE_GO/internal/utils"
)

const exportBatch = 500

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Aplica as migrações do esquema (e os triggers do feed no PostgreSQL)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, err := loadApp()
		if err != nil {
			return err
		}
		closeDB(db)
		fmt.Fprintln(cmd.OutOrStdout(), "Migrações aplicadas.")
		return nil
	},
}

// --- bootstrap ---

var bootstrapFlags struct {
	empresa, nome, email, senha, cargo string
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Cria uma empresa e seu primeiro usuário",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, err := loadApp()
		if err != nil {
			return err
		}
		defer closeDB(db)

		senha := bootstrapFlags.senha
		if senha == "" {
			senha = os.Getenv("GABINETE_BOOTSTRAP_SENHA")
		}
		audit := services.NewAuditLogService(repositories.NewGormAuditLogRepository(db))
		usuarios := services.NewUsuarioService(repositories.NewGormUsuarioRepository(db), nil, audit)
		empresa, user, err := usuarios.Bootstrap(cmd.Context(), bootstrapFlags.empresa, services.NovoUsuario{
			Nome:  bootstrapFlags.nome,
			Email: bootstrapFlags.email,
			Senha: senha,
			Cargo: bootstrapFlags.cargo,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Empresa %s (%s) criada com o usuário %s.\n", empresa.Nome, empresa.ID, user.Email)
		return nil
	},
}

// --- export ---

var exportFlags struct {
	empresa string
	out     string
	formato string
}

var exportCmd = &cobra.Command{
	Use:       "export eleitores|oficios",
	Short:     "Exporta em XLSX ou CSV os eleitores ou ofícios de uma empresa",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{models.TableEleitores, models.TableOficios},
	RunE:      runExport,
}

func init() {
	f := bootstrapCmd.Flags()
	f.StringVar(&bootstrapFlags.empresa, "empresa", "", "nome da empresa (gabinete)")
	f.StringVar(&bootstrapFlags.nome, "nome", "", "nome do usuário")
	f.StringVar(&bootstrapFlags.email, "email", "", "e-mail de login")
	f.StringVar(&bootstrapFlags.senha, "senha", "", "senha (ou GABINETE_BOOTSTRAP_SENHA)")
	f.StringVar(&bootstrapFlags.cargo, "cargo", "", "cargo do usuário")
	_ = bootstrapCmd.MarkFlagRequired("empresa")
	_ = bootstrapCmd.MarkFlagRequired("email")

	f = exportCmd.Flags()
	f.StringVar(&exportFlags.empresa, "empresa", "", "ID da empresa")
	f.StringVar(&exportFlags.out, "out", "", "arquivo de saída; caminhos relativos ficam em APP_EXPORT_DIR")
	f.StringVar(&exportFlags.formato, "formato", "xlsx", "xlsx ou csv")
	_ = exportCmd.MarkFlagRequired("empresa")
}

func runExport(cmd *cobra.Command, args []string) error {
	empresaID, err := uuid.Parse(exportFlags.empresa)
	if err != nil {
		return fmt.Errorf("--empresa inválido: %w", err)
	}
	format, err := services.ParseExportFormat(exportFlags.formato)
	if err != nil {
		return err
	}
	cfg, db, err := loadApp()
	if err != nil {
		return err
	}
	defer closeDB(db)

	out := exportFlags.out
	if out == "" {
		out = fmt.Sprintf("%s_%s", args[0], time.Now().Format("20060102_150405"))
	}

	var (
		input utils.DataInput
		opts  *utils.ExportOptions
		n     int
	)
	ctx := cmd.Context()
	switch args[0] {
	case models.TableEleitores:
		repo := repositories.NewGormEleitorRepository(db)
		items, err := loadAll(ctx, func(ctx context.Context, offset, limit int) ([]models.Eleitor, int64, error) {
			return repo.ListRange(ctx, empresaID, offset, limit)
		})
		if err != nil {
			return err
		}
		input, opts, n = services.EleitoresInput(items), services.EleitorExportOptions(), len(items)
	case models.TableOficios:
		repo := repositories.NewGormOficioRepository(db)
		items, err := loadAll(ctx, func(ctx context.Context, offset, limit int) ([]models.Oficio, int64, error) {
			return repo.ListRange(ctx, empresaID, offset, limit)
		})
		if err != nil {
			return err
		}
		input, opts, n = services.OficiosInput(items), services.OficioExportOptions(), len(items)
	}
	opts.CreateBackup = true

	var path string
	if format == services.FormatCSV {
		path, err = utils.ExportToCSV(input, out, cfg.ExportDir, opts)
	} else {
		path, err = utils.ExportToXLSX([]utils.DataInput{input}, out, cfg.ExportDir, opts)
	}
	if err != nil {
		return err
	}
	appLogger.Infof("Exportação de %s concluída: %d registros em %s", args[0], n, path)
	fmt.Fprintf(cmd.OutOrStdout(), "%d registros exportados para %s\n", n, path)
	return nil
}

// loadAll carrega todos os registros da empresa em lotes.
func loadAll[T listview.Keyed](ctx context.Context, fetch listview.RangeFetcher[T]) ([]T, error) {
	loader := listview.NewLoader(fetch, exportBatch)
	for loader.HasMore() {
		if _, err := loader.LoadMore(ctx); err != nil {
			return nil, err
		}
	}
	return loader.Items(), nil
}
