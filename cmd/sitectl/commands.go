package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arturoeanton/godsplan/internal/adapter/content"
	"github.com/arturoeanton/godsplan/internal/adapter/store"
	"github.com/arturoeanton/godsplan/internal/db/migrate"
)

// deps are swapped out in tests.
type deps struct {
	migrate     func(dsn, direction string) error
	openContent func(dsn string) (content.Writer, io.Closer, error)
}

func defaultDeps() deps {
	return deps{
		migrate: migrate.Run,
		openContent: func(dsn string) (content.Writer, io.Closer, error) {
			s, err := store.NewPostgresStore(dsn)
			if err != nil {
				return nil, nil, err
			}
			return s, s, nil
		},
	}
}

func newRootCmd(d deps) *cobra.Command {
	v := viper.New()
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:          "sitectl",
		Short:        "Database and content tooling for the God's Plan site",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("database-url", "", "Postgres connection URL (default $DATABASE_URL)")
	_ = v.BindPFlag("DATABASE_URL", root.PersistentFlags().Lookup("database-url"))

	dsn := func() string { return v.GetString("DATABASE_URL") }

	root.AddCommand(
		newMigrateCmd(d, dsn),
		newContentCmd(d, dsn),
	)
	return root
}

func newMigrateCmd(d deps, dsn func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the embedded schema migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{migrate.Up, migrate.Down},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := args[0]
			if err := d.migrate(dsn(), direction); err != nil {
				return err
			}
			cmd.Printf("migrations %s: done\n", direction)
			return nil
		},
	}
	return cmd
}

func newContentCmd(d deps, dsn func() string) *cobra.Command {
	contentCmd := &cobra.Command{
		Use:   "content",
		Short: "Content tree commands",
	}

	importCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Write translation nodes from a YAML file into the content table",
		Long: strings.TrimSpace(`
Each top-level key of the file is a content path such as "translations/en"
or "login/hi", and its value is the node stored at that path.`),
		Example: "  sitectl content import content/seed.yaml --dry-run",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			nodes, err := content.DecodeYAML(f)
			if err != nil {
				return err
			}

			if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
				for _, p := range slices.Sorted(maps.Keys(nodes)) {
					cmd.Printf("would write %s (%d bytes)\n", p, len(nodes[p]))
				}
				return nil
			}

			if dsn() == "" {
				return errors.New("DATABASE_URL is not set; pass --database-url or set it in .env")
			}
			w, closer, err := d.openContent(dsn())
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			done, err := content.Import(ctx, w, nodes)
			for _, p := range done {
				cmd.Printf("wrote %s\n", p)
			}
			if err != nil {
				return fmt.Errorf("import stopped after %d of %d nodes: %w", len(done), len(nodes), err)
			}
			return nil
		},
	}
	importCmd.Flags().Bool("dry-run", false, "Validate the file and list paths without writing")

	contentCmd.AddCommand(importCmd)
	return contentCmd
}
