// commands/admin_cmds.go
package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := openServices(cmd.Context(), opts); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ schema up to date")
			return nil
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install the initial requirement set from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = opts.cfg.SeedFile
			}
			if file == "" {
				return fmt.Errorf("no seed file: pass --file or set SEED_FILE")
			}
			svc, _, err := openServices(cmd.Context(), opts)
			if err != nil {
				return err
			}
			n, err := seedFromFile(cmd.Context(), svc.Admin, file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🌱 %d requirement(s) inserted\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed YAML file (defaults to SEED_FILE)")
	return cmd
}

func newBumpVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bump-version",
		Short: "Increment the task version so every user can earn a new code",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := openServices(cmd.Context(), opts)
			if err != nil {
				return err
			}
			v, err := svc.Versions.Bump(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🔄 task version is now %d\n", v)
			return nil
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print user and promo code counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := openServices(cmd.Context(), opts)
			if err != nil {
				return err
			}
			st, err := svc.Admin.Stats(cmd.Context())
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(st)
		},
	}
}

func newExportCodesCmd(opts *rootOptions) *cobra.Command {
	var out string
	var upload bool
	cmd := &cobra.Command{
		Use:   "export-codes",
		Short: "Export every issued promo code as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, _, err := openServices(ctx, opts)
			if err != nil {
				return err
			}

			if upload {
				if err := attachUploader(ctx, opts.cfg, svc.Export, opts.log); err != nil {
					return err
				}
				url, rows, err := svc.Export.UploadCodesCSV(ctx, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "☁️  %d row(s) uploaded to %s\n", rows, url)
				return nil
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			rows, err := svc.Export.WriteCodesCSV(ctx, w)
			if err != nil {
				return err
			}
			if out != "" && out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "📄 %d row(s) written to %s\n", rows, out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload to R2 instead of writing locally")
	return cmd
}
