package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/parser"
	"catalog-import-service/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	exitFailure    = 1
	exitUsage      = 2
	exitValidation = 3
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

type importerFactory func(ctx context.Context, log *logrus.Logger) (services.Importer, func(), error)

type importOptions struct {
	tenantID   string
	actorID    string
	categoryID string
	details    string
	pricing    string
}

func newRootCmd(log *logrus.Logger, connect importerFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "catalog-import",
		Short:         "Validate and commit product catalog imports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newValidateCmd(log, connect))
	root.AddCommand(newCommitCmd(log, connect))
	root.AddCommand(newTemplateCmd())
	return root
}

func bindImportFlags(cmd *cobra.Command, opts *importOptions) {
	cmd.Flags().StringVar(&opts.tenantID, "tenant", "", "Tenant ID (required)")
	cmd.Flags().StringVar(&opts.categoryID, "category", "", "Target category ID (required)")
	cmd.Flags().StringVar(&opts.details, "details", "", "Details file, .csv or .xlsx (required)")
	cmd.Flags().StringVar(&opts.pricing, "pricing", "", "Pricing file, .csv or .xlsx (required)")

	for _, name := range []string{"tenant", "category", "details", "pricing"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func newValidateCmd(log *logrus.Logger, connect importerFactory) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Dry-run an import and print the validation report",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(opts)
			if err != nil {
				return err
			}
			imp, cleanup, err := connect(cmd.Context(), log)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := session.Validate(cmd.Context(), imp)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Succeeded() {
				return withCode(exitValidation, errors.New("validation failed"))
			}
			return nil
		},
	}
	bindImportFlags(cmd, &opts)
	return cmd
}

func newCommitCmd(log *logrus.Logger, connect importerFactory) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Validate an import and, if clean, create its products",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(opts)
			if err != nil {
				return err
			}
			imp, cleanup, err := connect(cmd.Context(), log)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := session.Validate(cmd.Context(), imp)
			if err != nil {
				return err
			}
			if !report.Succeeded() {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				return withCode(exitValidation, errors.New("validation failed, nothing was imported"))
			}

			result, err := session.Commit(cmd.Context(), imp, opts.actorID)
			if err != nil {
				var failed *services.ValidationFailedError
				if errors.As(err, &failed) {
					_ = writeJSON(cmd.OutOrStdout(), failed.Report)
					return withCode(exitValidation, err)
				}
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	bindImportFlags(cmd, &opts)
	cmd.Flags().StringVar(&opts.actorID, "actor", "", "User ID recorded as the creator")
	return cmd
}

func newTemplateCmd() *cobra.Command {
	var schema, format, out string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write a blank details or pricing template",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := models.ImportSchema(strings.ToLower(schema))
			f := models.ImportFormat(strings.ToLower(format))
			if out == "" {
				out = parser.TemplateFilename(s, f)
			}

			file, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := parser.WriteTemplate(file, s, f); err != nil {
				file.Close()
				os.Remove(out)
				return withCode(exitUsage, err)
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&schema, "schema", string(models.SchemaDetails), "details or pricing")
	cmd.Flags().StringVar(&format, "format", string(models.ImportFormatXLSX), "csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default: products_<schema>_template.<format>)")
	return cmd
}

// openSession loads both files into a fresh upload session.
func openSession(opts importOptions) (*services.UploadSession, error) {
	details, err := readImportFile(opts.details)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("--details: %w", err))
	}
	pricing, err := readImportFile(opts.pricing)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("--pricing: %w", err))
	}

	session := services.NewUploadSession(strings.TrimSpace(opts.tenantID))
	if err := session.SetDetails(details); err != nil {
		return nil, err
	}
	if err := session.SetPricing(pricing); err != nil {
		return nil, err
	}
	if err := session.SetCategory(strings.TrimSpace(opts.categoryID)); err != nil {
		return nil, err
	}
	return session, nil
}

func readImportFile(path string) (services.ImportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return services.ImportFile{}, err
	}
	return services.ImportFile{Name: filepath.Base(path), Data: data}, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
