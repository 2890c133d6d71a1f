// Command allocate applies a collected payments file to a loan submission
// file and writes the submission with PAID and DIFF filled in.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"loan-allocation-backend/internal/config"
	"loan-allocation-backend/internal/services/allocation"
	"loan-allocation-backend/internal/tabular"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type options struct {
	submission string
	collected  string
	output     string
	configPath string
}

func (o *options) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.submission, "submission", "s", "", "Submission file (.xlsx, .xls or .csv)")
	fs.StringVarP(&o.collected, "collected", "c", "", "Collected payments file (.xlsx, .xls or .csv)")
	fs.StringVarP(&o.output, "output", "o", "output.xlsx", "Output file (.xlsx or .csv)")
	fs.StringVar(&o.configPath, "config", config.Path(), "YAML config file with column names and tolerance")
}

func (o *options) validate() error {
	var errs []error
	if o.submission == "" {
		errs = append(errs, errors.New("--submission is required"))
	}
	if o.collected == "" {
		errs = append(errs, errors.New("--collected is required"))
	}
	if o.output == "" {
		errs = append(errs, errors.New("--output must not be empty"))
	}
	return errors.Join(errs...)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	opts := &options{}
	fs := pflag.NewFlagSet("allocate", pflag.ContinueOnError)
	opts.addFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := opts.validate(); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	submission, err := tabular.ReadFile(opts.submission)
	if err != nil {
		return fmt.Errorf("submission: %w", err)
	}
	collected, err := tabular.ReadFile(opts.collected)
	if err != nil {
		return fmt.Errorf("collected: %w", err)
	}

	out, res, err := allocation.New(
		allocation.WithColumns(cfg.Columns),
		allocation.WithTolerance(cfg.Tolerance),
	).Allocate(submission, collected)
	if err != nil {
		return err
	}

	if err := tabular.WriteFile(opts.output, out); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	fmt.Fprintln(stdout, res.Summary())
	return nil
}
