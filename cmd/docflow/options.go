package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "DOCFLOW"

type options struct {
	Output      string
	Format      string
	Pages       string
	Email       string
	Password    string
	Plan        string
	Tier        string
	EstimatePgs int
	Granularity string
	Days        int

	Args []string
}

// parseOptions reads flags, then DOCFLOW_* variables for any flag left at
// its default.
func parseOptions(args []string, usageOut io.Writer) (options, error) {
	flags := pflag.NewFlagSet("docflow", pflag.ContinueOnError)
	flags.SetOutput(usageOut)
	flags.StringP("output", "o", ".", "directory for exported files, - for stdout")
	flags.StringP("format", "f", "csv", "export format: csv, xlsx, pdf or json")
	flags.String("pages", "", "manual page numbers, e.g. 1,2,5")
	flags.String("email", "", "account email for login")
	flags.String("password", "", "account password for login; prompted when empty")
	flags.String("plan", "", "pricing plan for an estimate")
	flags.String("tier", "", "extraction tier for an estimate")
	flags.Int("estimate-pages", 0, "page count for a pricing estimate")
	flags.String("granularity", "day", "usage activity granularity: hour, day, week or month")
	flags.Int("days", 7, "usage window in days")
	flags.Usage = func() {
		fmt.Fprintf(usageOut, "Usage: docflow [flags] <command> [args]\n\n")
		fmt.Fprintf(usageOut, "Commands:\n%s\nFlags:\n", commandHelp)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return options{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return options{}, fmt.Errorf("bind flags: %w", err)
	}

	return options{
		Output:      v.GetString("output"),
		Format:      strings.ToLower(v.GetString("format")),
		Pages:       v.GetString("pages"),
		Email:       v.GetString("email"),
		Password:    v.GetString("password"),
		Plan:        v.GetString("plan"),
		Tier:        v.GetString("tier"),
		EstimatePgs: v.GetInt("estimate-pages"),
		Granularity: v.GetString("granularity"),
		Days:        v.GetInt("days"),
		Args:        flags.Args(),
	}, nil
}

const commandHelp = `  login                         sign in and keep the session in SESSION_FILE
  logout                        sign out
  transform invoice|manual FILE extract a document and export the result
  demo invoice|manual FILE      extract without signing in
  export JOB_ID                 export a recorded job (needs POSTGRES_DSN)
  jobs                          list recent jobs (needs POSTGRES_DSN)
  keys list|create NAME|delete ID|reveal ID
  usage [overview|activity|history]
  pricing                       list plans, or estimate with --plan --tier --estimate-pages
`
