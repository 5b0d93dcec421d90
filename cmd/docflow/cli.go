package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/core/form"
	"github.com/kirillkom/maritime-docflow/internal/core/ports"
	"github.com/kirillkom/maritime-docflow/internal/core/pricing"
	"github.com/kirillkom/maritime-docflow/internal/core/usecase"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/export"
)

const progressInterval = 500 * time.Millisecond

var errUsage = errors.New("usage")

type cli struct {
	auth      ports.Authenticator
	dashboard *usecase.Dashboard
	demo      ports.DemoTransformer
	keys      *usecase.KeyManager
	usage     ports.UsageService
	jobs      ports.JobRepository
	catalog   *pricing.Catalog
	exporters map[string]ports.Exporter

	opts   options
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	now    func() time.Time
}

func (c *cli) run(ctx context.Context) error {
	args := c.opts.Args
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "login":
		return c.login(ctx)
	case "logout":
		if err := c.auth.SignOut(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Signed out")
		return nil
	case "transform":
		mode, path, err := modeAndFile(args[1:])
		if err != nil {
			return err
		}
		return c.transform(ctx, mode, path)
	case "demo":
		mode, path, err := modeAndFile(args[1:])
		if err != nil {
			return err
		}
		return c.runDemo(ctx, mode, path)
	case "export":
		if len(args) != 2 {
			return errUsage
		}
		return c.exportJob(ctx, args[1])
	case "jobs":
		return c.listJobs(ctx)
	case "keys":
		return c.runKeys(ctx, args[1:])
	case "usage":
		return c.runUsage(ctx, args[1:])
	case "pricing":
		return c.showPricing()
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func modeAndFile(args []string) (domain.Mode, string, error) {
	if len(args) != 2 {
		return "", "", errUsage
	}
	mode, ok := domain.ParseMode(args[0])
	if !ok {
		return "", "", fmt.Errorf("%w: mode must be invoice or manual", errUsage)
	}
	return mode, args[1], nil
}

func (c *cli) login(ctx context.Context) error {
	values := map[string]string{"email": c.opts.Email, "password": c.opts.Password}
	reader := bufio.NewReader(c.in)
	if strings.TrimSpace(values["email"]) == "" {
		values["email"] = c.prompt(reader, "Email: ")
	}
	if values["password"] == "" {
		values["password"] = c.prompt(reader, "Password: ")
	}

	state := form.New(values, map[string]form.Validator{
		"email":    form.Email(),
		"password": form.Required("Password"),
	})
	return state.Submit(ctx, func(ctx context.Context, values map[string]string) error {
		session, err := c.auth.SignIn(ctx, strings.TrimSpace(values["email"]), values["password"])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Signed in as %s\n", session.Email)
		return nil
	})
}

func (c *cli) prompt(reader *bufio.Reader, label string) string {
	fmt.Fprint(c.errOut, label)
	line, _ := reader.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

// transform drives the dashboard workflow and reports progress until the
// call finishes.
func (c *cli) transform(ctx context.Context, mode domain.Mode, path string) error {
	file, err := openLocalFile(path)
	if err != nil {
		return err
	}
	if err := c.dashboard.SwitchMode(mode); err != nil {
		return err
	}
	wf, err := c.dashboard.Workflow(mode)
	if err != nil {
		return err
	}
	if err := wf.SelectFile(file); err != nil {
		return err
	}
	if mode == domain.ModeManual {
		if err := wf.CommitInput(ctx, c.opts.Pages); err != nil {
			return err
		}
	}

	done, err := c.dashboard.Start(ctx, mode)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		case <-ctx.Done():
			wf.Cancel()
			<-done
			finished = true
		case <-ticker.C:
			if p := wf.Snapshot().Progress; p != nil {
				fmt.Fprintf(c.errOut, "%s %.0f%%\n", p.Operation, p.Percentage)
			}
		}
	}
	if err := wf.LastError(); err != nil {
		return err
	}
	return c.writeResult(wf.Result())
}

func (c *cli) runDemo(ctx context.Context, mode domain.Mode, path string) error {
	file, err := openLocalFile(path)
	if err != nil {
		return err
	}
	var result *domain.ParsedDocument
	switch mode {
	case domain.ModeManual:
		pages, perr := usecase.ParsePageNumbers(c.opts.Pages, usecase.DefaultManualMaxPages)
		if perr != nil {
			return perr
		}
		result, err = c.demo.DemoManual(ctx, file, pages, c.printProgress)
	default:
		result, err = c.demo.DemoInvoice(ctx, file, c.printProgress)
	}
	if err != nil {
		return err
	}
	return c.writeResult(result)
}

func (c *cli) printProgress(p domain.Progress) {
	fmt.Fprintf(c.errOut, "%s %.0f%%\n", p.Operation, p.Percentage)
}

func (c *cli) exportJob(ctx context.Context, jobID string) error {
	if c.jobs == nil {
		return errors.New("job history needs POSTGRES_DSN")
	}
	job, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Result == nil {
		return export.NoData(c.opts.Format)
	}
	return c.writeResult(job.Result)
}

func (c *cli) listJobs(ctx context.Context) error {
	if c.jobs == nil {
		return errors.New("job history needs POSTGRES_DSN")
	}
	userID := ""
	if session, ok := c.auth.Current(); ok {
		userID = session.UserID
	}
	jobs, err := c.jobs.ListRecent(ctx, userID, 0)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODE\tFILE\tSTATUS\tCREATED")
	for _, job := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", job.ID, job.Mode, job.Filename, job.Status, job.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// writeResult exports the result in the chosen format, to stdout when the
// output is "-".
func (c *cli) writeResult(result *domain.ParsedDocument) error {
	exporter, ok := c.exporters[c.opts.Format]
	if !ok {
		return domain.NewValidationError("format", fmt.Sprintf("Unsupported export format %q", c.opts.Format))
	}
	if result == nil {
		return export.NoData(c.opts.Format)
	}
	artifact, err := exporter.Export(result, c.now())
	if err != nil {
		return err
	}
	if c.opts.Output == "-" {
		_, err := c.out.Write(artifact.Data)
		return err
	}

	if err := os.MkdirAll(c.opts.Output, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	target := filepath.Join(c.opts.Output, artifact.Filename)
	if err := os.WriteFile(target, artifact.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	fmt.Fprintf(c.out, "Wrote %s\n", target)
	return nil
}

func (c *cli) runKeys(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if _, err := c.keys.Load(ctx); err != nil {
		return err
	}
	switch {
	case args[0] == "list" && len(args) == 1:
		tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tKEY\tCREATED")
		for _, k := range c.keys.Keys() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", k.ID, k.Name, k.Value, k.CreatedAt.Format(time.DateOnly))
		}
		return tw.Flush()
	case args[0] == "create" && len(args) == 2:
		created, err := c.keys.Create(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s\t%s\n", created.ID, created.Value)
		return nil
	case args[0] == "delete" && len(args) == 2:
		if err := c.keys.Delete(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Deleted %s\n", args[1])
		return nil
	case args[0] == "reveal" && len(args) == 2:
		value, err := c.keys.Copy(args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, value)
		return nil
	default:
		return errUsage
	}
}

func (c *cli) runUsage(ctx context.Context, args []string) error {
	days := c.opts.Days
	if days <= 0 {
		days = 7
	}
	end := c.now().UTC()
	window := domain.UsageRange{Start: end.AddDate(0, 0, -days), End: end}

	view := "overview"
	if len(args) > 0 {
		view = args[0]
	}
	switch view {
	case "overview":
		overview, err := c.usage.Overview(ctx, window)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Requests\t%d\n", overview.TotalRequests)
		fmt.Fprintf(tw, "Invoices\t%d\n", overview.InvoiceCount)
		fmt.Fprintf(tw, "Manuals\t%d\n", overview.ManualCount)
		fmt.Fprintf(tw, "Pages\t%d\n", overview.PagesProcessed)
		fmt.Fprintf(tw, "Credits\t%.2f\n", overview.CreditsUsed)
		fmt.Fprintf(tw, "Success rate\t%.1f%%\n", overview.SuccessRate*100)
		return tw.Flush()
	case "activity":
		activity, err := c.usage.Activity(ctx, domain.UsageGranularity(c.opts.Granularity), window)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PERIOD\tINVOICES\tMANUALS\tPAGES")
		for _, b := range activity.Buckets {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", b.Period.Format(time.RFC3339), b.Invoices, b.Manuals, b.Pages)
		}
		return tw.Flush()
	case "history":
		history, err := c.usage.History(ctx, "", 1, 20)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTYPE\tFILE\tPAGES\tSTATUS\tCREATED")
		for _, r := range history.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", r.ID, r.Type, r.Filename, r.Pages, r.Status, r.CreatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	default:
		return errUsage
	}
}

func (c *cli) showPricing() error {
	if c.opts.Plan != "" || c.opts.Tier != "" {
		total, err := c.catalog.Estimate(c.opts.Plan, c.opts.Tier, c.opts.EstimatePgs)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%d pages on %s/%s: %.2f %s\n", c.opts.EstimatePgs, c.opts.Plan, c.opts.Tier, total, c.catalog.Currency)
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAN\tMONTHLY\tINCLUDED PAGES\tTIERS")
	for _, plan := range c.catalog.Plans {
		fmt.Fprintf(tw, "%s\t%.2f %s\t%d\t%s\n", plan.Name, plan.MonthlyPrice, c.catalog.Currency, plan.IncludedPages, strings.Join(plan.Tiers, ", "))
	}
	return tw.Flush()
}

func openLocalFile(path string) (domain.UploadFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.UploadFile{}, domain.NewValidationError("file", fmt.Sprintf("Cannot read %s", path))
	}
	if info.IsDir() {
		return domain.UploadFile{}, domain.NewValidationError("file", fmt.Sprintf("%s is a directory", path))
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return domain.UploadFile{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}
