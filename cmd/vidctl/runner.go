package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dgnsrekt/vid_agent/internal/controlclient"
	"github.com/dgnsrekt/vid_agent/internal/controller"
	"github.com/urfave/cli/v3"
)

// Runner holds the shared state of every vidctl command.
type Runner struct {
	client *controlclient.Client
	out    io.Writer
}

func NewRunner(client *controlclient.Client, out io.Writer) *Runner {
	return &Runner{client: client, out: out}
}

func (r *Runner) writePlainln(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *Runner) writeJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func tabArg(cmd *cli.Command) (string, error) {
	tabID := strings.TrimSpace(cmd.Args().First())
	if tabID == "" {
		return "", fmt.Errorf("tab id is required")
	}
	return tabID, nil
}

var jsonFlag = &cli.BoolFlag{Name: "json", Usage: "Print the raw JSON response"}

func (r *Runner) register() []*cli.Command {
	return []*cli.Command{
		{Name: "tabs", Usage: "List attached tabs and detected video counts", Flags: []cli.Flag{jsonFlag}, Action: r.Tabs},
		{Name: "list", Usage: "List videos detected on a tab", ArgsUsage: "<tab-id>", Flags: []cli.Flag{jsonFlag}, Action: r.List},
		{Name: "clear", Usage: "Clear videos detected on a tab", ArgsUsage: "<tab-id>", Action: r.Clear},
		{Name: "enable", Usage: "Enable video detection", Action: r.setEnabled(true)},
		{Name: "disable", Usage: "Disable video detection", Action: r.setEnabled(false)},
		{Name: "status", Usage: "Show whether video detection is enabled", Action: r.Status},
		{Name: "download", Usage: "Download a detected video", ArgsUsage: "<tab-id> <url>", Action: r.Download},
		{
			Name:      "send",
			Usage:     "Send a raw action message",
			ArgsUsage: "<action> [tab-id]",
			Flags:     []cli.Flag{&cli.BoolFlag{Name: "enabled", Usage: "Value for setVideoDownloaderEnabled"}},
			Action:    r.Send,
		},
		{Name: "downloads", Usage: "List download jobs", Flags: []cli.Flag{jsonFlag}, Action: r.Downloads},
	}
}

func (r *Runner) Tabs(ctx context.Context, cmd *cli.Command) error {
	tabs, err := r.client.ListTabs(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(tabs)
	}
	if len(tabs) == 0 {
		r.writePlainln("no tabs")
		return nil
	}
	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TAB\tATTACHED\tVIDEOS\tURL")
	for _, t := range tabs {
		fmt.Fprintf(tw, "%s\t%t\t%d\t%s\n", t.TabID, t.Attached, t.Count, t.URL)
	}
	return tw.Flush()
}

func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	tabID, err := tabArg(cmd)
	if err != nil {
		return err
	}
	res, err := r.client.GetDetectedVideos(ctx, tabID)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(res)
	}
	if res.Disabled {
		r.writePlainln("video detection is disabled")
		return nil
	}
	if len(res.Videos) == 0 {
		r.writePlainln("no videos detected on %s", tabID)
		return nil
	}
	for _, v := range res.Videos {
		r.writePlainln("%s  %-15s  %s", v.Timestamp.Local().Format(time.TimeOnly), v.Origin, v.URL)
	}
	return nil
}

func (r *Runner) Clear(ctx context.Context, cmd *cli.Command) error {
	tabID, err := tabArg(cmd)
	if err != nil {
		return err
	}
	res, err := r.client.ClearDetectedVideos(ctx, tabID)
	if err != nil {
		return err
	}
	if res.Disabled {
		r.writePlainln("cleared %s (detection is disabled)", tabID)
		return nil
	}
	r.writePlainln("cleared %s", tabID)
	return nil
}

func (r *Runner) setEnabled(enabled bool) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		res, err := r.client.SetEnabled(ctx, enabled)
		if err != nil {
			return err
		}
		r.writePlainln("video detection %s", enabledWord(res.Enabled))
		return nil
	}
}

func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	enabled, err := r.client.GetEnabled(ctx)
	if err != nil {
		return err
	}
	r.writePlainln("video detection %s", enabledWord(enabled))
	return nil
}

func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	tabID, err := tabArg(cmd)
	if err != nil {
		return err
	}
	rawURL := strings.TrimSpace(cmd.Args().Get(1))
	if rawURL == "" {
		return fmt.Errorf("url is required")
	}
	job, err := r.client.DownloadVideo(ctx, tabID, rawURL)
	if err != nil {
		return err
	}
	r.writePlainln("download %s %s -> %s", job.ID, job.Status, job.Path)
	return nil
}

func (r *Runner) Downloads(ctx context.Context, cmd *cli.Command) error {
	jobs, err := r.client.ListDownloads(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(jobs)
	}
	if len(jobs) == 0 {
		r.writePlainln("no downloads")
		return nil
	}
	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tBYTES\tPATH")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", j.ID, j.Status, j.Bytes, j.Path)
	}
	return tw.Flush()
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func (r *Runner) Send(ctx context.Context, cmd *cli.Command) error {
	msg := controller.Message{
		Action: strings.TrimSpace(cmd.Args().First()),
		TabID:  strings.TrimSpace(cmd.Args().Get(1)),
	}
	if cmd.IsSet("enabled") {
		enabled := cmd.Bool("enabled")
		msg.Enabled = &enabled
	}
	reply, err := r.client.SendMessage(ctx, msg)
	if err != nil {
		return err
	}
	return r.writeJSON(reply)
}
