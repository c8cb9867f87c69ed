package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zackham/voice-transcribe/internal/asr"
	"github.com/zackham/voice-transcribe/internal/config"
	"github.com/zackham/voice-transcribe/internal/logging"
	"github.com/zackham/voice-transcribe/internal/record"
	"github.com/zackham/voice-transcribe/internal/status"
)

// idleLine is printed when no session is publishing.
const idleLine = "IDLE"

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var (
		follow   bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current recording status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !follow {
				return printStatus(cmd.OutOrStdout(), opts.cfg.StatusFile)
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return followStatus(ctx, cmd.OutOrStdout(), opts.cfg.StatusFile, interval)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing changes until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 50*time.Millisecond, "poll interval with --follow")
	return cmd
}

func printStatus(w io.Writer, path string) error {
	line, err := readStatusLine(path)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, line)
	return nil
}

func readStatusLine(path string) (string, error) {
	rec, err := status.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return idleLine, nil
	}
	if err != nil {
		return "", err
	}
	return status.Format(rec), nil
}

// followStatus prints every distinct line until ctx is done. Malformed reads
// are skipped; a reader may race a writer's rename on some filesystems.
func followStatus(ctx context.Context, w io.Writer, path string, interval time.Duration) error {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string
	for {
		if line, err := readStatusLine(path); err == nil && line != last {
			fmt.Fprintln(w, line)
			last = line
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func newDevicesCommand(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devs, err := record.Devices()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, d := range devs {
				mark := " "
				if d.Default {
					mark = "*"
				}
				fmt.Fprintf(w, "%s %-40s %-12s %d ch  %.0f Hz\n", mark, d.Name, d.HostAPI, d.MaxInputChannels, d.DefaultSampleRate)
			}
			return nil
		},
	}
}

func newFileCommand(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "file <audio>",
		Short: "Transcribe an existing audio file into a text file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(cmd.Context(), opts.cfg, args[0], output, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output text file (default ./<input>.txt)")
	return cmd
}

func runFile(ctx context.Context, cfg config.Config, inputPath, outputPath string, out io.Writer) error {
	token, err := config.LoadToken(cfg)
	if err != nil {
		return err
	}
	cfg.Token = token

	log, err := logging.New(logging.Options{})
	if err != nil {
		return err
	}
	defer log.Sync()

	cleanupOldTempFiles(config.TempDir(&cfg), tempFileMaxAge, log.Named("cleanup"))

	client, err := asr.New(cfg, newHTTPClient(cfg), logging.Component(log, "upload", cfg.UPLOAD_DEBUG))
	if err != nil {
		return err
	}
	client.WithFFmpegLogger(logging.Component(log, "ffmpeg", cfg.FFMPEG_DEBUG))

	text, err := client.TranscribeAudioFile(ctx, inputPath)
	if err != nil {
		return err
	}

	if outputPath == "" {
		base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		outputPath = filepath.Join(".", base+".txt")
	}
	if err := os.WriteFile(outputPath, []byte(text), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\n", outputPath)
	return nil
}

func newInitConfigCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a settings file with default values",
		Args:  cobra.MaximumNArgs(1),
		// Runs without loading settings, so a broken file can be replaced.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no config directory available; pass a path")
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default config written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
