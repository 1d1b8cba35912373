// Command fitcli uploads subject photographs to the Meshcapade avatar
// service and downloads the resulting body measurements.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	configpkg "github.com/avatarlab/fitcli/pkg/config"
	loggerpkg "github.com/avatarlab/fitcli/pkg/logger"
	"github.com/avatarlab/fitcli/pkg/meshcapade"
	"github.com/avatarlab/fitcli/pkg/subject"
	"github.com/avatarlab/fitcli/pkg/workflow"
)

func main() {
	_ = godotenv.Load()

	app := &cli.Command{
		Name:  "fitcli",
		Usage: "Fit avatars from subject photos and download body measurements",
		Flags: globalFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runInteractive(ctx, cfg, log)
		},
		Commands: []*cli.Command{
			subjectsCmd(),
			uploadCmd(),
			statusCmd(),
			downloadCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "data",
			Aliases: []string{"d"},
			Usage:   "data directory holding subject folders",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to config.yaml (default: ~/.config/fitcli/config.yaml)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug, info, warn, error)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "shorthand for --log-level debug",
		},
	}
}

// loadConfig assembles runtime configuration: defaults, then the config
// file, then environment variables, then CLI flags.
func loadConfig(cmd *cli.Command) (configpkg.Config, loggerpkg.Logger, error) {
	cfg := configpkg.DefaultConfig()

	path := cmd.String("config")
	if path == "" {
		path = configpkg.DefaultConfigPath()
	}
	cfg, err := configpkg.LoadFile(cfg, path)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config file: %w", err)
	}

	cfg = configpkg.FromEnv(cfg)
	if v := cmd.String("data"); v != "" {
		cfg.DataDir = v
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if cmd.Bool("verbose") {
		cfg.LogLevel = "debug"
		cfg.Verbose = true
	}
	cfg = configpkg.Normalize(cfg)

	log := loggerpkg.Text(os.Stderr, loggerpkg.ParseLevel(cfg.LogLevel))
	return cfg, log, nil
}

func newRunner(cfg configpkg.Config, log loggerpkg.Logger) (*workflow.Runner, error) {
	return workflow.New(cfg, workflow.WithLogger(log))
}

func subjectsCmd() *cli.Command {
	return &cli.Command{
		Name:  "subjects",
		Usage: "List discovered subjects in the data directory",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			subjects, skipped, err := subject.Discover(cfg.DataDir)
			if err != nil {
				return err
			}
			printSkipped(skipped)
			if len(subjects) == 0 {
				fmt.Printf("No subjects found in %s\n", cfg.DataDir)
				return nil
			}
			for _, subj := range subjects {
				status := "not uploaded"
				if subj.Metadata.AvatarID != "" {
					status = "avatar " + subj.Metadata.AvatarID
				}
				fmt.Printf("%-20s %s, %.1f cm, %d image(s), %s\n",
					subj.Name, subj.Metadata.Gender, subj.Metadata.Height, len(subj.Images), status)
			}
			return nil
		},
	}
}

func uploadCmd() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Create an avatar, upload the subject's images and start fitting",
		ArgsUsage: "<subject>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			subj, runner, err := resolve(cmd, cfg, log)
			if err != nil {
				return err
			}
			avatarID, err := runner.Upload(ctx, subj)
			if err != nil {
				return err
			}
			fmt.Printf("Avatar %s uploaded for %s; fitting started\n", avatarID, subj.Name)
			return nil
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the avatar's current processing state",
		ArgsUsage: "<subject>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			subj, runner, err := resolve(cmd, cfg, log)
			if err != nil {
				return err
			}
			state, err := runner.Status(ctx, subj)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", subj.Name, state)
			return nil
		},
	}
}

func downloadCmd() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download measurements once fitting has completed",
		ArgsUsage: "<subject>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			subj, runner, err := resolve(cmd, cfg, log)
			if err != nil {
				return err
			}
			path, err := runner.Download(ctx, subj)
			if err != nil {
				var notReady *meshcapade.NotReadyError
				if errors.As(err, &notReady) {
					fmt.Printf("Avatar for %s is not ready yet (state %s); try again later\n",
						subj.Name, notReady.State)
					return nil
				}
				return err
			}
			fmt.Printf("Measurements saved to %s\n", path)
			return nil
		},
	}
}

// resolve loads the subject named in the first argument and builds the
// workflow runner for it.
func resolve(cmd *cli.Command, cfg configpkg.Config, log loggerpkg.Logger) (*subject.Subject, *workflow.Runner, error) {
	name := cmd.Args().First()
	if name == "" {
		return nil, nil, errors.New("subject name required")
	}
	subj, err := subject.Load(cfg.DataDir, name)
	if err != nil {
		return nil, nil, err
	}
	runner, err := newRunner(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return subj, runner, nil
}

func printSkipped(skipped []*subject.ValidationError) {
	for _, verr := range skipped {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: skipping %v\n", verr)
	}
}
