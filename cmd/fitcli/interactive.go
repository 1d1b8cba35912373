// Interactive terminal mode: pick a subject, pick an action, run it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	configpkg "github.com/avatarlab/fitcli/pkg/config"
	loggerpkg "github.com/avatarlab/fitcli/pkg/logger"
	"github.com/avatarlab/fitcli/pkg/meshcapade"
	"github.com/avatarlab/fitcli/pkg/subject"
)

type action int

const (
	actionUpload action = iota
	actionDownload
)

// runInteractive drives the subject/action menus and executes the
// chosen workflow once, matching the one-shot flow of the tool.
func runInteractive(ctx context.Context, cfg configpkg.Config, log loggerpkg.Logger) error {
	subjects, skipped, err := subject.Discover(cfg.DataDir)
	if err != nil {
		return err
	}
	printSkipped(skipped)
	if len(subjects) == 0 {
		return fmt.Errorf("no subjects found in %s", cfg.DataDir)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer func() { _ = rl.Close() }()

	subj, err := chooseSubject(rl, subjects)
	if err != nil {
		return err
	}
	fmt.Printf("\nSelected subject: %s (%s, %.1f cm, %d image(s))\n",
		subj.Name, subj.Metadata.Gender, subj.Metadata.Height, len(subj.Images))

	chosen, err := chooseAction(rl, subj)
	if err != nil {
		return err
	}

	fmt.Println("\nAuthenticating...")
	runner, err := newRunner(cfg, log)
	if err != nil {
		return err
	}

	switch chosen {
	case actionDownload:
		path, err := runner.Download(ctx, subj)
		if err != nil {
			var notReady *meshcapade.NotReadyError
			if errors.As(err, &notReady) {
				fmt.Printf("Avatar is not ready yet (state %s); run download again later.\n", notReady.State)
				return nil
			}
			return err
		}
		fmt.Printf("Measurements for %s saved to %s\n", subj.Name, path)
	case actionUpload:
		avatarID, err := runner.Upload(ctx, subj)
		if err != nil {
			return err
		}
		fmt.Printf("Avatar %s uploaded for %s; fitting started.\n", avatarID, subj.Name)
	}
	return nil
}

// chooseSubject prompts until a valid subject index is entered.
func chooseSubject(rl *readline.Instance, subjects []*subject.Subject) (*subject.Subject, error) {
	fmt.Println("Available subjects:")
	for i, subj := range subjects {
		fmt.Printf("  %d. %s\n", i+1, subj.Name)
	}

	for {
		choice, err := promptNumber(rl, fmt.Sprintf("Select subject (1-%d): ", len(subjects)))
		if err != nil {
			return nil, err
		}
		if choice >= 1 && choice <= len(subjects) {
			return subjects[choice-1], nil
		}
		fmt.Println("Invalid choice. Please try again.")
	}
}

// chooseAction prompts for the action. Download is only offered when
// the subject already has an avatar; uploading again replaces it.
func chooseAction(rl *readline.Instance, subj *subject.Subject) (action, error) {
	hasAvatar := subj.Metadata.AvatarID != ""

	fmt.Println("\nWhat would you like to do?")
	if hasAvatar {
		fmt.Println("  1. Download measurements")
		fmt.Println("  2. Re-upload avatar")
	} else {
		fmt.Println("  1. Upload avatar (no existing avatar found)")
	}

	for {
		limit := 1
		if hasAvatar {
			limit = 2
		}
		choice, err := promptNumber(rl, fmt.Sprintf("Select action (1-%d): ", limit))
		if err != nil {
			return 0, err
		}
		switch {
		case hasAvatar && choice == 1:
			return actionDownload, nil
		case hasAvatar && choice == 2:
			return actionUpload, nil
		case !hasAvatar && choice == 1:
			return actionUpload, nil
		}
		fmt.Println("Invalid choice. Please try again.")
	}
}

// promptNumber reads lines until a number is entered. Ctrl+C retries,
// Ctrl+D aborts.
func promptNumber(rl *readline.Instance, prompt string) (int, error) {
	for {
		rl.SetPrompt(prompt)
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return 0, errors.New("aborted")
			}
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			fmt.Println("Please enter a valid number.")
			continue
		}
		return n, nil
	}
}
