package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kspringfield13/xenosync/internal/metrics"
	"github.com/kspringfield13/xenosync/internal/orchestrator"
	"github.com/kspringfield13/xenosync/internal/prompt"
	"github.com/kspringfield13/xenosync/internal/session"
)

var startFlags struct {
	speed      string
	agents     int
	resume     string
	dryRun     bool
	noTerminal bool
}

var startCmd = &cobra.Command{
	Use:   "start [prompt-file]",
	Short: "Run a new sync session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVarP(&startFlags.speed, "speed", "s", "normal", "build speed profile (fast, normal, careful)")
	startCmd.Flags().IntVarP(&startFlags.agents, "agents", "a", 2, "number of agents to run (2-20)")
	startCmd.Flags().StringVarP(&startFlags.resume, "resume", "r", "", "resume a previous session by id")
	startCmd.Flags().BoolVar(&startFlags.dryRun, "dry-run", false, "validate the prompt without starting a build")
	startCmd.Flags().BoolVar(&startFlags.noTerminal, "no-terminal", false, "do not auto-open an attached terminal")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(startFlags.speed)
	if err != nil {
		return err
	}
	if startFlags.noTerminal {
		cfg.AutoOpenTerminal = false
	}

	if startFlags.agents < 2 || startFlags.agents > 20 {
		return fmt.Errorf("number of agents must be between 2 and 20")
	}

	sessStore, err := sessionStore(cfg)
	if err != nil {
		return err
	}

	var sess *session.Session
	var p *prompt.Prompt

	if startFlags.resume != "" {
		sess, err = sessStore.LoadSession(startFlags.resume)
		if err != nil {
			return fmt.Errorf("session %s not found or cannot be resumed: %w", startFlags.resume, err)
		}
		if sess.Status.IsTerminal() {
			return fmt.Errorf("session %s is %s and cannot be resumed", startFlags.resume, sess.Status)
		}
		sess.Status = session.StatusActive
		p, err = prompt.Load(sess.PromptFile)
		if err != nil {
			return err
		}
	} else {
		if len(args) == 0 {
			return fmt.Errorf("a prompt file is required unless --resume is used")
		}
		p, err = prompt.Load(args[0])
		if err != nil {
			return err
		}
		if err := prompt.Validate(p); err != nil {
			return err
		}

		if startFlags.dryRun {
			fmt.Printf("Prompt: %s\n", p.Name)
			fmt.Printf("Total steps: %d\n", len(p.Tasks))
			fmt.Printf("Estimated time: %s\n", p.EstimatedDuration())
			return nil
		}

		sess = &session.Session{
			ID:          session.NewID(),
			PromptFile:  args[0],
			PromptName:  p.Name,
			ProjectName: p.Name,
			NumAgents:   startFlags.agents,
			Status:      session.StatusActive,
			TotalSteps:  len(p.Tasks),
		}
		sess.StartedAt = time.Now().UTC()
		if err := sessStore.Create(sess); err != nil {
			return err
		}
	}

	printBanner()
	fmt.Printf("Session ID: %s\n", sess.ID)
	fmt.Printf("Project: %s\n", p.Name)
	fmt.Printf("Steps: %d\n", len(p.Tasks))
	fmt.Printf("Speed: %s\n", startFlags.speed)
	fmt.Printf("Agents: %d\n", sess.NumAgents)

	index, err := openIndex(cfg)
	if err != nil {
		return err
	}
	if index != nil {
		defer index.Close()
	}
	pub := newBus(cfg)
	defer pub.Close()

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.New()
		shutdown, err := reg.Serve(cfg.Metrics.Addr)
		if err != nil {
			log.Warn("metrics listener failed to start", zap.Error(err))
		} else {
			defer shutdown(context.Background())
		}
	}

	orch := orchestrator.New(log, cfg, sessStore, index, pub, newMultiplexer(cfg), reg)
	runErr := orch.Run(context.Background(), sess, p)
	if sess.Status == session.StatusInterrupted {
		fmt.Println(rule(60))
		fmt.Println("Shutting down agents...")
		fmt.Println(rule(60))
		os.Exit(130)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", runErr)
		os.Exit(1)
	}
	return nil
}
