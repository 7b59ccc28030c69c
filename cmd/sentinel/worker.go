package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuemby/task-sentinel/pkg/coordinator"
	"github.com/cuemby/task-sentinel/pkg/registry"
	"github.com/cuemby/task-sentinel/pkg/types"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Worker registry operations",
}

var workerRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a worker and print its assigned ID",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildCoordinatorConfig(cmd)
		if err != nil {
			return err
		}
		c, err := coordinator.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to build coordinator: %w", err)
		}
		defer func() { _ = c.Stop() }()

		capsStr, _ := cmd.Flags().GetString("capabilities")
		maxTasks, _ := cmd.Flags().GetInt("max-tasks")

		var caps []string
		if capsStr != "" {
			caps = strings.Split(capsStr, ",")
		}

		w, err := c.Registry.Register(context.Background(), types.Registration{
			NodeID:             cfg.NodeID,
			Capabilities:       caps,
			MaxConcurrentTasks: maxTasks,
		})
		if err != nil {
			return fmt.Errorf("failed to register worker: %w", err)
		}

		fmt.Printf("Worker registered: %s\n", w.ID)
		return nil
	},
}

var workerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List currently registered workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildCoordinatorConfig(cmd)
		if err != nil {
			return err
		}
		c, err := coordinator.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to build coordinator: %w", err)
		}
		defer func() { _ = c.Stop() }()

		for _, w := range c.Registry.Discover(context.Background(), registry.Filter{}) {
			fmt.Printf("%s\thealth=%s\tstatus=%s\ttasks=%d/%d\n",
				w.ID, w.Health, w.Status, w.CurrentTasks, w.MaxConcurrentTasks)
		}
		return nil
	},
}

func init() {
	addStoreFlags(workerRegisterCmd)
	workerRegisterCmd.Flags().String("capabilities", "", "Comma-separated capability list")
	workerRegisterCmd.Flags().Int("max-tasks", 4, "Maximum concurrent tasks this worker accepts")

	addStoreFlags(workerListCmd)

	workerCmd.AddCommand(workerRegisterCmd)
	workerCmd.AddCommand(workerListCmd)
}
