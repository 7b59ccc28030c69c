package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/task-sentinel/pkg/coordinator"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Opaque task-state sync and advisory-lock operations for external collaborators",
}

var taskStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Sync or read a task's opaque state blob",
}

var taskStateSyncCmd = &cobra.Command{
	Use:   "sync [task-id] [state]",
	Short: "Write an opaque state blob for a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newTaskCoordinator(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Stop() }()

		if err := c.TaskState.SyncTaskState(context.Background(), args[0], []byte(args[1])); err != nil {
			return fmt.Errorf("failed to sync task state: %w", err)
		}
		fmt.Printf("State synced: task=%s\n", args[0])
		return nil
	},
}

var taskStateGetCmd = &cobra.Command{
	Use:   "get [task-id]",
	Short: "Read back a task's opaque state blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newTaskCoordinator(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Stop() }()

		state, err := c.TaskState.GetTaskState(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get task state: %w", err)
		}
		fmt.Printf("%s\n", state)
		return nil
	},
}

var taskLockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Opaque advisory per-task lock, distinct from the primary lock manager",
}

var taskLockAcquireCmd = &cobra.Command{
	Use:   "acquire [task-id] [holder-id]",
	Short: "Acquire the advisory lock for a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newTaskCoordinator(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Stop() }()

		ttl, _ := cmd.Flags().GetDuration("ttl")
		acquired, err := c.TaskState.AcquireTaskLock(context.Background(), args[0], args[1], ttl)
		if err != nil {
			return fmt.Errorf("failed to acquire advisory lock: %w", err)
		}
		if !acquired {
			return fmt.Errorf("advisory lock for task %s is held by another holder", args[0])
		}
		fmt.Printf("Advisory lock acquired: task=%s holder=%s ttl=%s\n", args[0], args[1], ttl)
		return nil
	},
}

var taskLockReleaseCmd = &cobra.Command{
	Use:   "release [task-id] [holder-id]",
	Short: "Release the advisory lock for a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newTaskCoordinator(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Stop() }()

		if err := c.TaskState.ReleaseTaskLock(context.Background(), args[0], args[1]); err != nil {
			return fmt.Errorf("failed to release advisory lock: %w", err)
		}
		fmt.Printf("Advisory lock released: task=%s holder=%s\n", args[0], args[1])
		return nil
	},
}

func newTaskCoordinator(cmd *cobra.Command) (*coordinator.Coordinator, error) {
	cfg, err := buildCoordinatorConfig(cmd)
	if err != nil {
		return nil, err
	}
	c, err := coordinator.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build coordinator: %w", err)
	}
	return c, nil
}

func init() {
	addStoreFlags(taskStateSyncCmd)
	addStoreFlags(taskStateGetCmd)
	addStoreFlags(taskLockAcquireCmd)
	addStoreFlags(taskLockReleaseCmd)
	taskLockAcquireCmd.Flags().Duration("ttl", 30*time.Second, "Advisory lock lease duration")

	taskStateCmd.AddCommand(taskStateSyncCmd)
	taskStateCmd.AddCommand(taskStateGetCmd)
	taskLockCmd.AddCommand(taskLockAcquireCmd)
	taskLockCmd.AddCommand(taskLockReleaseCmd)

	taskCmd.AddCommand(taskStateCmd)
	taskCmd.AddCommand(taskLockCmd)
}
