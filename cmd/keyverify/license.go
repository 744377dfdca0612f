package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"winsbygroup.com/keyverify/internal/activation"
	"winsbygroup.com/keyverify/internal/keycheck"
)

type ActivateCommand struct {
	app *app

	machineCode  string
	friendlyName string
}

func NewActivateCommand(a *app) *ActivateCommand {
	return &ActivateCommand{app: a}
}

func (c *ActivateCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activate <key>",
		Short: "Activate a license key on this machine and keep the signed response",
		Args:  cobra.ExactArgs(1),
		RunE:  c.Run,
	}
	cmd.Flags().StringVar(&c.machineCode, "machine-code", "", "machine code to activate (default: this machine)")
	cmd.Flags().StringVar(&c.friendlyName, "name", "", "friendly name of the machine")
	return cmd
}

func (c *ActivateCommand) Run(cmd *cobra.Command, args []string) error {
	svcs, err := c.app.services()
	if err != nil {
		return err
	}
	defer svcs.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*c.app.cfg.RequestTimeout)
	defer cancel()

	out, err := svcs.Activation.Activate(ctx, activation.Request{
		Key:          args[0],
		MachineCode:  c.machineCode,
		FriendlyName: c.friendlyName,
	})
	if err != nil {
		return err
	}
	return printOutcome(cmd, out)
}

type GetKeyCommand struct {
	app *app
}

func NewGetKeyCommand(a *app) *GetKeyCommand {
	return &GetKeyCommand{app: a}
}

func (c *GetKeyCommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "getkey <key>",
		Short: "Read and verify a license key, authorizing this machine",
		Args:  cobra.ExactArgs(1),
		RunE:  c.Run,
	}
}

func (c *GetKeyCommand) Run(cmd *cobra.Command, args []string) error {
	svcs, err := c.app.services()
	if err != nil {
		return err
	}
	defer svcs.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*c.app.cfg.RequestTimeout)
	defer cancel()

	v, err := svcs.Activation.Verify(ctx, args[0])
	if err != nil {
		return err
	}
	if err := writeJSON(cmd.OutOrStdout(), v); err != nil {
		return err
	}
	if !v.Decision.Authorized {
		return fmt.Errorf("%w: %s", errNotValid, v.Decision.Reason)
	}
	return nil
}

type DeactivateCommand struct {
	app *app

	machineCode string
}

func NewDeactivateCommand(a *app) *DeactivateCommand {
	return &DeactivateCommand{app: a}
}

func (c *DeactivateCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deactivate <key>",
		Short: "Release a machine from a license key and forget the kept response",
		Args:  cobra.ExactArgs(1),
		RunE:  c.Run,
	}
	cmd.Flags().StringVar(&c.machineCode, "machine-code", "", "machine code to release (default: this machine)")
	return cmd
}

func (c *DeactivateCommand) Run(cmd *cobra.Command, args []string) error {
	svcs, err := c.app.services()
	if err != nil {
		return err
	}
	defer svcs.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*c.app.cfg.RequestTimeout)
	defer cancel()

	if err := svcs.Activation.Deactivate(ctx, args[0], c.machineCode); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "deactivated")
	return err
}

func printOutcome(cmd *cobra.Command, out keycheck.Outcome) error {
	if out.OK() {
		return writeJSON(cmd.OutOrStdout(), out.Key)
	}
	return errors.New(out.Message)
}
