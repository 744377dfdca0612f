package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"winsbygroup.com/keyverify/internal/machine"
)

type MachineCodeCommand struct {
	app *app

	version int
}

func NewMachineCodeCommand(a *app) *MachineCodeCommand {
	return &MachineCodeCommand{app: a}
}

func (c *MachineCodeCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "machine-code",
		Short: "Print the machine code of this device",
		Args:  cobra.NoArgs,
		RunE:  c.Run,
	}
	cmd.Flags().IntVar(&c.version, "v", 0, "machine code version 1 or 2 (default from config)")
	return cmd
}

func (c *MachineCodeCommand) Run(cmd *cobra.Command, args []string) error {
	v := machine.Version(c.app.cfg.MachineCodeVersion)
	if c.version != 0 {
		v = machine.Version(c.version)
	}
	code, err := machine.Code(cmd.Context(), v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), code)
	return err
}
