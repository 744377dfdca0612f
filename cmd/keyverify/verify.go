package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"winsbygroup.com/keyverify/internal/binding"
	"winsbygroup.com/keyverify/internal/canonical"
	"winsbygroup.com/keyverify/internal/keycheck"
	"winsbygroup.com/keyverify/internal/licerr"
	"winsbygroup.com/keyverify/internal/license"
)

// errNotValid makes the process exit non-zero after the result is printed.
var errNotValid = errors.New("license is not valid for this device")

type VerifyCommand struct {
	app *app

	device         string
	floating       bool
	allowOverdraft bool
	signMethod     int
	metadata       bool
}

func NewVerifyCommand(a *app) *VerifyCommand {
	return &VerifyCommand{app: a}
}

func (c *VerifyCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [file]",
		Short: "Verify a saved licensing service response (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  c.Run,
	}
	cmd.Flags().StringVar(&c.device, "device", "", "device id to authorize")
	cmd.Flags().BoolVar(&c.floating, "floating", false, "apply floating license rules")
	cmd.Flags().BoolVar(&c.allowOverdraft, "overdraft", false, "accept the overdraft occupant of a floating license")
	cmd.Flags().IntVar(&c.signMethod, "sign-method", -1, "sign method of the response (default from config)")
	cmd.Flags().BoolVar(&c.metadata, "metadata", false, "include the response metadata")
	return cmd
}

type verifyOutput struct {
	Valid    bool                `json:"valid"`
	Kind     licerr.Kind         `json:"kind,omitempty"`
	Message  string              `json:"message,omitempty"`
	License  *license.LicenseKey `json:"license,omitempty"`
	Decision *binding.Decision   `json:"decision,omitempty"`
}

func (c *VerifyCommand) Run(cmd *cobra.Command, args []string) error {
	body, err := readBody(cmd, args)
	if err != nil {
		return err
	}

	key, err := c.app.cfg.VerificationKey()
	if err != nil {
		return err
	}
	method := canonical.SignMethod(c.app.cfg.SignMethod)
	if c.signMethod >= 0 {
		method = canonical.SignMethod(c.signMethod)
	}

	checker, err := keycheck.NewChecker(keycheck.VerificationContext{
		PublicKey:  key,
		SignMethod: method,
		MidLayout:  c.app.cfg.Floating.MidLayout(),
	}, keycheck.WithLogger(c.app.log.Named("keycheck")))
	if err != nil {
		return err
	}

	var opts []keycheck.CheckOption
	if c.metadata {
		opts = append(opts, keycheck.WithMetadata())
	}

	lic, err := checker.Check(body, opts...)
	if err != nil {
		if werr := writeJSON(cmd.OutOrStdout(), verifyOutput{Kind: licerr.KindOf(err), Message: licerr.Message(err)}); werr != nil {
			return werr
		}
		return errNotValid
	}

	out := verifyOutput{Valid: true, License: lic}
	if c.device != "" {
		d := binding.Evaluate(lic, c.device, binding.Mode{Floating: c.floating, AllowOverdraft: c.allowOverdraft})
		out.Decision = &d
	}
	if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if out.Decision != nil && !out.Decision.Authorized {
		return errNotValid
	}
	return nil
}

func readBody(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	body, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
