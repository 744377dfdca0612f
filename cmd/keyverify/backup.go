package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"winsbygroup.com/keyverify/internal/server"
	"winsbygroup.com/keyverify/internal/store"
)

type BackupCommand struct {
	app *app
}

func NewBackupCommand(a *app) *BackupCommand {
	return &BackupCommand{app: a}
}

func (c *BackupCommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a compressed SQL dump of the kept license responses",
		Args:  cobra.NoArgs,
		RunE:  c.Run,
	}
}

// Run opens only the database; no public key is needed to copy it.
func (c *BackupCommand) Run(cmd *cobra.Command, args []string) error {
	db, err := server.OpenDB(c.app.cfg.DBPath, c.app.cfg.DBPathSource, c.app.log)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := store.NewService(db, c.app.cfg.DBPath).Backup(cmd.Context())
	if err != nil {
		return err
	}
	c.app.log.Info("backup written", zap.String("path", res.Path), zap.Int64("size", res.Size))
	return writeJSON(cmd.OutOrStdout(), res)
}
