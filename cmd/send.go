package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Maxim80/devman-async-sms-mailings/internal/gateway"
	"github.com/Maxim80/devman-async-sms-mailings/internal/logger"
	"github.com/Maxim80/devman-async-sms-mailings/internal/util"
	"github.com/spf13/cobra"
)

var sendFlags struct {
	login   string
	psw     string
	phones  string
	message string
	valid   int
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one SMS mailing through SMSC and print its status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		gw := gateway.NewClient(cfg.Gateway, logger.Log.Named("smsc"))
		creds := gateway.Credentials{Login: sendFlags.login, Password: sendFlags.psw}

		sent, err := gw.Send(ctx, gateway.SendRequest{
			Phones:      sendFlags.phones,
			Message:     sendFlags.message,
			ValidHours:  sendFlags.valid,
			Credentials: creds,
		})
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
		if err := printJSON(cmd, sent); err != nil {
			return err
		}

		status, err := gw.Status(ctx, gateway.StatusRequest{
			Phone:       firstPhone(sendFlags.phones),
			ID:          sent.ID,
			Credentials: creds,
		})
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		return printJSON(cmd, status)
	},
}

func init() {
	f := sendCmd.Flags()
	f.StringVar(&sendFlags.login, "login", "", "SMSC login (default SMSC_LOGIN)")
	f.StringVar(&sendFlags.psw, "psw", "", "SMSC password (default SMSC_PASSW)")
	f.StringVar(&sendFlags.phones, "phones", "", "phone numbers separated by commas or semicolons")
	f.StringVar(&sendFlags.message, "message", "", "SMS message text")
	f.IntVar(&sendFlags.valid, "valid", 1, "undelivered SMS lifetime in hours")
	_ = sendCmd.MarkFlagRequired("phones")
	_ = sendCmd.MarkFlagRequired("message")
}

func firstPhone(phones string) string {
	if list := util.SplitPhones(phones); len(list) > 0 {
		return list[0]
	}
	return phones
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
