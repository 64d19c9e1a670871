package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/farmsense/cava/backend/internal/model/registration"
	registrationService "github.com/farmsense/cava/backend/internal/service/registration"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Register a farmer interactively",
	Long: `Starts a conversation on stdin. Commands:
  /reset  start over
  /quit   leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, logger, err := loadEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()
		defer func() { _ = logger.Sync() }()

		id := sessionID
		if id == "" {
			id = uuid.NewString()
		}
		return chat(ctx, cmd, eng.svc, id)
	},
}

func chat(ctx context.Context, cmd *cobra.Command, svc *registrationService.Service, id string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, metaStyle.Render("session "+id))

	resp, err := svc.HandleMessage(ctx, registrationService.Request{SessionID: id})
	if err != nil {
		return err
	}
	printReply(out, resp)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit":
			return nil
		case "/reset":
			svc.Reset(id)
			line = ""
		}

		resp, err := svc.HandleMessage(ctx, registrationService.Request{SessionID: id, MessageText: line})
		if err != nil && !resp.Retryable {
			return err
		}
		printReply(out, resp)
		if resp.State == registration.StateComplete {
			fmt.Fprintln(out, passStyle.Render("registered as "+resp.FarmerID))
			return nil
		}
	}
	return scanner.Err()
}
