package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/spf13/cobra"

	"github.com/devonik/email-api/internal/attachment"
	"github.com/devonik/email-api/internal/email"
	"github.com/devonik/email-api/internal/invite"
)

var cancelCause string

var sendCmd = &cobra.Command{
	Use:   "send <request.json>",
	Short: "Send an email request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readRequest(cmd, args[0])
		if err != nil {
			return err
		}

		h, err := newHandler(cmd)
		if err != nil {
			return err
		}

		out, err := h.Post(cmd.Context(), json.RawMessage(payload))
		if err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		resp, ok := out.(events.APIGatewayProxyResponse)
		if !ok {
			return fmt.Errorf("unexpected handler result %T", out)
		}
		return printResponse(cmd, resp)
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule <request.json>",
	Short: "Schedule an email request at its executionDate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readRequest(cmd, args[0])
		if err != nil {
			return err
		}

		h, err := newHandler(cmd)
		if err != nil {
			return err
		}

		resp, err := h.Schedule(cmd.Context(), events.APIGatewayProxyRequest{
			HTTPMethod: http.MethodPost,
			Path:       "/email/schedule",
			Body:       string(payload),
		})
		if err != nil {
			return fmt.Errorf("schedule failed: %w", err)
		}
		return printResponse(cmd, resp)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <executionArn>",
	Short: "Stop a scheduled email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHandler(cmd)
		if err != nil {
			return err
		}

		req := events.APIGatewayProxyRequest{
			HTTPMethod:     http.MethodDelete,
			Path:           "/email/schedule/" + args[0],
			PathParameters: map[string]string{"executionArn": args[0]},
		}
		if cancelCause != "" {
			req.QueryStringParameters = map[string]string{"cause": cancelCause}
		}

		resp, err := h.Cancel(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("cancel failed: %w", err)
		}
		return printResponse(cmd, resp)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <request.json>",
	Short: "Validate a request and build its attachment and invite without sending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readRequest(cmd, args[0])
		if err != nil {
			return err
		}

		req, err := email.DecodeRequest(payload)
		if err != nil {
			return err
		}
		parsed, err := email.Parse(req)
		if err != nil {
			return err
		}

		attachments, err := attachment.Build(slog.Default(), req.Attachment)
		if err != nil {
			return err
		}
		inv, err := invite.Build(req.Invite, req.TemplateData)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "recipient: %s\n", recipientLabel(parsed))
		fmt.Fprintf(out, "content:   %s\n", contentLabel(parsed))
		for _, a := range attachments {
			fmt.Fprintf(out, "attachment: %s (%d bytes)\n", a.Filename, len(a.Content))
		}
		if inv != nil {
			fmt.Fprintf(out, "invite:    %s (%d bytes)\n", inv.Filename, len(inv.Content))
		}
		fmt.Fprintln(out, "valid")
		return nil
	},
}

func init() {
	sendCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the message instead of sending it")
	cancelCmd.Flags().StringVar(&cancelCause, "cause", "", "cause recorded on the stopped execution")
}

// printResponse prints the body and fails on non-2xx statuses.
func printResponse(cmd *cobra.Command, resp events.APIGatewayProxyResponse) error {
	fmt.Fprintln(cmd.OutOrStdout(), resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}

func recipientLabel(p *email.Parsed) string {
	if p.Recipient == email.RecipientBulk {
		return fmt.Sprintf("bulk (%d destinations)", len(p.Destinations))
	}
	return "single " + p.DestinationAddress
}

func contentLabel(p *email.Parsed) string {
	if p.Content == email.ContentTemplated {
		return "template " + p.TemplateName
	}
	return "plain"
}
