package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"shop-admin/internal/adapters/cli"
	"shop-admin/internal/app"
)

const lowConfidence = 0.6

// Run starts the interactive loop. Slash commands are dispatched to the CLI
// runner; any other text is treated as a pasted customer conversation, read
// until an empty line, and turned into an order draft for approval.
func Run(ctx context.Context, svc app.ApplicationService, runner *cli.Runner, reader *bufio.Reader, out io.Writer) {
	fmt.Fprintln(out, "Shop Admin")
	fmt.Fprintln(out, "Paste a customer conversation (end with an empty line) or use /help for commands.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	for {
		fmt.Fprint(out, "\n> ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			if err != nil {
				return
			}
			continue
		}

		switch strings.ToLower(input) {
		case "/exit", "/quit", "exit", "quit":
			return
		}

		if strings.HasPrefix(input, "/") {
			if cmdErr := runner.Run(ctx, strings.Fields(strings.TrimPrefix(input, "/"))); cmdErr != nil {
				fmt.Fprintf(out, "Error: %v\n", cmdErr)
			}
			continue
		}

		conversation := readParagraph(input, reader)
		handleConversation(ctx, svc, reader, out, conversation)
		if err != nil {
			return
		}
	}
}

// readParagraph collects lines after first until an empty line or EOF.
func readParagraph(first string, reader *bufio.Reader) string {
	lines := []string{first}
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			break
		}
		lines = append(lines, line)
		if err != nil {
			break
		}
	}
	return strings.Join(lines, "\n")
}

func handleConversation(ctx context.Context, svc app.ApplicationService, reader *bufio.Reader, out io.Writer, conversation string) {
	fmt.Fprintln(out, "[AI] Extracting order...")
	result, err := svc.ExtractOrderDraft(ctx, conversation)
	if err != nil {
		if errors.Is(err, app.ErrExtractionDisabled) {
			fmt.Fprintln(out, "AI extraction is disabled: set OPENAI_API_KEY.")
			return
		}
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	cli.PrintDraft(out, result.Token, result.Draft)
	if len(result.Draft.Items) == 0 {
		fmt.Fprintln(out, "\nNo catalog products were recognised; draft discarded.")
		_ = svc.DiscardDraft(ctx, result.Token)
		return
	}
	if result.Draft.Confidence < lowConfidence {
		fmt.Fprintln(out, "\nWARNING: Low confidence draft.")
	}

	fmt.Fprint(out, "\nCreate this order? (y/n): ")
	choice, _ := reader.ReadString('\n')
	choice = strings.TrimSpace(strings.ToLower(choice))
	if choice != "y" && choice != "yes" {
		_ = svc.DiscardDraft(ctx, result.Token)
		fmt.Fprintln(out, "Draft discarded.")
		return
	}

	order, err := svc.ConfirmDraft(ctx, result.Token, nil)
	if err != nil {
		fmt.Fprintf(out, "Order FAILED: %v\n", err)
		fmt.Fprintf(out, "The draft is kept; fix the data and run /confirm %s\n", result.Token)
		return
	}
	fmt.Fprintf(out, "Order #%d CREATED. Total %s.\n", order.Order.ID, order.Order.TotalPrice.StringFixed(2))
}
