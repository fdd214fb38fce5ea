package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"shop-admin/internal/app"
)

// ErrUsage is returned for unknown commands and malformed arguments.
var ErrUsage = errors.New("usage error")

const usage = `Available commands:
  products                       list active products
  deleted                        list soft-deleted products
  product <id>                   show a product
  history <id>                   show a product's audit trail
  adjust <id> <qty> [note...]    write off stock
  orders [status]                list orders
  order <id>                     show an order
  status <order-id> <status>     change an order's status
  extract <file|->               extract an order draft from a conversation
  confirm <token>                create the order from a draft
  token [subject]                print a signed operator token`

// TokenSigner issues operator tokens for the API.
type TokenSigner interface {
	Issue(subject string) (string, time.Time, error)
}

// Runner executes one-shot commands against the application service.
type Runner struct {
	svc    app.ApplicationService
	tokens TokenSigner
	out    io.Writer
	in     io.Reader
}

// New returns a Runner. tokens may be nil when no JWT secret is configured.
func New(svc app.ApplicationService, tokens TokenSigner, out io.Writer, in io.Reader) *Runner {
	return &Runner{svc: svc, tokens: tokens, out: out, in: in}
}

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

func intArg(args []string, i int, name string) (int, error) {
	if len(args) <= i {
		return 0, usageErr("missing <%s>", name)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, usageErr("<%s> must be a number, got %q", name, args[i])
	}
	return n, nil
}

// Run executes a single command. args[0] is the subcommand name.
func (r *Runner) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageErr("no command given\n%s", usage)
	}

	switch strings.ToLower(args[0]) {
	case "help", "-h", "--help":
		fmt.Fprintln(r.out, usage)

	case "products":
		result, err := r.svc.ListProducts(ctx)
		if err != nil {
			return err
		}
		printProducts(r.out, "PRODUCTS", result.Products)

	case "deleted":
		result, err := r.svc.ListDeletedProducts(ctx)
		if err != nil {
			return err
		}
		printProducts(r.out, "DELETED PRODUCTS", result.Products)

	case "product":
		id, err := intArg(args, 1, "id")
		if err != nil {
			return err
		}
		p, err := r.svc.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		printProduct(r.out, p)

	case "history":
		id, err := intArg(args, 1, "id")
		if err != nil {
			return err
		}
		result, err := r.svc.ListProductHistory(ctx, id)
		if err != nil {
			return err
		}
		printHistory(r.out, id, result.Entries)

	case "adjust":
		id, err := intArg(args, 1, "id")
		if err != nil {
			return err
		}
		qty, err := intArg(args, 2, "qty")
		if err != nil {
			return err
		}
		note := strings.Join(args[3:], " ")
		p, err := r.svc.AdjustStock(ctx, app.AdjustStockRequest{ProductID: id, ReduceBy: qty, Note: note})
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Stock for %s reduced by %d. Now %d.\n", p.Name, qty, p.Quantity)

	case "orders":
		var status *string
		if len(args) > 1 {
			status = &args[1]
		}
		result, err := r.svc.ListOrders(ctx, status)
		if err != nil {
			return err
		}
		printOrders(r.out, result.Orders)

	case "order":
		id, err := intArg(args, 1, "id")
		if err != nil {
			return err
		}
		result, err := r.svc.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		printOrder(r.out, result.Order)

	case "status":
		id, err := intArg(args, 1, "order-id")
		if err != nil {
			return err
		}
		if len(args) < 3 {
			return usageErr("missing <status>")
		}
		result, err := r.svc.SetOrderStatus(ctx, id, args[2])
		if err != nil {
			return err
		}
		printOrder(r.out, result.Order)

	case "extract":
		if len(args) < 2 {
			return usageErr("missing <file|->")
		}
		conversation, err := r.readInput(args[1])
		if err != nil {
			return err
		}
		result, err := r.svc.ExtractOrderDraft(ctx, conversation)
		if err != nil {
			return err
		}
		PrintDraft(r.out, result.Token, result.Draft)
		fmt.Fprintf(r.out, "\nReview the draft, then run: confirm %s\n", result.Token)

	case "confirm":
		if len(args) < 2 {
			return usageErr("missing <token>")
		}
		result, err := r.svc.ConfirmDraft(ctx, args[1], nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Order #%d created.\n", result.Order.ID)
		printOrder(r.out, result.Order)

	case "token":
		if r.tokens == nil {
			return errors.New("JWT_SECRET is not configured")
		}
		subject := "operator"
		if len(args) > 1 {
			subject = args[1]
		}
		token, exp, err := r.tokens.Issue(subject)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, token)
		fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))

	default:
		return usageErr("unknown command %q\n%s", args[0], usage)
	}
	return nil
}

func (r *Runner) readInput(path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(r.in)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read conversation: %w", err)
	}
	return string(b), nil
}
