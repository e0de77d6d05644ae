package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/ordering"
)

var errUsage = errors.New("usage")

type command func(ctx context.Context, rt *app.Runtime, args []string, out io.Writer) error

var commands = map[string]command{
	"product add":  productAdd,
	"product get":  productGet,
	"customer add": customerAdd,
	"order create": orderCreate,
	"order get":    orderGet,
	"order list":   orderList,
}

// run выполняет одну команду вида "<resource> <action> [flags]" и печатает результат в JSON.
func run(ctx context.Context, rt *app.Runtime, args []string, out io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: expected <resource> <action>", errUsage)
	}
	name := args[0] + " " + args[1]
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
	return cmd(ctx, rt, args[2:], out)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: %s: unexpected arguments %v", errUsage, fs.Name(), fs.Args())
	}
	return nil
}

func productAdd(ctx context.Context, rt *app.Runtime, args []string, out io.Writer) error {
	fs := newFlagSet("product add")
	name := fs.String("name", "", "product name")
	price := fs.String("price", "", "unit price, e.g. 19.99")
	qty := fs.Int64("qty", 0, "units in stock")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	parsedPrice, err := decimal.NewFromString(strings.TrimSpace(*price))
	if err != nil {
		return fmt.Errorf("%w: product add: invalid -price %q", errUsage, *price)
	}

	product, err := rt.Catalog.RegisterProduct(ctx, *name, parsedPrice, *qty)
	if err != nil {
		return err
	}
	return writeJSON(out, newProductView(product))
}

func productGet(ctx context.Context, rt *app.Runtime, args []string, out io.Writer) error {
	fs := newFlagSet("product get")
	id := fs.String("id", "", "product id")
	name := fs.String("name", "", "product name")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	switch {
	case *id != "" && *name == "":
		products, err := rt.Catalog.Products(ctx, []string{*id})
		if err != nil {
			return err
		}
		if len(products) == 0 {
			return fmt.Errorf("product %q: %w", *id, domain.ErrNotFound)
		}
		return writeJSON(out, newProductView(products[0]))
	case *name != "" && *id == "":
		product, err := rt.Catalog.LookupProduct(ctx, *name)
		if err != nil {
			return err
		}
		return writeJSON(out, newProductView(product))
	default:
		return fmt.Errorf("%w: product get: exactly one of -id or -name is required", errUsage)
	}
}

func customerAdd(ctx context.Context, rt *app.Runtime, args []string, out io.Writer) error {
	fs := newFlagSet("customer add")
	name := fs.String("name", "", "customer name")
	email := fs.String("email", "", "customer email")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	customer, err := rt.Catalog.RegisterCustomer(ctx, *name, *email)
	if err != nil {
		return err
	}
	return writeJSON(out, newCustomerView(customer))
}

func orderCreate(ctx context.Context, rt *app.Runtime, args []string, out io.Writer) error {
	fs := newFlagSet("order create")
	customerID := fs.String("customer", "", "customer id")
	var items itemFlags
	fs.Var(&items, "item", "PRODUCT_ID:QTY, repeatable")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	order, err := rt.Ordering.CreateOrder(ctx, ordering.CreateOrderRequest{
		CustomerID: *customerID,
		Products:   items,
	})
	if err != nil {
		return err
	}
	return writeJSON(out, newOrderView(order))
}

func orderGet(ctx context.Context, rt *app.Runtime, args []string, out io.Writer) error {
	fs := newFlagSet("order get")
	id := fs.String("id", "", "order id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("%w: order get: -id is required", errUsage)
	}

	order, err := rt.Ordering.GetOrder(ctx, *id)
	if err != nil {
		return err
	}
	return writeJSON(out, newOrderView(order))
}

func orderList(ctx context.Context, rt *app.Runtime, args []string, out io.Writer) error {
	fs := newFlagSet("order list")
	customerID := fs.String("customer", "", "customer id")
	limit := fs.Int("limit", 20, "max orders, newest first (0 = all)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *customerID == "" {
		return fmt.Errorf("%w: order list: -customer is required", errUsage)
	}

	orders, err := rt.Ordering.ListCustomerOrders(ctx, *customerID, *limit)
	if err != nil {
		return err
	}
	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, newOrderView(order))
	}
	return writeJSON(out, views)
}

// itemFlags накапливает повторяющиеся -item PRODUCT_ID:QTY.
type itemFlags []ordering.RequestedProduct

func (f *itemFlags) String() string {
	parts := make([]string, 0, len(*f))
	for _, item := range *f {
		parts = append(parts, fmt.Sprintf("%s:%d", item.ID, item.Quantity))
	}
	return strings.Join(parts, ",")
}

func (f *itemFlags) Set(value string) error {
	id, qty, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || strings.TrimSpace(id) == "" {
		return fmt.Errorf("expected PRODUCT_ID:QTY, got %q", value)
	}
	quantity, err := strconv.ParseInt(strings.TrimSpace(qty), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid quantity in %q", value)
	}
	*f = append(*f, ordering.RequestedProduct{ID: strings.TrimSpace(id), Quantity: quantity})
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
