package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func newTestRuntime(t *testing.T) *app.Runtime {
	t.Helper()
	logger := log.WithField("test", "orderctl")
	logger.Logger.SetLevel(log.WarnLevel)

	rt, err := app.OpenRuntime(context.Background(), app.Config{StorageDriver: app.StorageDriverMemory}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func runJSON(t *testing.T, rt *app.Runtime, v any, args ...string) {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), rt, args, &out))
	require.NoError(t, json.Unmarshal(out.Bytes(), v))
}

func TestRun_FullFlow(t *testing.T) {
	rt := newTestRuntime(t)

	var customer customerView
	runJSON(t, rt, &customer, "customer", "add", "-name", "Ada", "-email", "ada@example.com")
	require.NotEmpty(t, customer.ID)

	var keyboard, mouse productView
	runJSON(t, rt, &keyboard, "product", "add", "-name", "keyboard", "-price", "49.9", "-qty", "5")
	runJSON(t, rt, &mouse, "product", "add", "-name", "mouse", "-price", "10", "-qty", "3")
	require.Equal(t, "49.90", keyboard.Price)

	var order orderView
	runJSON(t, rt, &order, "order", "create", "-customer", customer.ID,
		"-item", keyboard.ID+":2", "-item", mouse.ID+":1")
	require.Equal(t, "109.80", order.Total)
	require.Len(t, order.Items, 2)
	require.NotNil(t, order.Customer)
	require.Equal(t, "ada@example.com", order.Customer.Email)

	var fetched orderView
	runJSON(t, rt, &fetched, "order", "get", "-id", order.ID)
	require.Equal(t, order.ID, fetched.ID)
	require.Equal(t, order.Total, fetched.Total)

	var listed []orderView
	runJSON(t, rt, &listed, "order", "list", "-customer", customer.ID)
	require.Len(t, listed, 1)

	var left productView
	runJSON(t, rt, &left, "product", "get", "-name", "keyboard")
	require.EqualValues(t, 3, left.Quantity)

	runJSON(t, rt, &left, "product", "get", "-id", mouse.ID)
	require.EqualValues(t, 2, left.Quantity)
}

func TestRun_DomainErrorsMapToExitCodes(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	var customer customerView
	runJSON(t, rt, &customer, "customer", "add", "-name", "Bob", "-email", "bob@example.com")
	var product productView
	runJSON(t, rt, &product, "product", "add", "-name", "lamp", "-price", "5", "-qty", "1")

	testCases := []struct {
		name string
		args []string
		code int
	}{
		{name: "unknown customer", args: []string{"order", "create", "-customer", "nope", "-item", product.ID + ":1"}, code: exitNotFound},
		{name: "no items", args: []string{"order", "create", "-customer", customer.ID}, code: exitValidation},
		{name: "insufficient stock", args: []string{"order", "create", "-customer", customer.ID, "-item", product.ID + ":2"}, code: exitValidation},
		{name: "unknown product", args: []string{"order", "create", "-customer", customer.ID, "-item", "ghost:1"}, code: exitNotFound},
		{name: "duplicate product", args: []string{"product", "add", "-name", "lamp", "-price", "5", "-qty", "1"}, code: exitConflict},
		{name: "missing product by id", args: []string{"product", "get", "-id", "ghost"}, code: exitNotFound},
		{name: "bad price", args: []string{"product", "add", "-name", "x", "-price", "cheap"}, code: exitUsage},
		{name: "bad item", args: []string{"order", "create", "-customer", customer.ID, "-item", "broken"}, code: exitUsage},
		{name: "unknown command", args: []string{"order", "cancel"}, code: exitUsage},
		{name: "ambiguous product get", args: []string{"product", "get"}, code: exitUsage},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(ctx, rt, tc.args, &out)
			require.Error(t, err)
			require.Equal(t, tc.code, exitCode(err), "err: %v", err)
			require.Empty(t, out.String())
		})
	}
}

func TestItemFlags(t *testing.T) {
	var items itemFlags
	require.NoError(t, items.Set("p-1:2"))
	require.NoError(t, items.Set(" p-2 : 3 "))
	require.Equal(t, "p-1:2,p-2:3", items.String())

	require.Error(t, items.Set(":1"))
	require.Error(t, items.Set("p-3"))
	require.Error(t, items.Set("p-3:x"))
}

func TestStorageConfig(t *testing.T) {
	lookup := func(values map[string]string) func(string) (string, bool) {
		return func(key string) (string, bool) {
			v, ok := values[key]
			return v, ok
		}
	}

	cfg := storageConfig(lookup(nil))
	require.Equal(t, app.StorageDriverMemory, cfg.StorageDriver)

	cfg = storageConfig(lookup(map[string]string{envPostgresDSN: " postgres://localhost/storefront "}))
	require.Equal(t, app.StorageDriverPostgres, cfg.StorageDriver)
	require.Equal(t, "postgres://localhost/storefront", cfg.PostgresDSN)

	cfg = storageConfig(lookup(map[string]string{envPostgresDSN: "postgres://x", envStorageDriver: "MEMORY"}))
	require.Equal(t, app.StorageDriverMemory, cfg.StorageDriver)
}

func TestExitCode(t *testing.T) {
	require.Equal(t, exitNotFound, exitCode(domain.ErrOrderNotFound))
	require.Equal(t, exitValidation, exitCode(&domain.InsufficientStockError{ProductID: "p"}))
	require.Equal(t, exitConflict, exitCode(domain.ErrConcurrentUpdate))
	require.Equal(t, exitFailure, exitCode(errors.New("db down")))
}

func TestExecute_Usage(t *testing.T) {
	require.Equal(t, exitUsage, execute(context.Background(), []string{"order"}, func(string) (string, bool) { return "", false }))
}
